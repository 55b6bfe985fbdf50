// Package decision turns a rendered prompt and a per-turn action schema into
// a validated agent decision.
//
// The package has three parts:
//
//   - [BuildActionSchema] — synthesizes the per-turn validation schema from
//     the world's current emote and trigger vocabularies.
//   - [Decision] — the validated structured output of one turn.
//   - [Engine] — invokes the generative backend, enforces schema
//     conformance, and classifies the result as "act" or "stay silent".
package decision

import (
	"encoding/json"
	"errors"
)

// Sentinel errors for the two collaborator failure classes. Neither is
// retried inside the engine; retry policy belongs to the caller.
var (
	// ErrBackendUnavailable reports that the generative backend returned no
	// usable result.
	ErrBackendUnavailable = errors.New("decision: generative backend returned no result")

	// ErrSchemaViolation reports that the backend's output does not conform
	// to the action schema even after re-validation.
	ErrSchemaViolation = errors.New("decision: backend output violates the action schema")
)

// Decision is the validated structured output of one turn. All fields are
// nullable; a decision with every field null is an explicit "stay silent".
//
// Decisions are read-only after validation.
type Decision struct {
	// LookAt names a gaze target, steered towards the snapshot's trigger
	// vocabulary but tolerating novel values.
	LookAt *string `json:"lookAt"`

	// Emote names an emote, steered towards the snapshot's emote vocabulary
	// but tolerating novel values.
	Emote *string `json:"emote"`

	// Say is the agent's spoken reply.
	Say *string `json:"say"`

	// Actions is an ordered list of behavior names. Only the first entry is
	// eligible for dispatch (single-action-per-turn policy); the remainder
	// is preserved on the conversation record for audit.
	Actions []string `json:"actions"`

	// Raw is the validated backend output verbatim, retained for the audit
	// trail on the outgoing conversation record.
	Raw json.RawMessage `json:"-"`
}

// Silent reports whether this decision is an explicit "stay silent": no
// reply, no gaze, no emote, and no behaviors. An empty actions array counts
// the same as a null one — a deliberate choice recorded in DESIGN.md under
// "Open Question decisions". A silent turn succeeds without creating any
// conversation record.
func (d *Decision) Silent() bool {
	return d.Say == nil && d.LookAt == nil && d.Emote == nil && len(d.Actions) == 0
}

// FirstAction returns the single dispatch-eligible behavior name, or "" when
// the decision names none.
func (d *Decision) FirstAction() string {
	if len(d.Actions) == 0 {
		return ""
	}
	return d.Actions[0]
}
