package commit

import (
	"strings"

	"github.com/peezy/hyperfy-eliza-client/internal/decision"
)

// ComposeText builds the human-readable outgoing record text from a
// decision: the spoken reply, followed by a continuation describing the
// gaze and emote (gaze first, joined with "and" when both are present).
//
// When preserveEmoteOverwrite is true the historical composition is kept:
// the emote clause is built and then lost, so a decision with both a gaze
// and an emote yields a trailing "and " with nothing after it (for example
// "hi. Then I looked at player1 and "). Downstream consumers have been
// observed to depend on this exact text, so the corrected form is opt-in
// via configuration.
func ComposeText(d *decision.Decision, preserveEmoteOverwrite bool) string {
	var text string
	if d.Say != nil {
		text = *d.Say
	}

	var clauses []string
	if d.LookAt != nil {
		clauses = append(clauses, "looked at "+*d.LookAt)
	}
	if d.Emote != nil {
		clause := "emoted " + *d.Emote
		if preserveEmoteOverwrite {
			clause = ""
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) > 0 {
		text += ". Then I " + strings.Join(clauses, " and ")
	}
	return text
}
