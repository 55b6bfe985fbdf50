// Package agent holds the in-process agent registry.
//
// An [Agent] bundles the persona and behavior surface of one virtual-world
// character. The [Registry] maps inbound identifiers to agents: exact ID
// match first, then case-insensitive display-name match. Registration under
// an existing ID replaces the previous entry.
package agent

// Agent is one registered virtual-world character.
type Agent struct {
	// ID uniquely identifies the agent. Used verbatim in URLs and as the
	// SenderID on outgoing conversation records.
	ID string

	// Name is the display name, matched case-insensitively during
	// resolution and substituted into the decision prompt.
	Name string

	// Bio is the persona description injected into every decision prompt.
	Bio string

	// Template optionally overrides the default decision prompt template.
	Template string

	// Behaviors lists the behavior names this agent may dispatch.
	Behaviors []string
}
