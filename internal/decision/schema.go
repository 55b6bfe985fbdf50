package decision

import "github.com/google/jsonschema-go/jsonschema"

// BuildActionSchema synthesizes the validation schema for an agent's action
// output from the world's current emote and trigger vocabularies.
//
// For lookAt (against triggers) and emote (against emotes): when the
// vocabulary is non-empty the field accepts exactly one vocabulary entry,
// any other string, or null; when the vocabulary is empty the field accepts
// any string or null. The enum branch steers the model towards the world's
// valid targets without hard-blocking reasonable unlisted values —
// over-constraining causes unrecoverable validation failures, so strictness
// is deliberately traded for availability.
//
// say accepts any string or null; actions accepts an ordered array of
// strings or null. All four properties are required (null counts as
// present).
//
// Synthesis never fails, for any vocabulary input including two empty ones.
// The returned schema must not be reused across snapshots carrying different
// vocabularies — build a fresh one per turn.
func BuildActionSchema(emotes, triggers []string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"lookAt": vocabularyField(triggers),
			"emote":  vocabularyField(emotes),
			"say":    {Types: []string{"string", "null"}},
			"actions": {AnyOf: []*jsonschema.Schema{
				{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				{Type: "null"},
			}},
		},
		Required: []string{"lookAt", "emote", "say", "actions"},
	}
}

// vocabularyField builds the schema for one vocabulary-steered field.
func vocabularyField(vocab []string) *jsonschema.Schema {
	if len(vocab) == 0 {
		return &jsonschema.Schema{Types: []string{"string", "null"}}
	}

	enum := make([]any, len(vocab))
	for i, v := range vocab {
		enum[i] = v
	}
	return &jsonschema.Schema{AnyOf: []*jsonschema.Schema{
		{Enum: enum},
		{Type: "string"},
		{Type: "null"},
	}}
}
