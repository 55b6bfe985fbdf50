// Package world parses inbound world-state snapshots from the virtual-world
// simulation.
//
// A snapshot is an opaque structured payload whose only distinguished fields
// are the two action vocabularies (emotes and triggers) and an optional room
// identifier. Everything else is passed through verbatim into the decision
// prompt. Snapshots are transient — they exist only for the duration of one
// turn.
package world

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultRoomID is used when the inbound payload omits roomId.
const DefaultRoomID = "hyperfy"

// ErrMissingVocabulary reports that the inbound payload omitted one of the
// required emotes/triggers arrays. This is a caller error and must be raised
// before any backend work begins.
var ErrMissingVocabulary = errors.New("world: request is missing the emotes or triggers vocabulary")

// Snapshot is the parsed view of one inbound world-state payload.
type Snapshot struct {
	// RoomID identifies the world room the stimulus belongs to. Defaults to
	// [DefaultRoomID] when the payload omits it.
	RoomID string

	// Emotes is the ordered emote vocabulary for this snapshot. May be
	// empty, but the field must be present in the payload.
	Emotes []string

	// Triggers is the ordered trigger (gaze target) vocabulary for this
	// snapshot. May be empty, but the field must be present in the payload.
	Triggers []string

	// fields holds the complete decoded payload, vocabularies included,
	// for verbatim serialization into the prompt.
	fields map[string]any
}

// ParseSnapshot decodes body into a Snapshot.
//
// The payload must be a JSON object carrying `emotes` and `triggers` arrays;
// their absence (as opposed to emptiness) yields [ErrMissingVocabulary].
// Vocabulary entries are coerced to strings so that a world sending numeric
// trigger IDs still produces a usable vocabulary.
func ParseSnapshot(body []byte) (*Snapshot, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("world: decode snapshot: %w", err)
	}

	emotes, ok := vocabulary(fields, "emotes")
	if !ok {
		return nil, ErrMissingVocabulary
	}
	triggers, ok := vocabulary(fields, "triggers")
	if !ok {
		return nil, ErrMissingVocabulary
	}

	roomID := DefaultRoomID
	if v, ok := fields["roomId"].(string); ok && v != "" {
		roomID = v
	}

	return &Snapshot{
		RoomID:   roomID,
		Emotes:   emotes,
		Triggers: triggers,
		fields:   fields,
	}, nil
}

// Serialize returns the deterministic JSON form of the full snapshot payload
// for injection into the decision prompt. Key order is stable (encoding/json
// sorts map keys).
func (s *Snapshot) Serialize() (string, error) {
	out, err := json.Marshal(s.fields)
	if err != nil {
		return "", fmt.Errorf("world: serialize snapshot: %w", err)
	}
	return string(out), nil
}

// vocabulary extracts the named string array from fields. The second return
// is false when the key is absent or not an array. An empty array is valid.
func vocabulary(fields map[string]any, key string) ([]string, bool) {
	raw, ok := fields[key]
	if !ok {
		return nil, false
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}

	vocab := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			vocab = append(vocab, s)
		} else {
			vocab = append(vocab, fmt.Sprint(v))
		}
	}
	return vocab, true
}
