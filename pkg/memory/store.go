// Package memory defines the durable conversation store that backs agent
// turns.
//
// Each turn appends at most two [ConversationRecord] values: one for the
// agent's outgoing decision and one for the incoming world stimulus that
// provoked it. Records are immutable once created — the store offers no
// update or delete operations.
//
// Implementations must be safe for concurrent use. The Postgres
// implementation lives in the postgres subpackage; an in-memory test double
// lives in mock.
package memory

import (
	"context"
	"encoding/json"
	"time"
)

// Well-known sender identities.
const (
	// WorldSenderID is the fixed sender identity for records that represent
	// an incoming world stimulus rather than an agent's own output.
	WorldSenderID = "world"
)

// ConversationRecord is one durable entry in a conversation: either the
// incoming world stimulus or the agent's outgoing decision.
//
// Records are write-once. Callers must treat a record as read-only after
// handing it to [Store.CreateRecord].
type ConversationRecord struct {
	// ID is the unique identifier of this record (a UUID).
	ID string

	// ConversationID groups records belonging to one conversation. It is
	// derived deterministically from the world/room identifier.
	ConversationID string

	// SenderID identifies who produced this record: an agent ID for
	// outgoing decisions, or [WorldSenderID] for incoming stimuli.
	SenderID string

	// SenderName is the human-readable sender name.
	SenderName string

	// Text is the composed record text: the spoken reply plus any
	// gaze/emote continuation for outgoing records, or the serialized world
	// snapshot for incoming ones.
	Text string

	// Action is the single behavior tag recorded for dispatch. Empty when
	// the decision named no behavior.
	Action string

	// Actions preserves the full ordered behavior list from the decision
	// for audit. Only the first entry is ever dispatched.
	Actions []string

	// Source labels the transport that produced the record (e.g. "hyperfy").
	Source string

	// Raw is the validated decision object as returned by the backend,
	// kept verbatim for audit. Nil for incoming records.
	Raw json.RawMessage

	// Embedding is an optional vector representation of Text, present when
	// an embeddings provider is configured. Used for semantic recall.
	Embedding []float32

	// CreatedAt is when the record was created.
	CreatedAt time.Time
}

// Store is the durable, append-only conversation store.
type Store interface {
	// CreateRecord durably persists rec. Returns an error only on storage
	// failure; a returned error means the record must be treated as not
	// written and any dependent side effects must not run.
	CreateRecord(ctx context.Context, rec ConversationRecord) error

	// Recent returns up to limit records for conversationID in
	// chronological order (oldest first). A limit of 0 applies an
	// implementation default. Returns an empty (non-nil) slice when the
	// conversation has no records.
	Recent(ctx context.Context, conversationID string, limit int) ([]ConversationRecord, error)

	// SearchSimilar returns up to topK records for conversationID whose
	// embeddings are closest to the query embedding, most similar first.
	// Records written without an embedding are excluded. Returns an empty
	// (non-nil) slice when nothing matches or the store has no vector
	// support.
	SearchSimilar(ctx context.Context, conversationID string, embedding []float32, topK int) ([]ConversationRecord, error)
}
