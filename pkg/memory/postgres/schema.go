// Package postgres provides a PostgreSQL-backed implementation of the
// conversation store.
//
// Records are written to a single conversation_records table. When the store
// is created with a non-zero embedding dimension the pgvector extension is
// installed and an embedding column plus an HNSW index support semantic
// recall; with a zero dimension the store degrades to purely chronological
// retrieval and [Store.SearchSimilar] returns empty results.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	_ = store.CreateRecord(ctx, rec)
//	recent, _ := store.Recent(ctx, conversationID, 20)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlConversationRecords = `
CREATE TABLE IF NOT EXISTS conversation_records (
    id              TEXT         PRIMARY KEY,
    conversation_id TEXT         NOT NULL,
    sender_id       TEXT         NOT NULL,
    sender_name     TEXT         NOT NULL DEFAULT '',
    text            TEXT         NOT NULL,
    action          TEXT         NOT NULL DEFAULT '',
    actions         TEXT[]       NOT NULL DEFAULT '{}',
    source          TEXT         NOT NULL DEFAULT '',
    raw             JSONB,
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversation_records_conversation
    ON conversation_records (conversation_id, created_at);
`

const ddlVectorExtension = `CREATE EXTENSION IF NOT EXISTS vector;`

// ddlEmbeddingColumn adds the embedding column and ANN index. The dimension is
// substituted via fmt.Sprintf — it comes from configuration, never from user
// input.
const ddlEmbeddingColumn = `
ALTER TABLE conversation_records
    ADD COLUMN IF NOT EXISTS embedding vector(%d);

CREATE INDEX IF NOT EXISTS idx_conversation_records_embedding
    ON conversation_records USING hnsw (embedding vector_cosine_ops);
`

// Migrate creates the conversation_records table and supporting indexes.
// When embeddingDimensions > 0 it also installs pgvector and the embedding
// column. Migrate is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlConversationRecords); err != nil {
		return fmt.Errorf("migrate conversation_records: %w", err)
	}
	if embeddingDimensions > 0 {
		if _, err := pool.Exec(ctx, ddlVectorExtension); err != nil {
			return fmt.Errorf("migrate vector extension: %w", err)
		}
		if _, err := pool.Exec(ctx, fmt.Sprintf(ddlEmbeddingColumn, embeddingDimensions)); err != nil {
			return fmt.Errorf("migrate embedding column: %w", err)
		}
	}
	return nil
}
