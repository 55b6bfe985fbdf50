package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/peezy/hyperfy-eliza-client/pkg/memory"
)

// Compile-time interface check.
var _ memory.Store = (*Store)(nil)

// Store is the PostgreSQL-backed conversation store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool       *pgxpool.Pool
	dimensions int
}

// defaultRecentLimit caps Recent results when the caller passes limit 0.
const defaultRecentLimit = 50

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn and runs [Migrate].
//
// embeddingDimensions must match the output dimension of the configured
// embeddings provider (e.g. 1536 for OpenAI text-embedding-3-small). Pass 0
// to disable vector support entirely — records are then stored without
// embeddings and SearchSimilar always returns empty results.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	if embeddingDimensions > 0 {
		// Register pgvector types on every new connection so the embedding
		// column can be scanned into and inserted from pgvector.Vector values.
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool, dimensions: embeddingDimensions}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping probes the database connection. Suitable as a readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateRecord implements [memory.Store].
func (s *Store) CreateRecord(ctx context.Context, rec memory.ConversationRecord) error {
	if s.dimensions > 0 {
		const q = `
			INSERT INTO conversation_records
			    (id, conversation_id, sender_id, sender_name, text, action, actions, source, raw, created_at, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

		var vec any
		if rec.Embedding != nil {
			vec = pgvector.NewVector(rec.Embedding)
		}
		_, err := s.pool.Exec(ctx, q,
			rec.ID, rec.ConversationID, rec.SenderID, rec.SenderName,
			rec.Text, rec.Action, rec.Actions, rec.Source, rec.Raw, rec.CreatedAt, vec,
		)
		if err != nil {
			return fmt.Errorf("postgres store: create record: %w", err)
		}
		return nil
	}

	const q = `
		INSERT INTO conversation_records
		    (id, conversation_id, sender_id, sender_name, text, action, actions, source, raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, q,
		rec.ID, rec.ConversationID, rec.SenderID, rec.SenderName,
		rec.Text, rec.Action, rec.Actions, rec.Source, rec.Raw, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: create record: %w", err)
	}
	return nil
}

// Recent implements [memory.Store]. Records are returned oldest first.
func (s *Store) Recent(ctx context.Context, conversationID string, limit int) ([]memory.ConversationRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	// Select the newest N, then flip to chronological order.
	const q = `
		SELECT id, conversation_id, sender_id, sender_name, text, action, actions, source, raw, created_at
		FROM (
		    SELECT id, conversation_id, sender_id, sender_name, text, action, actions, source, raw, created_at
		    FROM   conversation_records
		    WHERE  conversation_id = $1
		    ORDER  BY created_at DESC
		    LIMIT  $2
		) newest
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: recent: %w", err)
	}
	return collectRecords(rows)
}

// SearchSimilar implements [memory.Store]. It ranks records by cosine
// distance to the query embedding, most similar first.
func (s *Store) SearchSimilar(ctx context.Context, conversationID string, embedding []float32, topK int) ([]memory.ConversationRecord, error) {
	if s.dimensions == 0 {
		return []memory.ConversationRecord{}, nil
	}
	if topK <= 0 {
		topK = 10
	}

	const q = `
		SELECT id, conversation_id, sender_id, sender_name, text, action, actions, source, raw, created_at
		FROM   conversation_records
		WHERE  conversation_id = $1
		  AND  embedding IS NOT NULL
		ORDER  BY embedding <=> $2
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, conversationID, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("postgres store: search similar: %w", err)
	}
	return collectRecords(rows)
}

// collectRecords scans pgx rows into ConversationRecord values.
func collectRecords(rows pgx.Rows) ([]memory.ConversationRecord, error) {
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.ConversationRecord, error) {
		var r memory.ConversationRecord
		err := row.Scan(
			&r.ID,
			&r.ConversationID,
			&r.SenderID,
			&r.SenderName,
			&r.Text,
			&r.Action,
			&r.Actions,
			&r.Source,
			&r.Raw,
			&r.CreatedAt,
		)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan records: %w", err)
	}
	if records == nil {
		records = []memory.ConversationRecord{}
	}
	return records, nil
}
