package memory

import (
	"context"
	"math"
	"sort"
	"sync"
)

// defaultRecentLimit matches the Postgres store's default window.
const defaultRecentLimit = 50

// InMemoryStore is a process-local [Store] used when no database is
// configured. Records vanish on restart; it exists so the service can run
// without Postgres in development and small single-agent deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]ConversationRecord
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]ConversationRecord)}
}

// CreateRecord implements Store. It never fails.
func (s *InMemoryStore) CreateRecord(_ context.Context, rec ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ConversationID] = append(s.records[rec.ConversationID], rec)
	return nil
}

// Recent implements Store.
func (s *InMemoryStore) Recent(_ context.Context, conversationID string, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[conversationID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]ConversationRecord, len(all))
	copy(out, all)
	return out, nil
}

// SearchSimilar implements Store with a linear cosine-distance scan. Fine
// for the small record counts an in-memory deployment holds.
func (s *InMemoryStore) SearchSimilar(_ context.Context, conversationID string, embedding []float32, topK int) ([]ConversationRecord, error) {
	if topK <= 0 || len(embedding) == 0 {
		return []ConversationRecord{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		rec  ConversationRecord
		dist float64
	}
	var candidates []scored
	for _, rec := range s.records[conversationID] {
		if len(rec.Embedding) != len(embedding) {
			continue
		}
		candidates = append(candidates, scored{rec: rec, dist: cosineDistance(embedding, rec.Embedding)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	out := make([]ConversationRecord, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out, nil
}

// cosineDistance returns 1 - cosine similarity. Mismatched or zero vectors
// are filtered by the caller.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
