// Package mock provides an in-memory test double for the memory.Store
// interface.
//
// The mock records every method call for assertion in tests and exposes
// exported fields that control what it returns. It is safe for concurrent
// use via an internal mutex.
//
// Typical usage:
//
//	store := &mock.Store{}
//	// inject store into the system under test …
//	if got := store.CallCount("CreateRecord"); got != 1 {
//	    t.Errorf("expected 1 CreateRecord call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/peezy/hyperfy-eliza-client/pkg/memory"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Store is a configurable test double for [memory.Store].
//
// CreateRecord appends to an internal slice readable via [Store.Records]
// unless CreateRecordErr is set. Recent returns RecentResult when non-nil,
// otherwise the matching stored records.
type Store struct {
	mu      sync.Mutex
	calls   []Call
	records []memory.ConversationRecord

	// CreateRecordErr is returned by CreateRecord when non-nil; the record
	// is then not retained.
	CreateRecordErr error

	// CreateRecordErrAfter, when > 0, makes CreateRecord succeed that many
	// times and fail afterwards with CreateRecordErr. Used to test partial
	// persistence failures (outgoing succeeds, incoming fails).
	CreateRecordErrAfter int

	// RecentResult overrides the computed Recent response when non-nil.
	RecentResult []memory.ConversationRecord

	// RecentErr is returned by Recent when non-nil.
	RecentErr error

	// SearchSimilarResult is returned by SearchSimilar.
	SearchSimilarResult []memory.ConversationRecord

	// SearchSimilarErr is returned by SearchSimilar when non-nil.
	SearchSimilarErr error
}

var _ memory.Store = (*Store)(nil)

// CreateRecord implements memory.Store.
func (s *Store) CreateRecord(_ context.Context, rec memory.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "CreateRecord", Args: []any{rec}})

	if s.CreateRecordErr != nil {
		created := len(s.records)
		if s.CreateRecordErrAfter == 0 || created >= s.CreateRecordErrAfter {
			return s.CreateRecordErr
		}
	}
	s.records = append(s.records, rec)
	return nil
}

// Recent implements memory.Store.
func (s *Store) Recent(_ context.Context, conversationID string, limit int) ([]memory.ConversationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "Recent", Args: []any{conversationID, limit}})

	if s.RecentErr != nil {
		return nil, s.RecentErr
	}
	if s.RecentResult != nil {
		out := make([]memory.ConversationRecord, len(s.RecentResult))
		copy(out, s.RecentResult)
		return out, nil
	}

	matched := make([]memory.ConversationRecord, 0, len(s.records))
	for _, r := range s.records {
		if r.ConversationID == conversationID {
			matched = append(matched, r)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

// SearchSimilar implements memory.Store.
func (s *Store) SearchSimilar(_ context.Context, conversationID string, embedding []float32, topK int) ([]memory.ConversationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: "SearchSimilar", Args: []any{conversationID, embedding, topK}})

	if s.SearchSimilarErr != nil {
		return nil, s.SearchSimilarErr
	}
	out := make([]memory.ConversationRecord, len(s.SearchSimilarResult))
	copy(out, s.SearchSimilarResult)
	return out, nil
}

// Records returns a copy of every record successfully created so far.
func (s *Store) Records() []memory.ConversationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]memory.ConversationRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Calls returns a copy of all recorded method invocations.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of invocations of the named method.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}
