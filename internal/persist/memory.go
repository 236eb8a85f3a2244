package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/lexfoundry/caseflowd/internal/session"
)

// MemoryStore keeps snapshots in process memory. Snapshots are stored as
// marshaled JSON so callers never share pointers with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	cases map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cases: make(map[string][]byte)}
}

// Save replaces the stored snapshot.
func (s *MemoryStore) Save(_ context.Context, sess *session.CaseSession) error {
	if sess == nil || sess.CaseID == "" {
		return fmt.Errorf("session with case ID required")
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sess.CaseID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[sess.CaseID] = raw
	return nil
}

// Load returns a deep copy of the stored session.
func (s *MemoryStore) Load(_ context.Context, caseID string) (*session.CaseSession, error) {
	s.mu.RLock()
	raw, ok := s.cases[caseID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, caseID)
	}

	var sess session.CaseSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", caseID, err)
	}
	return &sess, nil
}

// List returns stored case IDs in sorted order.
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.cases))
	for id := range s.cases {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases nothing; MemoryStore holds no external resources.
func (s *MemoryStore) Close() error { return nil }
