package evidence

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory evidence store scoring by query-term overlap.
// Deterministic by construction: identical corpus state and query always
// produce the same ranking. Used in tests and offline pipeline runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add seeds the store with corpus documents.
func (s *MemoryStore) Add(ctx context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
	return nil
}

// Query ranks documents by term overlap with the query, ties broken by
// trust score then source ID so the ordering is stable.
func (s *MemoryStore) Query(ctx context.Context, text string, filters map[string]any, k int) ([]Evidence, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	queryTokens := tokenize(text)

	type scored struct {
		ev    Evidence
		score float64
	}
	var matches []scored
	for _, doc := range s.docs {
		if !matchesFilters(doc.Metadata, filters) {
			continue
		}
		overlap := termOverlap(queryTokens, tokenize(doc.Content))
		if overlap == 0 {
			continue
		}
		matches = append(matches, scored{
			ev: Evidence{
				SourceID:   doc.SourceID,
				Excerpt:    doc.Content,
				TrustScore: doc.TrustScore,
				Score:      overlap,
				Metadata:   doc.Metadata,
			},
			score: overlap,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		if matches[i].ev.TrustScore != matches[j].ev.TrustScore {
			return matches[i].ev.TrustScore > matches[j].ev.TrustScore
		}
		return matches[i].ev.SourceID < matches[j].ev.SourceID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	results := make([]Evidence, len(matches))
	for i, m := range matches {
		results[i] = m.ev
	}
	return results, nil
}

// Close releases nothing; MemoryStore holds no external resources.
func (s *MemoryStore) Close() error {
	return nil
}

func matchesFilters(metadata map[string]any, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := metadata[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}
