package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// corpusEntry is the on-disk form of a corpus document.
type corpusEntry struct {
	SourceID   string         `json:"source_id"`
	Content    string         `json:"content"`
	TrustScore float64        `json:"trust_score"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// LoadCorpusFile reads a JSON array of corpus documents from path.
// Unscored entries default to a trust score of 0.5.
func LoadCorpusFile(path string) ([]Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file: %w", err)
	}

	var entries []corpusEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing corpus file %s: %w", path, err)
	}

	docs := make([]Document, 0, len(entries))
	for i, e := range entries {
		if e.SourceID == "" {
			return nil, fmt.Errorf("corpus entry %d: source_id is required", i)
		}
		if e.Content == "" {
			return nil, fmt.Errorf("corpus entry %d (%s): content is required", i, e.SourceID)
		}
		if e.TrustScore == 0 {
			e.TrustScore = 0.5
		}
		if e.TrustScore < 0 || e.TrustScore > 1 {
			return nil, fmt.Errorf("corpus entry %d (%s): trust_score must be in [0, 1]", i, e.SourceID)
		}
		docs = append(docs, Document{
			SourceID:   e.SourceID,
			Content:    e.Content,
			TrustScore: e.TrustScore,
			Metadata:   e.Metadata,
		})
	}
	return docs, nil
}

// Seed loads docs into a store that supports corpus loading.
func Seed(ctx context.Context, store Store, docs []Document) error {
	seeder, ok := store.(Seeder)
	if !ok {
		return fmt.Errorf("store %T does not support corpus seeding", store)
	}
	return seeder.Add(ctx, docs)
}
