package evidence

import (
	"context"
	"errors"
)

// Sentinel errors for evidence store operations.
var (
	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid evidence store configuration")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to evidence backend")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrEmptyQuery indicates an empty query string.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Evidence is one ranked retrieval result: a source excerpt with the
// corpus-assigned trust score and the backend similarity score.
type Evidence struct {
	SourceID   string         `json:"source_id"`
	Excerpt    string         `json:"excerpt"`
	TrustScore float64        `json:"trust_score"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Document is a corpus entry used when seeding a store.
type Document struct {
	SourceID   string
	Content    string
	TrustScore float64
	Metadata   map[string]any
}

// Embedder generates vector embeddings from text. Satisfied by the
// embeddings service; vector-backed stores need one.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the read-only retrieval interface consumed by pipeline stages.
//
// Query must be deterministic for identical corpus state and must return
// an empty slice (not an error) when no matches exist. Filters match
// document metadata by equality; only documents matching all filters are
// returned.
type Store interface {
	Query(ctx context.Context, text string, filters map[string]any, k int) ([]Evidence, error)
	Close() error
}

// Seeder is implemented by stores that support out-of-band corpus loading.
type Seeder interface {
	Add(ctx context.Context, docs []Document) error
}
