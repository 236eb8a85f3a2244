package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ChromemConfig configures the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the on-disk database location. Supports ~ expansion.
	Path string `koanf:"path"`

	// Collection is the corpus collection name.
	Collection string `koanf:"collection"`

	// Compress enables gzip compression of persisted segments.
	Compress bool `koanf:"compress"`
}

// ApplyDefaults fills zero values with production defaults.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/caseflowd/evidence"
	}
	if c.Collection == "" {
		c.Collection = "caseflowd_corpus"
	}
}

// Validate checks the configuration.
func (c *ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: chromem path required", ErrInvalidConfig)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: chromem collection required", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore is the embedded evidence backend. No external services
// required; documents persist under the configured path.
type ChromemStore struct {
	db       *chromem.DB
	config   ChromemConfig
	embedder Embedder
	logger   *zap.Logger
}

// NewChromemStore opens (or creates) the persistent database.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding chromem path: %w", err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem database at %s: %w", path, err)
	}

	return &ChromemStore{
		db:       db,
		config:   config,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// embeddingFunc adapts the Embedder to chromem's callback.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) collection() (*chromem.Collection, error) {
	return s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc())
}

// Add seeds the corpus collection.
func (s *ChromemStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	col, err := s.collection()
	if err != nil {
		return fmt.Errorf("getting collection %s: %w", s.config.Collection, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		metadata := map[string]string{
			"trust_score": strconv.FormatFloat(doc.TrustScore, 'f', -1, 64),
		}
		for k, v := range doc.Metadata {
			metadata[k] = fmt.Sprintf("%v", v)
		}
		chromemDocs[i] = chromem.Document{
			ID:       doc.SourceID,
			Content:  doc.Content,
			Metadata: metadata,
		}
	}

	if err := col.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return fmt.Errorf("adding documents to %s: %w", s.config.Collection, err)
	}
	s.logger.Debug("seeded evidence corpus",
		zap.String("collection", s.config.Collection),
		zap.Int("documents", len(docs)),
	)
	return nil
}

// Query performs similarity search over the corpus collection.
func (s *ChromemStore) Query(ctx context.Context, text string, filters map[string]any, k int) ([]Evidence, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	col, err := s.collection()
	if err != nil {
		return nil, fmt.Errorf("getting collection %s: %w", s.config.Collection, err)
	}

	// chromem requires nResults <= document count.
	count := col.Count()
	if count == 0 {
		return []Evidence{}, nil
	}
	if k > count {
		k = count
	}

	where := make(map[string]string, len(filters))
	for key, v := range filters {
		where[key] = fmt.Sprintf("%v", v)
	}

	results, err := col.Query(ctx, text, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	evidences := make([]Evidence, len(results))
	for i, r := range results {
		ev := Evidence{
			SourceID: r.ID,
			Excerpt:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: make(map[string]any, len(r.Metadata)),
		}
		for mk, mv := range r.Metadata {
			ev.Metadata[mk] = mv
		}
		if raw, ok := r.Metadata["trust_score"]; ok {
			if trust, err := strconv.ParseFloat(raw, 64); err == nil {
				ev.TrustScore = trust
			}
		}
		evidences[i] = ev
	}

	s.logger.Debug("queried evidence corpus",
		zap.String("collection", s.config.Collection),
		zap.Int("k", k),
		zap.Int("results", len(evidences)),
	)
	return evidences, nil
}

// Close releases database resources.
func (s *ChromemStore) Close() error {
	return nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
