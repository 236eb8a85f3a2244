package evidence

import (
	"fmt"

	"go.uber.org/zap"
)

// Provider identifies an evidence store backend.
type Provider string

const (
	ProviderMemory  Provider = "memory"
	ProviderChromem Provider = "chromem"
	ProviderQdrant  Provider = "qdrant"
)

// Config selects and configures the evidence backend.
type Config struct {
	Provider Provider      `koanf:"provider"`
	Chromem  ChromemConfig `koanf:"chromem"`
	Qdrant   QdrantConfig  `koanf:"qdrant"`

	// TopK is the default result count per stage retrieval.
	TopK int `koanf:"top_k"`
}

// ApplyDefaults fills zero values. Chromem is the default because it is
// embedded and needs no external services.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderChromem
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	c.Chromem.ApplyDefaults()
	c.Qdrant.ApplyDefaults()
}

// NewStore builds the configured backend. The memory provider ignores the
// embedder; vector backends require one.
func NewStore(cfg Config, embedder Embedder, logger *zap.Logger) (Store, error) {
	cfg.ApplyDefaults()
	switch cfg.Provider {
	case ProviderMemory:
		return NewMemoryStore(), nil
	case ProviderChromem:
		return NewChromemStore(cfg.Chromem, embedder, logger)
	case ProviderQdrant:
		return NewQdrantStore(cfg.Qdrant, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
