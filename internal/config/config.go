// Package config provides configuration loading for caseflowd.
//
// Configuration is read from a YAML file and overridden by environment
// variables, with defaults applied for anything unset. Every gating
// threshold the pipeline consults lives here so deployments can tune
// them without rebuilding.
package config

import (
	"fmt"

	"github.com/lexfoundry/caseflowd/internal/audit"
	"github.com/lexfoundry/caseflowd/internal/capability"
	"github.com/lexfoundry/caseflowd/internal/embeddings"
	"github.com/lexfoundry/caseflowd/internal/evidence"
	"github.com/lexfoundry/caseflowd/internal/logging"
	"github.com/lexfoundry/caseflowd/internal/mcpserver"
	"github.com/lexfoundry/caseflowd/internal/orchestrator"
	"github.com/lexfoundry/caseflowd/internal/server"
	"github.com/lexfoundry/caseflowd/internal/stage"
	"github.com/lexfoundry/caseflowd/internal/telemetry"
)

// Config holds the complete caseflowd configuration.
type Config struct {
	Server        server.Config        `koanf:"server"`
	Evidence      evidence.Config      `koanf:"evidence"`
	Embeddings    embeddings.Config    `koanf:"embeddings"`
	Capability    capability.LLMConfig `koanf:"capability"`
	Stage         stage.Config         `koanf:"stage"`
	Orchestrator  orchestrator.Config  `koanf:"orchestrator"`
	Audit         audit.NATSConfig     `koanf:"audit"`
	MCP           mcpserver.Config     `koanf:"mcp"`
	Validation    ValidationConfig     `koanf:"validation"`
	Logging       logging.Config       `koanf:"logging"`
	Observability telemetry.Config     `koanf:"observability"`

	// Persistence is the session store location. Empty means in-memory
	// only (no crash recovery).
	PersistDir string `koanf:"persist_dir"`

	// CorpusPath points at a JSON file of corpus documents seeded into
	// the evidence store at startup.
	CorpusPath string `koanf:"corpus_path"`

	// Offline replaces the model-backed capability with the deterministic
	// scripted pipeline. Audit publishing falls back to no-op.
	Offline bool `koanf:"offline"`
}

// ValidationConfig carries the evidence-gating thresholds.
type ValidationConfig struct {
	// OverlapThreshold is the minimum normalized excerpt overlap for a
	// citation to count as VERIFIED rather than WEAK.
	OverlapThreshold float64 `koanf:"overlap_threshold"`

	// MinCoverage is the retrieval coverage below which confidence is
	// capped at MEDIUM.
	MinCoverage float64 `koanf:"min_coverage"`

	// MinSelfReported is the self-reported confidence below which
	// validated confidence is capped at MEDIUM.
	MinSelfReported float64 `koanf:"min_self_reported"`
}

// ApplyDefaults fills unset validation thresholds.
func (c *ValidationConfig) ApplyDefaults() {
	if c.OverlapThreshold <= 0 {
		c.OverlapThreshold = 0.6
	}
	if c.MinCoverage <= 0 {
		c.MinCoverage = 0.5
	}
	if c.MinSelfReported <= 0 {
		c.MinSelfReported = 0.7
	}
}

// applyDefaults fills every section's defaults.
func applyDefaults(cfg *Config) {
	cfg.Server.ApplyDefaults()
	cfg.Evidence.ApplyDefaults()
	cfg.Embeddings.ApplyDefaults()
	cfg.Capability.ApplyDefaults()
	cfg.Stage.ApplyDefaults()
	cfg.Orchestrator.ApplyDefaults()
	cfg.Audit.ApplyDefaults()
	cfg.MCP.ApplyDefaults()
	cfg.Validation.ApplyDefaults()
	if cfg.Logging.Level == "" {
		cfg.Logging = logging.NewDefaultConfig()
	}
	cfg.Observability.ApplyDefaults()
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Validation.OverlapThreshold > 1 {
		return fmt.Errorf("validation.overlap_threshold must be in (0, 1], got %v", c.Validation.OverlapThreshold)
	}
	if c.Validation.MinCoverage > 1 {
		return fmt.Errorf("validation.min_coverage must be in (0, 1], got %v", c.Validation.MinCoverage)
	}
	if c.Validation.MinSelfReported > 1 {
		return fmt.Errorf("validation.min_self_reported must be in (0, 1], got %v", c.Validation.MinSelfReported)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Evidence.Provider {
	case evidence.ProviderMemory, evidence.ProviderChromem, evidence.ProviderQdrant:
	default:
		return fmt.Errorf("evidence.provider must be memory, chromem, or qdrant, got %q", c.Evidence.Provider)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}
