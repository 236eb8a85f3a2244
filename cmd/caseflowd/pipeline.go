package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lexfoundry/caseflowd/internal/audit"
	"github.com/lexfoundry/caseflowd/internal/capability"
	"github.com/lexfoundry/caseflowd/internal/citation"
	"github.com/lexfoundry/caseflowd/internal/confidence"
	"github.com/lexfoundry/caseflowd/internal/config"
	"github.com/lexfoundry/caseflowd/internal/embeddings"
	"github.com/lexfoundry/caseflowd/internal/evidence"
	"github.com/lexfoundry/caseflowd/internal/orchestrator"
	"github.com/lexfoundry/caseflowd/internal/persist"
	"github.com/lexfoundry/caseflowd/internal/stage"
	"github.com/lexfoundry/caseflowd/internal/stages"
)

// hashEmbedderDims is the vector size for the offline hash embedder,
// matching the BGE-small default so corpus collections are reusable.
const hashEmbedderDims = 384

// pipeline bundles the orchestrator with the resources it owns.
type pipeline struct {
	orch   *orchestrator.Orchestrator
	store  evidence.Store
	events audit.Publisher
	logger *zap.Logger
}

// Close releases pipeline resources. Safe to call once.
func (p *pipeline) Close() {
	if err := p.orch.Close(); err != nil {
		p.logger.Warn("orchestrator close failed", zap.Error(err))
	}
	if err := p.store.Close(); err != nil {
		p.logger.Warn("evidence store close failed", zap.Error(err))
	}
	if err := p.events.Close(); err != nil {
		p.logger.Warn("audit publisher close failed", zap.Error(err))
	}
}

// buildPipeline wires the evidence store, capability invoker, stage
// runner, and orchestrator from config. Offline mode swaps in the
// deterministic scripted invoker and drops audit publishing; everything
// else (retrieval, validation, gating) runs identically.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger, offline bool) (*pipeline, error) {
	var embedder evidence.Embedder
	if offline {
		embedder = embeddings.NewHashEmbedder(hashEmbedderDims)
	} else {
		svc, err := embeddings.NewService(cfg.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("creating embedding service: %w", err)
		}
		embedder = svc
	}

	store, err := evidence.NewStore(cfg.Evidence, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating evidence store: %w", err)
	}

	if cfg.CorpusPath != "" {
		docs, err := evidence.LoadCorpusFile(cfg.CorpusPath)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if err := evidence.Seed(ctx, store, docs); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("seeding corpus: %w", err)
		}
		logger.Info("corpus seeded",
			zap.String("path", cfg.CorpusPath),
			zap.Int("documents", len(docs)))
	}

	var invoker capability.Invoker
	if offline {
		invoker = stages.NewOfflineInvoker()
	} else {
		invoker, err = capability.NewLLMInvoker(cfg.Capability, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("creating capability invoker: %w", err)
		}
	}

	validator := citation.NewValidator(cfg.Validation.OverlapThreshold, logger)
	aggregator := confidence.NewAggregator(cfg.Validation.MinCoverage, cfg.Validation.MinSelfReported)
	runner := stage.NewRunner(invoker, store, validator, aggregator, cfg.Stage, logger)

	var sessions persist.Store
	if cfg.PersistDir != "" {
		sessions, err = persist.NewFileStore(cfg.PersistDir)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("creating session store: %w", err)
		}
	} else {
		sessions = persist.NewMemoryStore()
	}

	var events audit.Publisher = audit.NopPublisher{}
	if !offline {
		pub, err := audit.NewNATSPublisher(cfg.Audit, logger)
		if err != nil {
			logger.Warn("audit publisher unavailable, events will be dropped",
				zap.String("url", cfg.Audit.URL),
				zap.Error(err))
		} else {
			events = pub
		}
	}

	orch, err := orchestrator.New(runner, stages.Default(), sessions, events, cfg.Orchestrator, logger)
	if err != nil {
		_ = store.Close()
		_ = events.Close()
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	swept, err := orch.Recover(ctx)
	if err != nil {
		logger.Warn("session recovery failed", zap.Error(err))
	} else if swept > 0 {
		logger.Info("recovered interrupted sessions", zap.Int("stale_records_swept", swept))
	}

	return &pipeline{orch: orch, store: store, events: events, logger: logger}, nil
}
