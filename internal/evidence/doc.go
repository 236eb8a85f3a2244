// Package evidence provides read-only access to the retrieval corpus that
// grounds every claim the pipeline surfaces.
//
// The Store interface returns ranked (source, excerpt, trust score) tuples
// for a query. It is deterministic for identical corpus state and returns
// an empty slice, not an error, when nothing matches. Stores are safely
// shared across sessions without locking because the pipeline treats the
// corpus as read-only; seeding happens out of band.
//
// Backends:
//   - MemoryStore: deterministic term-overlap scoring, used in tests and
//     offline runs.
//   - ChromemStore: embedded chromem-go database (default).
//   - QdrantStore: external Qdrant over gRPC with transient-error retry.
//
// The package also owns two retrieval-derived signals consumed by the
// confidence aggregator and the handoff gate: query-term coverage and
// pairwise contradiction detection between retrieved sources.
package evidence
