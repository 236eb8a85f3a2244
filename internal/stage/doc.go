// Package stage executes a single pipeline stage under the evidence-gating
// contract.
//
// The runner owns the full lifecycle of one stage attempt: dependency
// fail-fast, retrieval, capability invocation with timeout and retry,
// citation validation, confidence aggregation, and the handoff decision.
// Every run appends a StageRecord to the session whether it succeeded,
// failed, or timed out; the audit trail has no gaps.
package stage
