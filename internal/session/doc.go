// Package session holds the case session data model: the mutable state
// container threaded through the pipeline, its append-only stage records,
// and the domain enums (status, confidence, handoff decision) shared by
// the validator, aggregator, and gate packages.
//
// A CaseSession is exclusively owned by the orchestrator that drives it.
// No other component writes to it directly; stage runners and gates return
// values which the orchestrator applies. This keeps session mutation
// single-writer even when independent pipeline branches run concurrently.
//
// Invariants enforced here:
//   - Intake is immutable once the session starts; corrections create a
//     new intake revision.
//   - StageRecords are append-only and never silently re-run; a human
//     triggered re-run links the old record via SupersededBy.
//   - Risk flags are computed once at intake and read-only thereafter.
//   - Session status transitions are monotonic except the
//     AWAITING_HUMAN -> RUNNING resume edge (and the human-override edge
//     out of BLOCKED).
package session
