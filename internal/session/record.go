package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Confidence is the validated confidence level of a stage record, produced
// by the confidence aggregator after citation validation. It is distinct
// from the stage's self-reported score in [0,1].
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Decision is the handoff gate outcome for a stage record.
type Decision string

const (
	// DecisionPass allows downstream stages to schedule.
	DecisionPass Decision = "PASS"

	// DecisionEscalate requires human confirmation before dependents run.
	DecisionEscalate Decision = "ESCALATE"

	// DecisionBlock halts the dependent branch until a human overrides.
	DecisionBlock Decision = "BLOCK"
)

// RecordState is the lifecycle state of a single stage record.
// It is distinct from the session-level Status.
type RecordState string

const (
	RecordPending   RecordState = "PENDING"
	RecordRunning   RecordState = "RUNNING"
	RecordSucceeded RecordState = "SUCCEEDED"
	RecordFailed    RecordState = "FAILED"
)

// Citation references a specific source excerpt in the retrieval corpus.
// It is a weak reference: the corpus can change between sessions, so
// citations are revalidated against the retrieval set of the stage that
// produced them, never assumed valid forever.
type Citation struct {
	SourceID    string  `json:"source_id"`
	ExcerptSpan string  `json:"excerpt_span"`
	TrustScore  float64 `json:"trust_score"`
}

// Claim is an assertion produced by a stage that purports to be grounded
// in one or more sources.
type Claim struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
}

// StageRecord captures one specialist invocation's outcome. Records are
// immutable once terminal, except for the SupersededBy link set when a
// human-triggered re-run replaces them.
type StageRecord struct {
	ID        string      `json:"id"`
	StageName string      `json:"stage_name"`
	State     RecordState `json:"state"`

	// InputSnapshot is the exact structured input the stage consumed,
	// kept for reproducibility and audit.
	InputSnapshot json.RawMessage `json:"input_snapshot,omitempty"`
	Output        json.RawMessage `json:"output,omitempty"`

	Claims    []Claim    `json:"claims,omitempty"`
	Citations []Citation `json:"citations,omitempty"`

	SelfReported        float64    `json:"self_reported_confidence"`
	ValidatedConfidence Confidence `json:"validated_confidence,omitempty"`

	Handoff       Decision `json:"handoff_decision,omitempty"`
	HandoffReason string   `json:"handoff_reason,omitempty"`

	AttemptCount int    `json:"attempt_count"`
	ErrorKind    string `json:"error_kind,omitempty"`
	LastError    string `json:"last_error,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`

	SupersededBy string `json:"superseded_by,omitempty"`
}

// NewStageRecord creates a pending record for a scheduled stage.
func NewStageRecord(stageName string) *StageRecord {
	return &StageRecord{
		ID:        uuid.New().String(),
		StageName: stageName,
		State:     RecordPending,
		StartedAt: time.Now().UTC(),
	}
}

// Terminal reports whether the record has reached a final state.
func (r *StageRecord) Terminal() bool {
	return r.State == RecordSucceeded || r.State == RecordFailed
}

// Succeeded reports whether the record completed successfully.
func (r *StageRecord) Succeeded() bool {
	return r.State == RecordSucceeded
}

// StaleRunning reports whether the record was left RUNNING past the grace
// period, which means the process crashed mid-stage. The crash-recovery
// sweep converts such records to FAILED; they are never resurrected as
// SUCCEEDED.
func (r *StageRecord) StaleRunning(grace time.Duration, now time.Time) bool {
	return r.State == RecordRunning && now.Sub(r.StartedAt) > grace
}
