package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the session-level execution state.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusRunning       Status = "RUNNING"
	StatusAwaitingHuman Status = "AWAITING_HUMAN"
	StatusBlocked       Status = "BLOCKED"
	StatusCompleted     Status = "COMPLETED"
	StatusFailed        Status = "FAILED"
)

// validTransitions encodes the monotonic status machine. The only backward
// edges are the human resume (AWAITING_HUMAN -> RUNNING) and the explicit
// human override out of BLOCKED.
var validTransitions = map[Status][]Status{
	StatusPending:       {StatusRunning, StatusFailed},
	StatusRunning:       {StatusAwaitingHuman, StatusBlocked, StatusCompleted, StatusFailed},
	StatusAwaitingHuman: {StatusRunning, StatusBlocked, StatusFailed},
	StatusBlocked:       {StatusRunning, StatusFailed},
	StatusCompleted:     {},
	StatusFailed:        {},
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CaseType categorizes the matter described by the intake.
type CaseType string

const (
	CaseCivil    CaseType = "civil"
	CaseCriminal CaseType = "criminal"
	CaseConsumer CaseType = "consumer"
	CaseFamily   CaseType = "family"
	CaseWrit     CaseType = "writ"
	CaseUnknown  CaseType = "unknown"
)

// Intake holds the structured facts of one research/drafting request.
// It is immutable once the session starts; any correction produces a new
// revision via WithCorrection.
type Intake struct {
	Facts         string     `json:"facts"`
	Jurisdiction  string     `json:"jurisdiction"`
	CaseType      CaseType   `json:"case_type"`
	DocumentType  string     `json:"document_type,omitempty"`
	Sections      []string   `json:"sections,omitempty"`
	IncidentDate  *time.Time `json:"incident_date,omitempty"`
	MonthlyIncome float64    `json:"monthly_income,omitempty"`
	Revision      int        `json:"revision"`
}

// Validate checks the intake for the minimum fields the pipeline needs.
func (in Intake) Validate() error {
	if in.Facts == "" {
		return fmt.Errorf("intake facts cannot be empty")
	}
	if in.Jurisdiction == "" {
		return fmt.Errorf("intake jurisdiction cannot be empty")
	}
	return nil
}

// WithCorrection returns a copy of the intake with the given facts merged
// in and the revision bumped. The receiver is unchanged.
func (in Intake) WithCorrection(facts string) Intake {
	out := in
	if facts != "" {
		out.Facts = facts
	}
	out.Revision = in.Revision + 1
	return out
}

// CaseSession represents one end-to-end research/drafting request.
//
// The session is not internally synchronized: the owning orchestrator
// serializes all mutation. Readers outside the orchestrator must go
// through snapshots it hands out.
type CaseSession struct {
	CaseID    string         `json:"case_id"`
	Intake    Intake         `json:"intake"`
	Status    Status         `json:"status"`
	RiskFlags []RiskFlag     `json:"risk_flags,omitempty"`
	Records   []*StageRecord `json:"stage_records"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New creates a pending session for the given intake. Risk flags are
// computed exactly once here and are read-only afterwards.
func New(intake Intake) (*CaseSession, error) {
	if err := intake.Validate(); err != nil {
		return nil, fmt.Errorf("invalid intake: %w", err)
	}
	now := time.Now().UTC()
	return &CaseSession{
		CaseID:    uuid.New().String(),
		Intake:    intake,
		Status:    StatusPending,
		RiskFlags: ComputeRiskFlags(intake),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition moves the session to the given status, rejecting edges the
// monotonic state machine does not allow.
func (s *CaseSession) Transition(to Status) error {
	if s.Status == to {
		return nil
	}
	for _, allowed := range validTransitions[s.Status] {
		if allowed == to {
			s.Status = to
			s.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid session transition %s -> %s", s.Status, to)
}

// Append adds a stage record to the audit trail. Records are appended in
// the order stages reach a terminal state for their attempt; the slice
// order is the audit order. A completed record is accepted even after
// the session reaches a terminal status, so a stage that was in flight
// when the case was aborted still lands in the trail.
func (s *CaseSession) Append(rec *StageRecord) error {
	if rec == nil {
		return fmt.Errorf("cannot append nil stage record")
	}
	if s.Status.Terminal() && rec.State != RecordSucceeded && rec.State != RecordFailed {
		return fmt.Errorf("session %s is %s: no further records accepted", s.CaseID, s.Status)
	}
	s.Records = append(s.Records, rec)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Record returns the latest non-superseded record for a stage, or nil.
func (s *CaseSession) Record(stageName string) *StageRecord {
	for i := len(s.Records) - 1; i >= 0; i-- {
		rec := s.Records[i]
		if rec.StageName == stageName && rec.SupersededBy == "" {
			return rec
		}
	}
	return nil
}

// Supersede links an existing record to its human-triggered replacement.
func (s *CaseSession) Supersede(oldID, newID string) error {
	for _, rec := range s.Records {
		if rec.ID == oldID {
			if rec.SupersededBy != "" {
				return fmt.Errorf("record %s already superseded by %s", oldID, rec.SupersededBy)
			}
			rec.SupersededBy = newID
			s.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("record %s not found in session %s", oldID, s.CaseID)
}

// SweepStaleRunning converts records left RUNNING past the grace period to
// FAILED. Returns the number of records converted. Called on resume after
// a crash so partial runs never leave a live-looking record behind.
func (s *CaseSession) SweepStaleRunning(grace time.Duration) int {
	now := time.Now().UTC()
	swept := 0
	for _, rec := range s.Records {
		if rec.StaleRunning(grace, now) {
			rec.State = RecordFailed
			rec.ErrorKind = "Timeout"
			rec.LastError = "stage interrupted: record exceeded running grace period"
			rec.CompletedAt = now
			swept++
		}
	}
	if swept > 0 {
		s.UpdatedAt = now
	}
	return swept
}

// HasRisk reports whether the session carries the given risk flag.
func (s *CaseSession) HasRisk(flag RiskFlag) bool {
	for _, f := range s.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}
