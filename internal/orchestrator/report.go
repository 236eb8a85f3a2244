package orchestrator

import (
	"time"

	"github.com/lexfoundry/caseflowd/internal/session"
	"github.com/lexfoundry/caseflowd/internal/stages"
)

// Report is the sole externally visible artifact of a case. It references
// every stage record, every citation, the final status, and the mandatory
// disclaimer; unresolved stages are listed explicitly rather than hidden.
type Report struct {
	CaseID      string             `json:"case_id"`
	Status      session.Status     `json:"status"`
	Intake      session.Intake     `json:"intake"`
	RiskFlags   []session.RiskFlag `json:"risk_flags,omitempty"`
	Stages      []StageSummary     `json:"stages"`
	Citations   []session.Citation `json:"citations"`
	Unresolved  []UnresolvedStage  `json:"unresolved,omitempty"`
	Disclaimer  string             `json:"disclaimer"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// StageSummary reports one stage record's outcome.
type StageSummary struct {
	Stage        string              `json:"stage"`
	RecordID     string              `json:"record_id"`
	State        session.RecordState `json:"state"`
	Confidence   session.Confidence  `json:"confidence,omitempty"`
	Handoff      session.Decision    `json:"handoff,omitempty"`
	Reason       string              `json:"reason,omitempty"`
	ErrorKind    string              `json:"error_kind,omitempty"`
	Attempts     int                 `json:"attempts"`
	Superseded   bool                `json:"superseded,omitempty"`
	SupersededBy string              `json:"superseded_by,omitempty"`
}

// UnresolvedStage names a stage that did not reach PASS and why.
type UnresolvedStage struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// BuildReport compiles the case-level report from a session. It reads the
// session only; repeated calls on the same session state are identical
// except for the generation timestamp.
func BuildReport(sess *session.CaseSession) *Report {
	report := &Report{
		CaseID:      sess.CaseID,
		Status:      sess.Status,
		Intake:      sess.Intake,
		RiskFlags:   sess.RiskFlags,
		Disclaimer:  stages.Disclaimer,
		GeneratedAt: time.Now().UTC(),
	}

	for _, rec := range sess.Records {
		summary := StageSummary{
			Stage:        rec.StageName,
			RecordID:     rec.ID,
			State:        rec.State,
			Confidence:   rec.ValidatedConfidence,
			Handoff:      rec.Handoff,
			Reason:       rec.HandoffReason,
			ErrorKind:    rec.ErrorKind,
			Attempts:     rec.AttemptCount,
			Superseded:   rec.SupersededBy != "",
			SupersededBy: rec.SupersededBy,
		}
		report.Stages = append(report.Stages, summary)

		if rec.SupersededBy != "" {
			continue
		}
		report.Citations = append(report.Citations, rec.Citations...)

		switch {
		case rec.State == session.RecordFailed:
			report.Unresolved = append(report.Unresolved, UnresolvedStage{
				Stage:  rec.StageName,
				Status: string(rec.State),
				Reason: rec.LastError,
			})
		case rec.Handoff == session.DecisionEscalate || rec.Handoff == session.DecisionBlock:
			report.Unresolved = append(report.Unresolved, UnresolvedStage{
				Stage:  rec.StageName,
				Status: string(rec.Handoff),
				Reason: rec.HandoffReason,
			})
		}
	}
	if report.Citations == nil {
		report.Citations = []session.Citation{}
	}
	return report
}
