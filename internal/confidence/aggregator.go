package confidence

import (
	"github.com/lexfoundry/caseflowd/internal/citation"
	"github.com/lexfoundry/caseflowd/internal/session"
)

// Default thresholds used when the corresponding config value is unset.
const (
	DefaultMinCoverage     = 0.5
	DefaultMinSelfReported = 0.7
)

// Signals is everything the aggregator is allowed to look at. Anything not
// represented here cannot influence the grade.
type Signals struct {
	Citations    citation.Outcome
	Coverage     float64
	SelfReported float64
	// ClaimBearing marks output that asserts legal propositions. Such a
	// record must carry at least one surviving citation to grade HIGH,
	// even when the claim list itself came back empty.
	ClaimBearing bool
}

// Grade carries the validated confidence and the first cap rule that
// fired, for audit records.
type Grade struct {
	Confidence session.Confidence `json:"confidence"`
	Reason     string             `json:"reason"`
}

// Aggregator applies the cap table. Zero-value thresholds fall back to the
// package defaults.
type Aggregator struct {
	minCoverage     float64
	minSelfReported float64
}

// NewAggregator builds an aggregator with the given thresholds.
func NewAggregator(minCoverage, minSelfReported float64) *Aggregator {
	if minCoverage <= 0 {
		minCoverage = DefaultMinCoverage
	}
	if minSelfReported <= 0 {
		minSelfReported = DefaultMinSelfReported
	}
	return &Aggregator{minCoverage: minCoverage, minSelfReported: minSelfReported}
}

// Aggregate evaluates the cap table top to bottom and returns at the first
// matching rule. Order matters: the harshest caps are checked first so a
// later, milder rule can never mask a safety signal.
func (a *Aggregator) Aggregate(s Signals) Grade {
	switch {
	case s.Citations.AnyRejected():
		return Grade{session.ConfidenceLow, "one or more claims rejected during citation validation"}
	case s.ClaimBearing && s.Citations.VerifiedCount+s.Citations.WeakCount == 0:
		return Grade{session.ConfidenceMedium, "claim-bearing output carries no surviving citations"}
	case s.Citations.AnyWeak():
		return Grade{session.ConfidenceMedium, "claims rest on weak citations"}
	case s.Coverage < a.minCoverage:
		return Grade{session.ConfidenceMedium, "retrieval coverage below threshold"}
	case s.SelfReported < a.minSelfReported:
		return Grade{session.ConfidenceMedium, "self-reported confidence below threshold"}
	default:
		return Grade{session.ConfidenceHigh, "all citations verified with adequate coverage"}
	}
}
