// Package gate decides what happens to a stage output before any
// downstream stage may consume it.
//
// Decide is a pure function: same input, same decision, no clock, no I/O.
// That makes every handoff decision replayable from the audit trail alone.
package gate

import (
	"strings"

	"github.com/lexfoundry/caseflowd/internal/session"
)

// Input is the complete set of facts the gate may consider.
type Input struct {
	StageName     string
	ClaimBearing  bool
	Confidence    session.Confidence
	RiskFlags     []session.RiskFlag
	Contradiction bool
}

// Result is the decision plus a human-readable reason recorded verbatim in
// the stage's audit record.
type Result struct {
	Decision session.Decision `json:"decision"`
	Reason   string           `json:"reason"`
}

// Decide applies the handoff policy. Rules are ordered hardest first:
// BLOCK conditions are checked before ESCALATE, ESCALATE before PASS, so a
// stage can never pass on an optimistic signal while a harder rule holds.
func Decide(in Input) Result {
	for _, flag := range in.RiskFlags {
		if flag.HardRestricted() {
			return Result{session.DecisionBlock, "hard-restricted risk flag: " + string(flag)}
		}
	}
	if in.ClaimBearing && in.Confidence == session.ConfidenceLow {
		return Result{session.DecisionBlock, "claim-bearing stage at LOW confidence"}
	}

	if in.Contradiction {
		return Result{session.DecisionEscalate, "retrieved sources support contradictory outcomes"}
	}
	if in.Confidence == session.ConfidenceMedium {
		return Result{session.DecisionEscalate, "MEDIUM confidence requires human confirmation"}
	}
	if in.Confidence == session.ConfidenceLow {
		return Result{session.DecisionEscalate, "LOW confidence requires human confirmation"}
	}
	if len(in.RiskFlags) > 0 {
		return Result{session.DecisionEscalate, "risk flags present: " + joinFlags(in.RiskFlags)}
	}

	return Result{session.DecisionPass, "HIGH confidence, no contradiction, no risk flags"}
}

func joinFlags(flags []session.RiskFlag) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
