package session

import (
	"sort"
	"strings"
)

// RiskFlag tags a session with a domain-risk category. Flags are computed
// once at intake and consulted by the handoff gate for every stage.
type RiskFlag string

const (
	// RiskCriminalLiberty marks liberty-affecting criminal matters
	// (arrest, bail, custody). Mandatory escalation even at HIGH confidence.
	RiskCriminalLiberty RiskFlag = "criminal-liberty"

	// RiskMinorInvolved marks matters involving minors.
	RiskMinorInvolved RiskFlag = "minor-involved"

	// RiskFabricatedEvidence marks requests to manufacture or alter
	// evidence. Hard-restricted: always blocked regardless of confidence.
	RiskFabricatedEvidence RiskFlag = "fabricated-evidence"
)

// HardRestricted reports whether the flag blocks the pipeline outright.
func (f RiskFlag) HardRestricted() bool {
	return f == RiskFabricatedEvidence
}

var riskKeywords = map[RiskFlag][]string{
	RiskCriminalLiberty: {
		"arrest", "bail", "custody", "remand", "detention", "imprisonment",
		"anticipatory bail", "police station", "fir ",
	},
	RiskMinorInvolved: {
		"minor", "child", "juvenile", "guardianship", "custody of the child",
	},
	RiskFabricatedEvidence: {
		"fabricate", "fake evidence", "forge", "backdate", "tamper",
		"manufacture evidence", "false affidavit",
	},
}

// ComputeRiskFlags classifies the intake into risk categories with keyword
// heuristics. Deterministic on purpose: the gate's behavior must be
// reproducible from the intake alone.
func ComputeRiskFlags(intake Intake) []RiskFlag {
	text := strings.ToLower(intake.Facts)
	found := map[RiskFlag]bool{}

	if intake.CaseType == CaseCriminal {
		found[RiskCriminalLiberty] = true
	}
	for flag, words := range riskKeywords {
		for _, w := range words {
			if strings.Contains(text, w) {
				found[flag] = true
				break
			}
		}
	}

	flags := make([]RiskFlag, 0, len(found))
	for f := range found {
		flags = append(flags, f)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })
	return flags
}
