package evidence

import (
	"fmt"
	"strings"
)

// Contradiction records a pair of retrieved sources supporting opposite
// conclusions on overlapping subject matter.
type Contradiction struct {
	SourceA string `json:"source_a"`
	SourceB string `json:"source_b"`
	Reason  string `json:"reason"`
}

// minSubjectOverlap is the term overlap two excerpts need before opposing
// polarity counts as a contradiction rather than two unrelated holdings.
const minSubjectOverlap = 0.2

var positiveOutcomes = []string{
	"granted", "allowed", "within limitation", "upheld", "maintainable",
	"entitled", "condoned", "within the statutory period",
}

var negativeOutcomes = []string{
	"dismissed", "rejected", "time-barred", "barred by limitation",
	"not maintainable", "denied", "not entitled", "refused",
}

// DetectContradictions runs a pairwise comparison over the retrieved set
// and reports source pairs with opposing outcome polarity on overlapping
// subject matter. Pairwise comparison rather than whole-set clustering:
// the simplest conformant check, and deterministic for a given result set.
func DetectContradictions(results []Evidence) []Contradiction {
	type polarized struct {
		ev       Evidence
		polarity int
		tokens   []string
	}

	items := make([]polarized, 0, len(results))
	for _, ev := range results {
		p := outcomePolarity(ev.Excerpt)
		if p == 0 {
			continue
		}
		items = append(items, polarized{ev: ev, polarity: p, tokens: tokenize(ev.Excerpt)})
	}

	var found []Contradiction
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			if items[i].polarity == items[j].polarity {
				continue
			}
			if termOverlap(items[i].tokens, items[j].tokens) < minSubjectOverlap {
				continue
			}
			found = append(found, Contradiction{
				SourceA: items[i].ev.SourceID,
				SourceB: items[j].ev.SourceID,
				Reason: fmt.Sprintf("sources %s and %s support opposite outcomes on overlapping subject matter",
					items[i].ev.SourceID, items[j].ev.SourceID),
			})
		}
	}
	return found
}

// outcomePolarity classifies an excerpt as favorable (+1), unfavorable
// (-1), or neutral (0). An excerpt carrying both signals is neutral: it
// likely discusses both positions and cannot anchor a contradiction.
func outcomePolarity(excerpt string) int {
	text := strings.ToLower(excerpt)
	pos := containsAny(text, positiveOutcomes)
	neg := containsAny(text, negativeOutcomes)
	switch {
	case pos && !neg:
		return 1
	case neg && !pos:
		return -1
	default:
		return 0
	}
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
