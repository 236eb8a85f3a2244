package evidence

import "strings"

// Coverage computes the fraction of query terms matched by at least one
// retrieved source. The aggregator caps confidence when coverage falls
// below its configured threshold.
func Coverage(query string, results []Evidence) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}

	matched := map[string]bool{}
	for _, ev := range results {
		for _, tok := range tokenize(ev.Excerpt) {
			matched[tok] = true
		}
	}

	covered := 0
	seen := map[string]bool{}
	for _, tok := range queryTokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if matched[tok] {
			covered++
		}
	}
	return float64(covered) / float64(len(seen))
}

// tokenize splits text into lowercase terms, dropping stopwords and
// tokens shorter than three characters.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !isStopword(token) && len(token) > 2 {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

func isStopword(token string) bool {
	return stopwords[token]
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "under": true, "any": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
}

// termOverlap is the ratio of unique query tokens found in the document
// tokens, between 0.0 and 1.0.
func termOverlap(queryTokens, docTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	docSet := make(map[string]bool, len(docTokens))
	for _, tok := range docTokens {
		docSet[tok] = true
	}

	matchCount := 0
	unique := make(map[string]bool)
	for _, tok := range queryTokens {
		if unique[tok] {
			continue
		}
		unique[tok] = true
		if docSet[tok] {
			matchCount++
		}
	}
	return float64(matchCount) / float64(len(unique))
}
