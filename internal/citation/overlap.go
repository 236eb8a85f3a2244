package citation

import (
	"strings"
	"unicode"
)

// DefaultOverlapThreshold is the minimum normalized excerpt overlap for a
// citation to be VERIFIED rather than WEAK.
const DefaultOverlapThreshold = 0.6

// normalizedOverlap scores how much of the cited excerpt is actually
// present in the source text, in [0, 1]. An exact (case- and
// whitespace-insensitive) substring match scores 1.0; otherwise the score
// is the fraction of unique excerpt terms found in the source.
func normalizedOverlap(excerpt, source string) float64 {
	ne, ns := normalize(excerpt), normalize(source)
	if ne == "" || ns == "" {
		return 0
	}
	if strings.Contains(ns, ne) {
		return 1.0
	}

	excerptTerms := termSet(ne)
	if len(excerptTerms) == 0 {
		return 0
	}
	sourceTerms := termSet(ns)

	matched := 0
	for term := range excerptTerms {
		if _, ok := sourceTerms[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(excerptTerms))
}

// normalize lowercases and collapses runs of non-alphanumeric characters
// to single spaces so punctuation differences never break matching.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func termSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, term := range strings.Fields(normalized) {
		if len(term) < 2 {
			continue
		}
		set[term] = struct{}{}
	}
	return set
}
