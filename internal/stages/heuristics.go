package stages

import (
	"regexp"
	"sort"
	"strings"
)

// Deterministic text heuristics for the compliance check. These are
// conservative pattern checks, not legal analysis: they flag drafts that
// assert authority without carrying recognizable citations, and citation
// strings too malformed to identify a source.

var caseCitationPattern = regexp.MustCompile(`(?i)\bAIR\s+\d{4}\s+[A-Z]{2,}\s+\d+\b|\b\d{4}\s*\(\d+\)\s*SCC\s*\d+\b|\b\d{4}\s*\(\d+\)\s*CriLJ\s*\d+\b|\bMANU/[A-Z]{2,}/\d{3,4}/\d{4}\b|\b\d{4}\s*INSC\s*\d+\b`)

var statutePattern = regexp.MustCompile(`(?i)\bSection\s+\d+[A-Z]?\b|\bArticle\s+\d+\b|\bIPC\b|\bCrPC\b|\bCPC\b|\bConstitution of India\b|\bIndian Penal Code\b|\bCode of Criminal Procedure\b|\bCode of Civil Procedure\b`)

var strongClaimPattern = regexp.MustCompile(`(?i)\bheld that\b|\bestablished that\b|\bsettled law\b|\bthe Supreme Court\b|\bthe High Court\b|\bit is well[- ]settled\b|\bprecedent\b`)

var malformedCitationPattern = regexp.MustCompile(`(?i)\bAIR\s+SC\b|\bMANU/[A-Z]{2,}\b(?:[^/]|$)`)

var overconfidentTriggers = []string{
	"clearly establishes",
	"undoubtedly",
	"without any exception",
	"always applies",
	"never applies",
	"conclusively proves",
}

// ExtractCitationStrings pulls case and statute citation strings out of
// free text, deduplicated and sorted.
func ExtractCitationStrings(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	for _, m := range caseCitationPattern.FindAllString(text, -1) {
		seen[strings.TrimSpace(m)] = struct{}{}
	}
	for _, m := range statutePattern.FindAllString(text, -1) {
		seen[strings.TrimSpace(m)] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// HasStrongClaims reports whether text asserts legal authority in terms
// that demand a citation.
func HasStrongClaims(text string) bool {
	return strongClaimPattern.MatchString(text)
}

// OverconfidentPhrases returns the absolute-assertion phrases found in
// text. Such language is flagged regardless of citations.
func OverconfidentPhrases(text string) []string {
	lowered := strings.ToLower(text)
	var found []string
	for _, trigger := range overconfidentTriggers {
		if strings.Contains(lowered, trigger) {
			found = append(found, trigger)
		}
	}
	return found
}

// CheckDraft runs the full deterministic compliance scan over a draft.
func CheckDraft(body string) ComplianceOutput {
	var findings []ComplianceFinding

	citations := ExtractCitationStrings(body)
	if HasStrongClaims(body) && len(citations) == 0 {
		findings = append(findings, ComplianceFinding{
			Kind:    "UNSUPPORTED_CLAIM",
			Message: "strong legal assertions present but no recognizable citations found",
		})
	}

	for _, m := range malformedCitationPattern.FindAllString(body, -1) {
		findings = append(findings, ComplianceFinding{
			Kind:    "MALFORMED_CITATION",
			Message: "citation string is incomplete and cannot identify a source",
			Span:    strings.TrimSpace(m),
		})
	}

	for _, phrase := range OverconfidentPhrases(body) {
		findings = append(findings, ComplianceFinding{
			Kind:    "OVERCONFIDENT_LANGUAGE",
			Message: "absolute legal assertion without qualification",
			Span:    phrase,
		})
	}

	return ComplianceOutput{Findings: findings, Passed: len(findings) == 0}
}
