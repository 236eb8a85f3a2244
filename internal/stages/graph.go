package stages

import (
	"encoding/json"
	"strings"

	"github.com/lexfoundry/caseflowd/internal/session"
	"github.com/lexfoundry/caseflowd/internal/stage"
)

// Stage names. These are wire-stable: they appear in audit records,
// reports, and resume requests.
const (
	IssueExtraction = "issue-extraction"
	Retrieval       = "retrieval"
	LimitationCheck = "limitation-check"
	ArgumentBuild   = "argument-build"
	Draft           = "draft"
	ComplianceCheck = "compliance-check"
	AidSuggestion   = "aid-suggestion"
)

// Default returns the standard case pipeline. The main chain runs issue
// extraction through compliance check; aid suggestion branches off issue
// extraction and proceeds independently of the drafting chain.
func Default() []stage.Definition {
	return []stage.Definition{
		{
			Name:       IssueExtraction,
			Idempotent: true,
			Directive: "Identify the legal issues raised by the case intake. " +
				"List each distinct issue, name the broad case area, and summarize the dispute in two sentences. " +
				"Do not assert legal conclusions and do not cite authorities at this stage.",
			ValidateOutput: validateIssueOutput,
		},
		{
			Name:         Retrieval,
			DependsOn:    []string{IssueExtraction},
			ClaimBearing: true,
			Idempotent:   true,
			Directive: "Find the retrieved sources relevant to each identified issue. " +
				"Every assertion about what a source holds must cite that source by source_id with the supporting excerpt. " +
				"If no source supports an issue, say so instead of asserting anything.",
			Query:          issueQuery,
			ValidateOutput: validateResearchOutput,
		},
		{
			Name:         LimitationCheck,
			DependsOn:    []string{IssueExtraction},
			ClaimBearing: true,
			Idempotent:   true,
			Directive: "Assess limitation-period considerations for the identified issues. " +
				"Flag possible time bars and condonation avenues. Statements about limitation law must cite a retrieved source. " +
				"Where exact dates are missing, keep the assessment general and say what information is needed.",
			Query:          limitationQuery,
			ValidateOutput: validateLimitationOutput,
		},
		{
			Name:         ArgumentBuild,
			DependsOn:    []string{Retrieval, LimitationCheck},
			ClaimBearing: true,
			Directive: "Build the strongest arguments supported by the retrieved authorities, with likely counter-points. " +
				"Every argument resting on an authority must cite it by source_id. Unsupported arguments are not acceptable.",
			Query:          issueQuery,
			ValidateOutput: validateArgumentOutput,
		},
		{
			Name:         Draft,
			DependsOn:    []string{ArgumentBuild},
			ClaimBearing: true,
			Directive: "Draft the requested document from the approved arguments. " +
				"Cite authorities exactly as retrieved. Include the disclaimer field verbatim: " +
				"\"" + Disclaimer + "\"",
			Query:          issueQuery,
			ValidateOutput: validateDraftOutput,
		},
		{
			Name:       ComplianceCheck,
			DependsOn:  []string{Draft},
			Idempotent: true,
			Directive: "Review the draft for unsupported assertions, malformed citations, and overconfident language. " +
				"Report each finding with its kind and the offending span. Report passed=true only with zero findings.",
			ValidateOutput: validateComplianceOutput,
		},
		{
			Name:       AidSuggestion,
			DependsOn:  []string{IssueExtraction},
			Idempotent: true,
			Directive: "Suggest general legal-aid avenues for the jurisdiction: legal services authorities, " +
				"pro-bono desks, law-clinic programs. Never invent phone numbers, addresses, or named lawyers, " +
				"and never determine eligibility.",
			ValidateOutput: validateAidOutput,
		},
	}
}

// Disclaimer is the mandatory text every generated draft and every case
// report carries.
const Disclaimer = "This document is generated for informational purposes only " +
	"and does not constitute legal advice. Please consult a qualified lawyer."

// issueQuery builds the retrieval query from the extracted issues plus the
// intake facts, falling back to facts alone when extraction output is not
// yet available to the building stage.
func issueQuery(intake session.Intake, inputs map[string]json.RawMessage) string {
	parts := []string{intake.Facts}
	if raw, ok := inputs[IssueExtraction]; ok {
		var out IssueOutput
		if err := json.Unmarshal(raw, &out); err == nil {
			parts = append(parts, out.Issues...)
		}
	}
	return strings.Join(parts, " ")
}

func limitationQuery(intake session.Intake, inputs map[string]json.RawMessage) string {
	return "limitation period " + issueQuery(intake, inputs)
}
