package stages

import (
	"encoding/json"
	"fmt"
)

// IssueOutput is the issue-extraction contract: the legal issues the
// intake raises, used by every downstream retrieval query.
type IssueOutput struct {
	Issues   []string `json:"issues"`
	CaseArea string   `json:"case_area,omitempty"`
	Summary  string   `json:"summary,omitempty"`
}

// ResearchOutput is the retrieval contract: authorities relevant to the
// identified issues, by corpus source ID.
type ResearchOutput struct {
	Authorities []string `json:"authorities"`
	Statutes    []string `json:"statutes,omitempty"`
	Summary     string   `json:"summary,omitempty"`
}

// LimitationOutput is the limitation-check contract. The assessment is
// advisory: exact periods depend on facts the intake may not carry.
type LimitationOutput struct {
	Summary           string   `json:"summary"`
	PotentialTimeBars []string `json:"potential_time_bars,omitempty"`
	RecommendedSteps  []string `json:"recommended_steps,omitempty"`
}

// ArgumentOutput is the argument-build contract.
type ArgumentOutput struct {
	Arguments     []string `json:"arguments"`
	CounterPoints []string `json:"counter_points,omitempty"`
	ReliefSought  string   `json:"relief_sought,omitempty"`
}

// DraftOutput is the drafting contract. Disclaimer is mandatory: a draft
// without it fails the output contract before any gate sees it.
type DraftOutput struct {
	DocumentType string `json:"document_type"`
	Body         string `json:"body"`
	Disclaimer   string `json:"disclaimer"`
}

// ComplianceOutput is the compliance-check contract: deterministic
// findings over the draft, one entry per detected problem.
type ComplianceOutput struct {
	Findings []ComplianceFinding `json:"findings"`
	Passed   bool                `json:"passed"`
}

// ComplianceFinding names one compliance problem in the draft.
type ComplianceFinding struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Span    string `json:"span,omitempty"`
}

// AidOutput is the legal-aid suggestion contract. Options are general
// guidance only: no phone numbers, no named lawyers, no eligibility
// determinations.
type AidOutput struct {
	Options []string `json:"options"`
	Summary string   `json:"summary,omitempty"`
}

func decodeStrict(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty output")
	}
	return json.Unmarshal(raw, v)
}

func validateIssueOutput(raw json.RawMessage) error {
	var out IssueOutput
	if err := decodeStrict(raw, &out); err != nil {
		return err
	}
	if len(out.Issues) == 0 {
		return fmt.Errorf("no issues identified")
	}
	return nil
}

func validateResearchOutput(raw json.RawMessage) error {
	var out ResearchOutput
	return decodeStrict(raw, &out)
}

func validateLimitationOutput(raw json.RawMessage) error {
	var out LimitationOutput
	if err := decodeStrict(raw, &out); err != nil {
		return err
	}
	if out.Summary == "" {
		return fmt.Errorf("limitation summary missing")
	}
	return nil
}

func validateArgumentOutput(raw json.RawMessage) error {
	var out ArgumentOutput
	if err := decodeStrict(raw, &out); err != nil {
		return err
	}
	if len(out.Arguments) == 0 {
		return fmt.Errorf("no arguments produced")
	}
	return nil
}

func validateDraftOutput(raw json.RawMessage) error {
	var out DraftOutput
	if err := decodeStrict(raw, &out); err != nil {
		return err
	}
	if out.Body == "" {
		return fmt.Errorf("draft body missing")
	}
	if out.Disclaimer == "" {
		return fmt.Errorf("draft disclaimer missing")
	}
	return nil
}

func validateComplianceOutput(raw json.RawMessage) error {
	var out ComplianceOutput
	return decodeStrict(raw, &out)
}

func validateAidOutput(raw json.RawMessage) error {
	var out AidOutput
	if err := decodeStrict(raw, &out); err != nil {
		return err
	}
	if len(out.Options) == 0 {
		return fmt.Errorf("no aid options listed")
	}
	return nil
}
