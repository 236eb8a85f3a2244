package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lexfoundry/caseflowd/internal/capability"
	"github.com/lexfoundry/caseflowd/internal/evidence"
	"github.com/lexfoundry/caseflowd/internal/session"
)

// NewOfflineInvoker returns a scripted invoker implementing every default
// stage deterministically, without a model endpoint. Output quality is
// template-grade; the full gating path (retrieval, citation validation,
// confidence, gates) runs exactly as it would against a real model, which
// is the point.
func NewOfflineInvoker() *capability.Scripted {
	s := capability.NewScripted()
	s.Register(IssueExtraction, offlineIssueExtraction)
	s.Register(Retrieval, offlineRetrieval)
	s.Register(LimitationCheck, offlineLimitation)
	s.Register(ArgumentBuild, offlineArguments)
	s.Register(Draft, offlineDraft)
	s.Register(ComplianceCheck, offlineCompliance)
	s.Register(AidSuggestion, offlineAid)
	return s
}

func respond(output any, claims []session.Claim, selfReported float64) (*capability.Response, error) {
	raw, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	return &capability.Response{Output: raw, Claims: claims, SelfReported: selfReported}, nil
}

// evidenceClaims builds one claim per retrieved source, each citing a
// verbatim excerpt prefix so validation can verify it.
func evidenceClaims(results []evidence.Evidence, limit int) []session.Claim {
	var claims []session.Claim
	for i, ev := range results {
		if i >= limit {
			break
		}
		claims = append(claims, session.Claim{
			Text: fmt.Sprintf("Source %s records: %s", ev.SourceID, excerptPrefix(ev.Excerpt, 12)),
			Citations: []session.Citation{{
				SourceID:    ev.SourceID,
				ExcerptSpan: excerptPrefix(ev.Excerpt, 12),
			}},
		})
	}
	return claims
}

func excerptPrefix(text string, words int) string {
	fields := strings.Fields(text)
	if len(fields) > words {
		fields = fields[:words]
	}
	return strings.Join(fields, " ")
}

func offlineIssueExtraction(_ context.Context, req capability.Request) (*capability.Response, error) {
	facts := strings.ToLower(req.Intake.Facts)
	var issues []string
	for keyword, issue := range map[string]string{
		"deposit":    "recovery of security deposit",
		"limitation": "limitation period applicability",
		"evict":      "legality of eviction",
		"bail":       "grant of bail",
		"dowry":      "dowry-related offence",
		"consumer":   "deficiency in service",
		"contract":   "breach of contract",
		"salary":     "recovery of unpaid wages",
	} {
		if strings.Contains(facts, keyword) {
			issues = append(issues, issue)
		}
	}
	if len(issues) == 0 {
		issues = append(issues, "characterization of the dispute on the stated facts")
	}

	return respond(IssueOutput{
		Issues:   issues,
		CaseArea: string(req.Intake.CaseType),
		Summary:  fmt.Sprintf("Dispute in %s raising %d issue(s) on the stated facts.", req.Intake.Jurisdiction, len(issues)),
	}, nil, 0.85)
}

func offlineRetrieval(_ context.Context, req capability.Request) (*capability.Response, error) {
	authorities := make([]string, 0, len(req.Evidence))
	for _, ev := range req.Evidence {
		authorities = append(authorities, ev.SourceID)
	}
	return respond(ResearchOutput{
		Authorities: authorities,
		Summary:     fmt.Sprintf("%d authorities retrieved for the identified issues.", len(authorities)),
	}, evidenceClaims(req.Evidence, 3), 0.8)
}

func offlineLimitation(_ context.Context, req capability.Request) (*capability.Response, error) {
	facts := strings.ToLower(req.Intake.Facts)
	var bars []string
	if strings.Contains(facts, "delay") {
		bars = append(bars, "facts mention delay; limitation concerns may arise depending on the cause of action")
	}
	if strings.Contains(facts, "years") || strings.Contains(facts, "months") {
		bars = append(bars, "a time duration is mentioned; verify it against the applicable limitation threshold")
	}
	return respond(LimitationOutput{
		Summary: fmt.Sprintf("General limitation assessment for %s; exact periods depend on the governing statute and cause-of-action date.",
			req.Intake.Jurisdiction),
		PotentialTimeBars: bars,
		RecommendedSteps: []string{
			"identify the exact cause-of-action date",
			"check the applicable limitation statute for the dispute",
			"evaluate condonation of delay if a bar applies",
		},
	}, evidenceClaims(req.Evidence, 2), 0.75)
}

func offlineArguments(_ context.Context, req capability.Request) (*capability.Response, error) {
	var research ResearchOutput
	if raw, ok := req.Inputs[Retrieval]; ok {
		_ = json.Unmarshal(raw, &research)
	}
	args := make([]string, 0, len(research.Authorities))
	for _, src := range research.Authorities {
		args = append(args, fmt.Sprintf("the position recorded in %s supports the claimant on the stated facts", src))
	}
	if len(args) == 0 {
		args = append(args, "relief follows from the stated facts if proven")
	}
	return respond(ArgumentOutput{
		Arguments:     args,
		CounterPoints: []string{"the respondent may dispute the factual narrative or raise limitation"},
	}, evidenceClaims(req.Evidence, 3), 0.8)
}

func offlineDraft(_ context.Context, req capability.Request) (*capability.Response, error) {
	var args ArgumentOutput
	if raw, ok := req.Inputs[ArgumentBuild]; ok {
		_ = json.Unmarshal(raw, &args)
	}

	docType := req.Intake.DocumentType
	if docType == "" {
		docType = "Legal Draft"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DOCUMENT TYPE: %s\nJURISDICTION: %s\n\n", docType, req.Intake.Jurisdiction)
	b.WriteString("FACTS:\n")
	b.WriteString(req.Intake.Facts)
	b.WriteString("\n\nSUBMISSIONS:\n")
	for i, arg := range args.Arguments {
		fmt.Fprintf(&b, "%d. %s\n", i+1, arg)
	}

	return respond(DraftOutput{
		DocumentType: docType,
		Body:         b.String(),
		Disclaimer:   Disclaimer,
	}, evidenceClaims(req.Evidence, 3), 0.8)
}

func offlineCompliance(_ context.Context, req capability.Request) (*capability.Response, error) {
	var draft DraftOutput
	if raw, ok := req.Inputs[Draft]; ok {
		if err := json.Unmarshal(raw, &draft); err != nil {
			return nil, fmt.Errorf("compliance input: %w", err)
		}
	}
	return respond(CheckDraft(draft.Body), nil, 0.9)
}

func offlineAid(_ context.Context, req capability.Request) (*capability.Response, error) {
	jurisdiction := strings.ToLower(req.Intake.Jurisdiction)
	var options []string
	var summary string
	if strings.Contains(jurisdiction, "india") || isIndianJurisdiction(jurisdiction) {
		options = []string{
			"National Legal Services Authority (NALSA), the national legal aid framework",
			"State Legal Services Authority (SLSA) for free legal aid in each state",
			"District Legal Services Authority (DLSA) at the nearest district court complex",
			"legal aid clinics in law colleges recognized by the state authority",
		}
		summary = "Legal aid is commonly provided through NALSA, SLSA, and DLSA; the nearest district court complex can direct you to DLSA help."
	} else {
		options = []string{
			"government-sponsored legal aid office in your jurisdiction",
			"bar association pro-bono services and court assistance desks",
			"community legal clinics and legal aid NGOs",
			"university law clinics offering free assistance",
		}
		summary = "Consult your local court helpdesk or official government portal for location-specific legal aid details."
	}
	if req.Intake.MonthlyIncome > 0 {
		if req.Intake.MonthlyIncome <= aidMeansTestMonthlyIncome {
			summary += " The stated monthly income falls within the usual means-test range for free legal aid; confirm the current ceiling with the local authority."
		} else {
			summary += " The stated monthly income is above the usual means-test range; categorical eligibility, such as for women, children, or persons in custody, may still apply."
		}
	}
	return respond(AidOutput{Options: options, Summary: summary}, nil, 0.9)
}

// aidMeansTestMonthlyIncome approximates the means-test ceiling applied
// by state legal services authorities. The exact figure varies by state,
// so the summary directs the applicant to the local authority instead of
// determining eligibility.
const aidMeansTestMonthlyIncome = 25000.0

// isIndianJurisdiction catches state and city jurisdictions that do not
// name the country.
func isIndianJurisdiction(jurisdiction string) bool {
	for _, marker := range []string{"delhi", "mumbai", "maharashtra", "karnataka", "chennai", "kolkata", "high court"} {
		if strings.Contains(jurisdiction, marker) {
			return true
		}
	}
	return false
}
