package citation

import (
	"go.uber.org/zap"

	"github.com/lexfoundry/caseflowd/internal/evidence"
	"github.com/lexfoundry/caseflowd/internal/session"
)

// Status classifies a single citation after validation.
type Status string

const (
	StatusVerified   Status = "VERIFIED"
	StatusWeak       Status = "WEAK"
	StatusUnverified Status = "UNVERIFIED"
)

// ValidatedCitation is a citation annotated with its validation result.
type ValidatedCitation struct {
	Citation session.Citation `json:"citation"`
	Status   Status           `json:"status"`
	Overlap  float64          `json:"overlap"`
}

// ClaimResult reports the per-claim verdict. A rejected claim must not be
// surfaced in any downstream output.
type ClaimResult struct {
	Claim     session.Claim       `json:"claim"`
	Citations []ValidatedCitation `json:"citations"`
	Rejected  bool                `json:"rejected"`
	Reason    string              `json:"reason,omitempty"`
}

// Outcome summarizes validation across all claims of a stage output. The
// confidence aggregator consumes it directly.
type Outcome struct {
	Results  []ClaimResult   `json:"results"`
	Retained []session.Claim `json:"retained"`

	RejectedCount int `json:"rejected_count"`
	WeakCount     int `json:"weak_count"`
	VerifiedCount int `json:"verified_count"`
}

// AnyRejected reports whether any claim was rejected.
func (o Outcome) AnyRejected() bool { return o.RejectedCount > 0 }

// AnyWeak reports whether any retained claim rests on a WEAK citation.
func (o Outcome) AnyWeak() bool { return o.WeakCount > 0 }

// Validator checks claims against the retrieval context of the stage that
// produced them. It is stateless and safe for concurrent use.
type Validator struct {
	threshold float64
	logger    *zap.Logger
}

// NewValidator builds a validator. A non-positive threshold falls back to
// DefaultOverlapThreshold.
func NewValidator(threshold float64, logger *zap.Logger) *Validator {
	if threshold <= 0 {
		threshold = DefaultOverlapThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{threshold: threshold, logger: logger}
}

// Validate checks every claim against the retrieval set the stage actually
// saw. claimBearing controls whether citation-free claims are tolerated:
// stages that assert legal positions must cite, purely structural stages
// need not.
func (v *Validator) Validate(claims []session.Claim, retrieval []evidence.Evidence, claimBearing bool) Outcome {
	sources := make(map[string]string, len(retrieval))
	for _, ev := range retrieval {
		sources[ev.SourceID] = ev.Excerpt
	}

	out := Outcome{Results: make([]ClaimResult, 0, len(claims))}
	for _, claim := range claims {
		result := v.validateClaim(claim, sources, claimBearing)
		if result.Rejected {
			out.RejectedCount++
			v.logger.Warn("claim rejected",
				zap.String("reason", result.Reason),
				zap.Int("citations", len(claim.Citations)))
		} else {
			out.Retained = append(out.Retained, claim)
			for _, vc := range result.Citations {
				switch vc.Status {
				case StatusWeak:
					out.WeakCount++
				case StatusVerified:
					out.VerifiedCount++
				}
			}
		}
		out.Results = append(out.Results, result)
	}
	return out
}

func (v *Validator) validateClaim(claim session.Claim, sources map[string]string, claimBearing bool) ClaimResult {
	result := ClaimResult{Claim: claim}

	if len(claim.Citations) == 0 {
		if claimBearing {
			result.Rejected = true
			result.Reason = "claim has no citations"
		}
		return result
	}

	for _, cit := range claim.Citations {
		vc := ValidatedCitation{Citation: cit}
		source, known := sources[cit.SourceID]
		switch {
		case !known:
			vc.Status = StatusUnverified
		default:
			vc.Overlap = normalizedOverlap(cit.ExcerptSpan, source)
			if vc.Overlap >= v.threshold {
				vc.Status = StatusVerified
			} else {
				vc.Status = StatusWeak
			}
		}
		result.Citations = append(result.Citations, vc)

		if vc.Status == StatusUnverified && !result.Rejected {
			result.Rejected = true
			result.Reason = "citation source " + cit.SourceID + " not in retrieval context"
		}
	}
	return result
}
