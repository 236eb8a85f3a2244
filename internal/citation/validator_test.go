package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfoundry/caseflowd/internal/evidence"
	"github.com/lexfoundry/caseflowd/internal/session"
)

func testRetrieval() []evidence.Evidence {
	return []evidence.Evidence{
		{
			SourceID:   "air-1996-sc-2715",
			Excerpt:    "The Supreme Court held that the limitation period for a suit for recovery of a security deposit runs from the date of refusal to refund.",
			TrustScore: 0.9,
		},
		{
			SourceID:   "consumer-act-s35",
			Excerpt:    "A complaint may be filed before the District Commission by the consumer to whom the goods are sold or delivered.",
			TrustScore: 0.95,
		},
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(0.6, nil)

	t.Run("exact excerpt is verified", func(t *testing.T) {
		claims := []session.Claim{{
			Text: "Limitation runs from refusal to refund.",
			Citations: []session.Citation{{
				SourceID:    "air-1996-sc-2715",
				ExcerptSpan: "limitation period for a suit for recovery of a security deposit runs from the date of refusal",
			}},
		}}

		out := v.Validate(claims, testRetrieval(), true)
		require.Len(t, out.Results, 1)
		assert.False(t, out.Results[0].Rejected)
		assert.Equal(t, StatusVerified, out.Results[0].Citations[0].Status)
		assert.Equal(t, 1.0, out.Results[0].Citations[0].Overlap)
		assert.Equal(t, 1, out.VerifiedCount)
		assert.False(t, out.AnyRejected())
	})

	t.Run("unknown source rejects the claim", func(t *testing.T) {
		claims := []session.Claim{{
			Text: "The court awarded exemplary damages.",
			Citations: []session.Citation{{
				SourceID:    "fabricated-2021-xyz",
				ExcerptSpan: "exemplary damages were awarded",
			}},
		}}

		out := v.Validate(claims, testRetrieval(), true)
		require.Len(t, out.Results, 1)
		assert.True(t, out.Results[0].Rejected)
		assert.Equal(t, StatusUnverified, out.Results[0].Citations[0].Status)
		assert.Contains(t, out.Results[0].Reason, "fabricated-2021-xyz")
		assert.Equal(t, 1, out.RejectedCount)
		assert.Empty(t, out.Retained)
	})

	t.Run("low overlap is weak but retained", func(t *testing.T) {
		claims := []session.Claim{{
			Text: "The deposit must be refunded with interest.",
			Citations: []session.Citation{{
				SourceID:    "air-1996-sc-2715",
				ExcerptSpan: "interest is payable on wrongful retention at commercial rates",
			}},
		}}

		out := v.Validate(claims, testRetrieval(), true)
		require.Len(t, out.Results, 1)
		assert.False(t, out.Results[0].Rejected)
		assert.Equal(t, StatusWeak, out.Results[0].Citations[0].Status)
		assert.Less(t, out.Results[0].Citations[0].Overlap, 0.6)
		assert.True(t, out.AnyWeak())
		assert.Len(t, out.Retained, 1)
	})

	t.Run("no citations on claim-bearing stage rejects", func(t *testing.T) {
		claims := []session.Claim{{Text: "It is settled law that the tenant must succeed."}}

		out := v.Validate(claims, testRetrieval(), true)
		require.Len(t, out.Results, 1)
		assert.True(t, out.Results[0].Rejected)
		assert.Equal(t, "claim has no citations", out.Results[0].Reason)
	})

	t.Run("no citations tolerated on non-claim-bearing stage", func(t *testing.T) {
		claims := []session.Claim{{Text: "The intake describes a tenancy dispute."}}

		out := v.Validate(claims, testRetrieval(), false)
		require.Len(t, out.Results, 1)
		assert.False(t, out.Results[0].Rejected)
		assert.Len(t, out.Retained, 1)
	})

	t.Run("one unverified citation poisons the whole claim", func(t *testing.T) {
		claims := []session.Claim{{
			Text: "Both authorities support the complaint.",
			Citations: []session.Citation{
				{
					SourceID:    "consumer-act-s35",
					ExcerptSpan: "a complaint may be filed before the district commission",
				},
				{
					SourceID:    "made-up-source",
					ExcerptSpan: "anything at all",
				},
			},
		}}

		out := v.Validate(claims, testRetrieval(), true)
		require.Len(t, out.Results, 1)
		assert.True(t, out.Results[0].Rejected)
		assert.Equal(t, StatusVerified, out.Results[0].Citations[0].Status)
		assert.Equal(t, StatusUnverified, out.Results[0].Citations[1].Status)
	})

	t.Run("empty retrieval makes every cited claim unverified", func(t *testing.T) {
		claims := []session.Claim{{
			Text: "The court held in our favor.",
			Citations: []session.Citation{{
				SourceID:    "air-1996-sc-2715",
				ExcerptSpan: "held",
			}},
		}}

		out := v.Validate(claims, nil, true)
		require.Len(t, out.Results, 1)
		assert.True(t, out.Results[0].Rejected)
	})
}

func TestNormalizedOverlap(t *testing.T) {
	tests := []struct {
		name    string
		excerpt string
		source  string
		want    float64
	}{
		{"exact substring", "held that the period runs", "The Court held that the period runs from refusal.", 1.0},
		{"punctuation insensitive", "held, that the period runs!", "the court HELD that the period runs from refusal", 1.0},
		{"partial terms", "deposit refund interest", "refund of the deposit was ordered", 2.0 / 3.0},
		{"no overlap", "trademark injunction", "bail was granted to the accused", 0},
		{"empty excerpt", "", "anything", 0},
		{"empty source", "anything", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, normalizedOverlap(tt.excerpt, tt.source), 1e-9)
		})
	}
}

func TestNewValidator_DefaultThreshold(t *testing.T) {
	v := NewValidator(0, nil)
	assert.Equal(t, DefaultOverlapThreshold, v.threshold)
}
