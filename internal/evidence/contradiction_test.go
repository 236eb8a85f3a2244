package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectContradictions_OpposingOutcomes(t *testing.T) {
	results := []Evidence{
		{
			SourceID: "src-a",
			Excerpt:  "The claim for recovery of the security deposit was allowed as within limitation",
		},
		{
			SourceID: "src-b",
			Excerpt:  "The claim for recovery of the security deposit was dismissed as time-barred",
		},
	}

	found := DetectContradictions(results)

	require.Len(t, found, 1)
	assert.Equal(t, "src-a", found[0].SourceA)
	assert.Equal(t, "src-b", found[0].SourceB)
	assert.NotEmpty(t, found[0].Reason)
}

func TestDetectContradictions_UnrelatedSubjectsIgnored(t *testing.T) {
	results := []Evidence{
		{SourceID: "src-a", Excerpt: "Bail application granted for the accused facing trial"},
		{SourceID: "src-b", Excerpt: "Trademark infringement injunction request dismissed on merits entirely"},
	}

	assert.Empty(t, DetectContradictions(results))
}

func TestDetectContradictions_SamePolarityIgnored(t *testing.T) {
	results := []Evidence{
		{SourceID: "src-a", Excerpt: "Recovery of security deposit allowed"},
		{SourceID: "src-b", Excerpt: "Recovery of security deposit granted with interest"},
	}

	assert.Empty(t, DetectContradictions(results))
}

func TestDetectContradictions_MixedSignalExcerptIsNeutral(t *testing.T) {
	results := []Evidence{
		{SourceID: "src-a", Excerpt: "Some deposit claims were allowed while other deposit claims were dismissed"},
		{SourceID: "src-b", Excerpt: "Deposit claims dismissed as time-barred"},
	}

	assert.Empty(t, DetectContradictions(results))
}

func TestOutcomePolarity(t *testing.T) {
	assert.Equal(t, 1, outcomePolarity("petition allowed"))
	assert.Equal(t, -1, outcomePolarity("suit dismissed"))
	assert.Equal(t, 0, outcomePolarity("matter listed for hearing"))
	assert.Equal(t, 0, outcomePolarity("partly allowed and partly dismissed"))
}
