package stages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfoundry/caseflowd/internal/session"
)

func TestDefault_GraphShape(t *testing.T) {
	defs := Default()
	byName := make(map[string][]string, len(defs))
	claimBearing := make(map[string]bool, len(defs))
	for _, def := range defs {
		byName[def.Name] = def.DependsOn
		claimBearing[def.Name] = def.ClaimBearing
	}

	require.Len(t, defs, 7)

	assert.Empty(t, byName[IssueExtraction])
	assert.Equal(t, []string{IssueExtraction}, byName[Retrieval])
	assert.Equal(t, []string{IssueExtraction}, byName[LimitationCheck])
	assert.ElementsMatch(t, []string{Retrieval, LimitationCheck}, byName[ArgumentBuild])
	assert.Equal(t, []string{ArgumentBuild}, byName[Draft])
	assert.Equal(t, []string{Draft}, byName[ComplianceCheck])
	assert.Equal(t, []string{IssueExtraction}, byName[AidSuggestion])

	// The asserting stages carry the no-citation-no-claim burden.
	for _, name := range []string{Retrieval, LimitationCheck, ArgumentBuild, Draft} {
		assert.True(t, claimBearing[name], name)
	}
	for _, name := range []string{IssueExtraction, ComplianceCheck, AidSuggestion} {
		assert.False(t, claimBearing[name], name)
	}
}

func TestDefault_EveryDependencyExists(t *testing.T) {
	defs := Default()
	names := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		names[def.Name] = struct{}{}
	}
	for _, def := range defs {
		for _, dep := range def.DependsOn {
			_, ok := names[dep]
			assert.True(t, ok, "%s depends on unknown stage %s", def.Name, dep)
		}
	}
}

func TestIssueQuery(t *testing.T) {
	intake := session.Intake{Facts: "landlord kept the deposit", Jurisdiction: "Delhi"}

	t.Run("facts only", func(t *testing.T) {
		assert.Equal(t, "landlord kept the deposit", issueQuery(intake, nil))
	})

	t.Run("issues appended", func(t *testing.T) {
		inputs := map[string]json.RawMessage{
			IssueExtraction: json.RawMessage(`{"issues":["recovery of security deposit"]}`),
		}
		got := issueQuery(intake, inputs)
		assert.Contains(t, got, "landlord kept the deposit")
		assert.Contains(t, got, "recovery of security deposit")
	})

	t.Run("limitation query prefixed", func(t *testing.T) {
		assert.Contains(t, limitationQuery(intake, nil), "limitation period")
	})
}

func TestDraftOutputContract(t *testing.T) {
	t.Run("disclaimer required", func(t *testing.T) {
		raw, err := json.Marshal(DraftOutput{DocumentType: "Plaint", Body: "..."})
		require.NoError(t, err)
		assert.Error(t, validateDraftOutput(raw))
	})

	t.Run("complete draft accepted", func(t *testing.T) {
		raw, err := json.Marshal(DraftOutput{DocumentType: "Plaint", Body: "...", Disclaimer: Disclaimer})
		require.NoError(t, err)
		assert.NoError(t, validateDraftOutput(raw))
	})
}
