package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeRiskFlags(t *testing.T) {
	tests := []struct {
		name   string
		intake Intake
		want   []RiskFlag
	}{
		{
			name:   "plain civil matter has no flags",
			intake: Intake{Facts: "recovery of security deposit from landlord", CaseType: CaseCivil},
			want:   nil,
		},
		{
			name:   "criminal case type implies liberty flag",
			intake: Intake{Facts: "charged under section 420", CaseType: CaseCriminal},
			want:   []RiskFlag{RiskCriminalLiberty},
		},
		{
			name:   "bail keyword implies liberty flag",
			intake: Intake{Facts: "seeking anticipatory bail before arrest", CaseType: CaseUnknown},
			want:   []RiskFlag{RiskCriminalLiberty},
		},
		{
			name:   "minor involvement detected",
			intake: Intake{Facts: "dispute over guardianship of a minor", CaseType: CaseFamily},
			want:   []RiskFlag{RiskMinorInvolved},
		},
		{
			name:   "fabrication request is hard restricted",
			intake: Intake{Facts: "need to backdate the rent agreement", CaseType: CaseCivil},
			want:   []RiskFlag{RiskFabricatedEvidence},
		},
		{
			name:   "multiple flags sorted deterministically",
			intake: Intake{Facts: "bail for juvenile accused", CaseType: CaseCriminal},
			want:   []RiskFlag{RiskCriminalLiberty, RiskMinorInvolved},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRiskFlags(tt.intake)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHardRestricted(t *testing.T) {
	assert.True(t, RiskFabricatedEvidence.HardRestricted())
	assert.False(t, RiskCriminalLiberty.HardRestricted())
	assert.False(t, RiskMinorInvolved.HardRestricted())
}

func TestComputeRiskFlags_DeterministicAcrossRuns(t *testing.T) {
	intake := Intake{Facts: "bail for a minor in custody", CaseType: CaseCriminal}

	first := ComputeRiskFlags(intake)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ComputeRiskFlags(intake))
	}
}
