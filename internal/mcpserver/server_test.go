package mcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexfoundry/caseflowd/internal/audit"
	"github.com/lexfoundry/caseflowd/internal/citation"
	"github.com/lexfoundry/caseflowd/internal/confidence"
	"github.com/lexfoundry/caseflowd/internal/evidence"
	"github.com/lexfoundry/caseflowd/internal/orchestrator"
	"github.com/lexfoundry/caseflowd/internal/persist"
	"github.com/lexfoundry/caseflowd/internal/session"
	"github.com/lexfoundry/caseflowd/internal/stage"
	"github.com/lexfoundry/caseflowd/internal/stages"
)

func setupServer(t *testing.T) *Server {
	t.Helper()

	estore := evidence.NewMemoryStore()
	require.NoError(t, estore.Add(context.Background(), []evidence.Document{
		{
			SourceID:   "air-1996-sc-2715",
			Content:    "The limitation period for recovery of a security deposit runs from the date the landlord refused to refund it.",
			TrustScore: 0.9,
		},
		{
			SourceID:   "consumer-act-s35",
			Content:    "A consumer complaint for deficient service including refund of deposit may be filed before the District Commission.",
			TrustScore: 0.95,
		},
	}))

	runner := stage.NewRunner(
		stages.NewOfflineInvoker(),
		estore,
		citation.NewValidator(0.6, nil),
		confidence.NewAggregator(0.5, 0.7),
		stage.Config{Timeout: 2 * time.Second, Backoff: time.Millisecond},
		nil,
	)

	orch, err := orchestrator.New(runner, stages.Default(), persist.NewMemoryStore(), audit.NopPublisher{}, orchestrator.Config{}, nil)
	require.NoError(t, err)

	srv, err := NewServer(orch, zap.NewNop(), Config{})
	require.NoError(t, err)
	return srv
}

func TestNewServer(t *testing.T) {
	t.Run("requires orchestrator", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), Config{})
		assert.Error(t, err)
	})

	t.Run("creates server", func(t *testing.T) {
		srv := setupServer(t)
		assert.NotNil(t, srv.mcp)
	})
}

func TestCaseSubmitAndStatus(t *testing.T) {
	srv := setupServer(t)
	ctx := context.Background()

	out, err := srv.submit(ctx, caseSubmitInput{
		Facts:        "landlord refused to refund the security deposit after vacating the flat",
		Jurisdiction: "Delhi",
		CaseType:     "consumer",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.CaseID)

	require.Eventually(t, func() bool {
		status, err := srv.status(ctx, caseStatusInput{CaseID: out.CaseID})
		return err == nil && status.Status == string(session.StatusCompleted)
	}, 5*time.Second, 10*time.Millisecond)

	status, err := srv.status(ctx, caseStatusInput{CaseID: out.CaseID})
	require.NoError(t, err)
	assert.Len(t, status.Stages, 7)
}

func TestCaseSubmitValidation(t *testing.T) {
	srv := setupServer(t)

	_, err := srv.submit(context.Background(), caseSubmitInput{Jurisdiction: "Delhi"})
	assert.Error(t, err, "facts are mandatory")
}

func TestCaseResumeUnknownCase(t *testing.T) {
	srv := setupServer(t)

	_, err := srv.resume(context.Background(), caseResumeInput{
		CaseID:   "no-such-case",
		Stage:    stages.Retrieval,
		Decision: orchestrator.ResumeApprove,
	})
	require.ErrorIs(t, err, persist.ErrNotFound)
}
