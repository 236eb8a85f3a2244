package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfoundry/caseflowd/internal/audit"
	"github.com/lexfoundry/caseflowd/internal/capability"
	"github.com/lexfoundry/caseflowd/internal/citation"
	"github.com/lexfoundry/caseflowd/internal/confidence"
	"github.com/lexfoundry/caseflowd/internal/evidence"
	"github.com/lexfoundry/caseflowd/internal/persist"
	"github.com/lexfoundry/caseflowd/internal/session"
	"github.com/lexfoundry/caseflowd/internal/stage"
	"github.com/lexfoundry/caseflowd/internal/stages"
)

func newTestOrchestrator(t *testing.T, invoker capability.Invoker, docs []evidence.Document, graph []stage.Definition, pstore persist.Store, events audit.Publisher) *Orchestrator {
	t.Helper()

	estore := evidence.NewMemoryStore()
	if len(docs) > 0 {
		require.NoError(t, estore.Add(context.Background(), docs))
	}

	runner := stage.NewRunner(
		invoker,
		estore,
		citation.NewValidator(0.6, nil),
		confidence.NewAggregator(0.5, 0.7),
		stage.Config{Timeout: 2 * time.Second, Backoff: time.Millisecond, TopK: 5},
		nil,
	)

	o, err := New(runner, graph, pstore, events, Config{}, nil)
	require.NoError(t, err)
	return o
}

func depositIntake() session.Intake {
	return session.Intake{
		Facts:        "landlord refused to refund the security deposit after vacating the flat",
		Jurisdiction: "Delhi",
		CaseType:     session.CaseConsumer,
		DocumentType: "Legal Notice",
	}
}

func depositCorpus() []evidence.Document {
	return []evidence.Document{
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
	}
}

// stageSummaries indexes the report by stage name, preferring the live
// record over superseded ones.
func stageSummaries(report *Report) map[string]StageSummary {
	out := make(map[string]StageSummary)
	for _, s := range report.Stages {
		if existing, ok := out[s.Stage]; ok && !existing.Superseded {
			continue
		}
		out[s.Stage] = s
	}
	return out
}

func TestOrchestrator_Execute_FullPipeline(t *testing.T) {
	recorder := audit.NewRecorder()
	o := newTestOrchestrator(t, stages.NewOfflineInvoker(), depositCorpus(), stages.Default(), persist.NewMemoryStore(), recorder)

	report, err := o.Execute(context.Background(), depositIntake())
	require.NoError(t, err)

	assert.Equal(t, session.StatusCompleted, report.Status)
	assert.Empty(t, report.Unresolved)
	assert.NotEmpty(t, report.Citations)
	assert.Equal(t, stages.Disclaimer, report.Disclaimer)

	byStage := stageSummaries(report)
	require.Len(t, byStage, 7)
	for name, summary := range byStage {
		assert.Equal(t, session.RecordSucceeded, summary.State, name)
		assert.Equal(t, session.DecisionPass, summary.Handoff, name)
	}

	// Every stage run leaves an audit event, bracketed by the case
	// lifecycle events.
	assert.Len(t, recorder.ByType(audit.EventCaseStarted), 1)
	assert.Len(t, recorder.ByType(audit.EventStageFinished), 7)
	finished := recorder.ByType(audit.EventCaseFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, session.StatusCompleted, finished[0].Status)
}

// weakRetrievalInvoker is the offline pipeline with retrieval overridden
// to cite a real source with an excerpt that barely overlaps it.
func weakRetrievalInvoker() *capability.Scripted {
	inv := stages.NewOfflineInvoker()
	inv.Register(stages.Retrieval, func(_ context.Context, _ capability.Request) (*capability.Response, error) {
		return &capability.Response{
			Output: json.RawMessage(`{"authorities":["air-1996-sc-2715"],"summary":"one authority retrieved"}`),
			Claims: []session.Claim{{
				Text: "The authority supports recovery of the deposit.",
				Citations: []session.Citation{{
					SourceID:    "air-1996-sc-2715",
					ExcerptSpan: "security deposit zebra quantum flamingo",
				}},
			}},
			SelfReported: 0.9,
		}, nil
	})
	return inv
}

func TestOrchestrator_Suspend_ParallelBranchContinues(t *testing.T) {
	recorder := audit.NewRecorder()
	o := newTestOrchestrator(t, weakRetrievalInvoker(), depositCorpus(), stages.Default(), persist.NewMemoryStore(), recorder)

	report, err := o.Execute(context.Background(), depositIntake())
	require.NoError(t, err)

	assert.Equal(t, session.StatusAwaitingHuman, report.Status)

	byStage := stageSummaries(report)
	require.Contains(t, byStage, stages.Retrieval)
	assert.Equal(t, session.DecisionEscalate, byStage[stages.Retrieval].Handoff)

	// The aid branch and the sibling limitation check are independent of
	// the held stage and must have finished.
	assert.Equal(t, session.DecisionPass, byStage[stages.AidSuggestion].Handoff)
	assert.Equal(t, session.DecisionPass, byStage[stages.LimitationCheck].Handoff)

	// Everything downstream of the held stage stays unscheduled.
	assert.NotContains(t, byStage, stages.ArgumentBuild)
	assert.NotContains(t, byStage, stages.Draft)
	assert.NotContains(t, byStage, stages.ComplianceCheck)

	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, stages.Retrieval, report.Unresolved[0].Stage)

	assert.Len(t, recorder.ByType(audit.EventAwaitingHuman), 1)
	assert.Empty(t, recorder.ByType(audit.EventCaseFinished))
}

func TestOrchestrator_Resume_ApproveCompletes(t *testing.T) {
	recorder := audit.NewRecorder()
	o := newTestOrchestrator(t, weakRetrievalInvoker(), depositCorpus(), stages.Default(), persist.NewMemoryStore(), recorder)

	report, err := o.Execute(context.Background(), depositIntake())
	require.NoError(t, err)
	require.Equal(t, session.StatusAwaitingHuman, report.Status)

	report, err = o.Resume(context.Background(), report.CaseID, stages.Retrieval, ResumeApprove, "")
	require.NoError(t, err)

	assert.Equal(t, session.StatusCompleted, report.Status)
	byStage := stageSummaries(report)
	require.Len(t, byStage, 7)
	assert.Equal(t, session.DecisionPass, byStage[stages.Retrieval].Handoff)
	assert.Contains(t, byStage[stages.Retrieval].Reason, "human approved")

	resumed := recorder.ByType(audit.EventCaseResumed)
	require.Len(t, resumed, 1)
	assert.Equal(t, stages.Retrieval, resumed[0].Stage)
	assert.Len(t, recorder.ByType(audit.EventCaseFinished), 1)
}

func TestOrchestrator_Resume_RejectFailsSession(t *testing.T) {
	recorder := audit.NewRecorder()
	o := newTestOrchestrator(t, weakRetrievalInvoker(), depositCorpus(), stages.Default(), persist.NewMemoryStore(), recorder)

	report, err := o.Execute(context.Background(), depositIntake())
	require.NoError(t, err)
	require.Equal(t, session.StatusAwaitingHuman, report.Status)

	report, err = o.Resume(context.Background(), report.CaseID, stages.Retrieval, ResumeReject, "")
	require.NoError(t, err)
	assert.Equal(t, session.StatusFailed, report.Status)

	// The session is settled: no further human decision is accepted.
	_, err = o.Resume(context.Background(), report.CaseID, stages.Retrieval, ResumeApprove, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not awaiting a decision")
}

func TestOrchestrator_Resume_CorrectionSupersedesAndCompletes(t *testing.T) {
	corrected := "landlord refused to refund the security deposit and a consumer complaint for refund of deposit was filed before the district commission"

	inv := stages.NewOfflineInvoker()
	inv.Register(stages.Retrieval, func(_ context.Context, req capability.Request) (*capability.Response, error) {
		if !strings.Contains(req.Intake.Facts, "consumer complaint") {
			// First pass: a citation too loose to verify.
			return &capability.Response{
				Output: json.RawMessage(`{"authorities":["air-1996-sc-2715"]}`),
				Claims: []session.Claim{{
					Text: "The authority supports recovery of the deposit.",
					Citations: []session.Citation{{
						SourceID:    "air-1996-sc-2715",
						ExcerptSpan: "security deposit zebra quantum flamingo",
					}},
				}},
				SelfReported: 0.9,
			}, nil
		}
		// Corrected intake: cite the source verbatim.
		return &capability.Response{
			Output: json.RawMessage(`{"authorities":["air-1996-sc-2715"]}`),
			Claims: []session.Claim{{
				Text: "Limitation runs from the refusal to refund the deposit.",
				Citations: []session.Citation{{
					SourceID:    "air-1996-sc-2715",
					ExcerptSpan: "The limitation period for recovery of a security deposit runs",
				}},
			}},
			SelfReported: 0.9,
		}, nil
	})

	o := newTestOrchestrator(t, inv, depositCorpus(), stages.Default(), persist.NewMemoryStore(), audit.NewRecorder())

	report, err := o.Execute(context.Background(), depositIntake())
	require.NoError(t, err)
	require.Equal(t, session.StatusAwaitingHuman, report.Status)

	report, err = o.Resume(context.Background(), report.CaseID, stages.Retrieval, ResumeReject, corrected)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, report.Status)

	// Both retrieval records stay in the report: the first one marked
	// superseded, the re-run carrying the decision that let the case
	// proceed.
	var old, current *StageSummary
	for i := range report.Stages {
		s := report.Stages[i]
		if s.Stage != stages.Retrieval {
			continue
		}
		if s.Superseded {
			old = &report.Stages[i]
		} else {
			current = &report.Stages[i]
		}
	}
	require.NotNil(t, old)
	require.NotNil(t, current)
	assert.Equal(t, current.RecordID, old.SupersededBy)
	assert.Equal(t, session.DecisionPass, current.Handoff)

	sess, err := o.Status(context.Background(), report.CaseID)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Intake.Revision)
	assert.Equal(t, corrected, sess.Intake.Facts)
}

func TestOrchestrator_Abort_DoesNotTouchSiblingSessions(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	inv := capability.NewScripted()
	inv.Register("analysis", func(ctx context.Context, req capability.Request) (*capability.Response, error) {
		if strings.Contains(req.Intake.Facts, "slow") {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
			}
		}
		return &capability.Response{Output: json.RawMessage(`{}`), SelfReported: 0.9}, nil
	})

	graph := []stage.Definition{{Name: "analysis"}}
	o := newTestOrchestrator(t, inv, nil, graph, persist.NewMemoryStore(), audit.NewRecorder())

	slowIntake := depositIntake()
	slowIntake.Facts = "slow reconciliation of the rental account ledger"
	slow, err := o.Submit(context.Background(), slowIntake)
	require.NoError(t, err)

	fast, err := o.Submit(context.Background(), depositIntake())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sess, err := o.Status(context.Background(), fast.CaseID)
		return err == nil && sess.Status == session.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, o.Abort(context.Background(), slow.CaseID))

	sess, err := o.Status(context.Background(), slow.CaseID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusFailed, sess.Status)

	sess, err = o.Status(context.Background(), fast.CaseID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, sess.Status, "sibling session must be untouched")
}

func TestOrchestrator_Abort_InFlightRecordKeptInTrail(t *testing.T) {
	var startedOnce sync.Once
	started := make(chan struct{})

	inv := capability.NewScripted()
	inv.Register("analysis", func(ctx context.Context, _ capability.Request) (*capability.Response, error) {
		startedOnce.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	})

	graph := []stage.Definition{{Name: "analysis"}}
	o := newTestOrchestrator(t, inv, nil, graph, persist.NewMemoryStore(), audit.NewRecorder())

	sub, err := o.Submit(context.Background(), depositIntake())
	require.NoError(t, err)
	<-started

	require.NoError(t, o.Abort(context.Background(), sub.CaseID))

	// The aborted stage still finishes its attempt; its failed record
	// must land in the audit trail even though the session is terminal.
	require.Eventually(t, func() bool {
		sess, err := o.Status(context.Background(), sub.CaseID)
		if err != nil || sess.Status != session.StatusFailed {
			return false
		}
		rec := sess.Record("analysis")
		return rec != nil && rec.State == session.RecordFailed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestOrchestrator_Recover_SweepsStaleRecords(t *testing.T) {
	sess, err := session.New(depositIntake())
	require.NoError(t, err)
	require.NoError(t, sess.Transition(session.StatusRunning))

	rec := session.NewStageRecord("analysis")
	rec.State = session.RecordRunning
	rec.StartedAt = time.Now().Add(-time.Hour)
	require.NoError(t, sess.Append(rec))

	pstore := persist.NewMemoryStore()
	require.NoError(t, pstore.Save(context.Background(), sess))

	graph := []stage.Definition{{Name: "analysis"}}
	recorder := audit.NewRecorder()
	o := newTestOrchestrator(t, capability.NewScripted(), nil, graph, pstore, recorder)

	swept, err := o.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	recovered, err := o.Status(context.Background(), sess.CaseID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusFailed, recovered.Status)

	require.Len(t, recovered.Records, 1)
	assert.Equal(t, session.RecordFailed, recovered.Records[0].State)
	assert.Equal(t, "Timeout", recovered.Records[0].ErrorKind)

	assert.Len(t, recorder.ByType(audit.EventCaseFinished), 1)
}

func TestValidateGraph(t *testing.T) {
	tests := []struct {
		name    string
		graph   []stage.Definition
		wantErr string
	}{
		{
			name:    "empty graph",
			wantErr: "no stages",
		},
		{
			name: "duplicate stage",
			graph: []stage.Definition{
				{Name: "a"}, {Name: "a"},
			},
			wantErr: "duplicate stage a",
		},
		{
			name: "unknown dependency",
			graph: []stage.Definition{
				{Name: "a", DependsOn: []string{"missing"}},
			},
			wantErr: "unknown stage missing",
		},
		{
			name: "cycle",
			graph: []stage.Definition{
				{Name: "a", DependsOn: []string{"b"}},
				{Name: "b", DependsOn: []string{"a"}},
			},
			wantErr: "cycle",
		},
		{
			name: "valid diamond",
			graph: []stage.Definition{
				{Name: "a"},
				{Name: "b", DependsOn: []string{"a"}},
				{Name: "c", DependsOn: []string{"a"}},
				{Name: "d", DependsOn: []string{"b", "c"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateGraph(tt.graph)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOrchestrator_Resume_UnknownCaseAndStage(t *testing.T) {
	o := newTestOrchestrator(t, capability.NewScripted(), nil, []stage.Definition{{Name: "analysis"}}, persist.NewMemoryStore(), audit.NewRecorder())

	_, err := o.Resume(context.Background(), "no-such-case", "analysis", ResumeApprove, "")
	require.ErrorIs(t, err, persist.ErrNotFound)

	report, err := o.Execute(context.Background(), depositIntake())
	require.NoError(t, err)

	_, err = o.Resume(context.Background(), report.CaseID, "no-such-stage", ResumeApprove, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}
