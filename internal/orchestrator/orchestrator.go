package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lexfoundry/caseflowd/internal/audit"
	"github.com/lexfoundry/caseflowd/internal/persist"
	"github.com/lexfoundry/caseflowd/internal/session"
	"github.com/lexfoundry/caseflowd/internal/stage"
)

// Human decisions accepted by Resume.
const (
	ResumeApprove = "approve"
	ResumeReject  = "reject"
)

// Config holds orchestrator-wide settings.
type Config struct {
	// GracePeriod is how long a RUNNING stage record may sit before the
	// crash-recovery sweep converts it to FAILED.
	GracePeriod time.Duration `koanf:"grace_period"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.GracePeriod <= 0 {
		c.GracePeriod = 10 * time.Minute
	}
}

// sessionState pairs a session with its lock and the cancel function of
// whatever drive is currently in flight for it.
type sessionState struct {
	mu     sync.Mutex
	sess   *session.CaseSession
	cancel context.CancelFunc
}

// Orchestrator schedules stage graphs over case sessions.
type Orchestrator struct {
	runner *stage.Runner
	graph  []stage.Definition
	byName map[string]stage.Definition
	store  persist.Store
	events audit.Publisher
	config Config
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionState
}

// New validates the stage graph and builds an orchestrator.
func New(runner *stage.Runner, graph []stage.Definition, store persist.Store, events audit.Publisher, config Config, logger *zap.Logger) (*Orchestrator, error) {
	if runner == nil {
		return nil, errors.New("stage runner is required")
	}
	if store == nil {
		store = persist.NewMemoryStore()
	}
	if events == nil {
		events = audit.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	byName, err := validateGraph(graph)
	if err != nil {
		return nil, fmt.Errorf("invalid stage graph: %w", err)
	}

	return &Orchestrator{
		runner:   runner,
		graph:    graph,
		byName:   byName,
		store:    store,
		events:   events,
		config:   config,
		logger:   logger,
		sessions: make(map[string]*sessionState),
	}, nil
}

// validateGraph checks name uniqueness, dependency existence, and
// acyclicity via Kahn's algorithm.
func validateGraph(graph []stage.Definition) (map[string]stage.Definition, error) {
	if len(graph) == 0 {
		return nil, errors.New("graph has no stages")
	}
	byName := make(map[string]stage.Definition, len(graph))
	for _, def := range graph {
		if def.Name == "" {
			return nil, errors.New("stage with empty name")
		}
		if _, dup := byName[def.Name]; dup {
			return nil, fmt.Errorf("duplicate stage %s", def.Name)
		}
		byName[def.Name] = def
	}

	indegree := make(map[string]int, len(graph))
	for _, def := range graph {
		for _, dep := range def.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("stage %s depends on unknown stage %s", def.Name, dep)
			}
			indegree[def.Name]++
		}
	}

	var queue []string
	for _, def := range graph {
		if indegree[def.Name] == 0 {
			queue = append(queue, def.Name)
		}
	}
	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, def := range graph {
			for _, dep := range def.DependsOn {
				if dep != name {
					continue
				}
				indegree[def.Name]--
				if indegree[def.Name] == 0 {
					queue = append(queue, def.Name)
				}
			}
		}
	}
	if visited != len(graph) {
		return nil, errors.New("graph contains a cycle")
	}
	return byName, nil
}

// Submit creates a session and drives it in the background. The returned
// session is a snapshot; use Status or Report to follow progress.
func (o *Orchestrator) Submit(ctx context.Context, intake session.Intake) (*session.CaseSession, error) {
	st, err := o.create(ctx, intake)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	st.mu.Lock()
	st.cancel = cancel
	st.mu.Unlock()

	go func() {
		defer cancel()
		o.drive(runCtx, st)
	}()

	return o.snapshot(st), nil
}

// Execute creates a session and drives it to its first stop (terminal or
// suspended) synchronously, returning the case report.
func (o *Orchestrator) Execute(ctx context.Context, intake session.Intake) (*Report, error) {
	st, err := o.create(ctx, intake)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	st.mu.Lock()
	st.cancel = cancel
	st.mu.Unlock()
	defer cancel()

	o.drive(runCtx, st)

	st.mu.Lock()
	defer st.mu.Unlock()
	return BuildReport(st.sess), nil
}

func (o *Orchestrator) create(ctx context.Context, intake session.Intake) (*sessionState, error) {
	sess, err := session.New(intake)
	if err != nil {
		return nil, err
	}
	st := &sessionState{sess: sess}

	o.mu.Lock()
	o.sessions[sess.CaseID] = st
	ActiveSessions.Set(float64(len(o.sessions)))
	o.mu.Unlock()

	if err := o.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("persisting new session: %w", err)
	}
	o.events.Publish(audit.Event{Type: audit.EventCaseStarted, CaseID: sess.CaseID, Status: sess.Status})
	o.logger.Info("case submitted",
		zap.String("case_id", sess.CaseID),
		zap.String("case_type", string(intake.CaseType)),
		zap.Int("risk_flags", len(sess.RiskFlags)))
	return st, nil
}

// tracer returns the instrumentation scope for case/stage spans. Falls
// back to the global no-op provider when telemetry is disabled.
func tracer() trace.Tracer {
	return otel.Tracer("caseflowd/orchestrator")
}

// drive runs the session from its current position to the next stop.
func (o *Orchestrator) drive(ctx context.Context, st *sessionState) {
	st.mu.Lock()
	caseID := st.sess.CaseID
	st.mu.Unlock()

	ctx, span := tracer().Start(ctx, "case.drive",
		trace.WithAttributes(attribute.String("case_id", caseID)))
	defer span.End()

	st.mu.Lock()
	if st.sess.Status == session.StatusPending {
		if err := st.sess.Transition(session.StatusRunning); err != nil {
			st.mu.Unlock()
			o.logger.Error("cannot start session", zap.Error(err))
			return
		}
		o.persistLocked(context.Background(), st)
	}
	st.mu.Unlock()

	err := o.advance(ctx, st)
	o.finalize(st, err)
}

// advance runs waves of eligible stages until none remain. Stages within
// a wave are independent and run concurrently; a MissingDependency error
// is a scheduling bug and aborts the whole wave.
func (o *Orchestrator) advance(ctx context.Context, st *sessionState) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		st.mu.Lock()
		ready := o.readyStages(st.sess)
		inputs := make([]stage.Input, len(ready))
		for i, def := range ready {
			inputs[i] = stage.Input{
				CaseID:       st.sess.CaseID,
				Intake:       st.sess.Intake,
				RiskFlags:    st.sess.RiskFlags,
				Dependencies: depRecords(st.sess, def),
			}
		}
		st.mu.Unlock()

		if len(ready) == 0 {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		for i, def := range ready {
			in, def := inputs[i], def
			g.Go(func() error {
				return o.runStage(gctx, st, in, def)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
}

// runStage executes one stage and applies its record to the session.
func (o *Orchestrator) runStage(ctx context.Context, st *sessionState, in stage.Input, def stage.Definition) error {
	ctx, span := tracer().Start(ctx, "stage.run",
		trace.WithAttributes(
			attribute.String("case_id", in.CaseID),
			attribute.String("stage", def.Name),
		))
	defer span.End()

	start := time.Now()
	rec, runErr := o.runner.Run(ctx, in, def)
	span.SetAttributes(
		attribute.String("record_state", string(rec.State)),
		attribute.String("handoff", string(rec.Handoff)),
	)
	StageDuration.WithLabelValues(def.Name).Observe(time.Since(start).Seconds())
	StageRuns.WithLabelValues(def.Name, string(rec.State)).Inc()
	if rec.Handoff != "" {
		HandoffDecisions.WithLabelValues(def.Name, string(rec.Handoff)).Inc()
	}

	st.mu.Lock()
	appendErr := st.sess.Append(rec)
	if appendErr == nil {
		o.persistLocked(ctx, st)
	}
	st.mu.Unlock()
	if appendErr != nil {
		return appendErr
	}

	o.events.Publish(audit.Event{
		Type:       audit.EventStageFinished,
		CaseID:     in.CaseID,
		Stage:      def.Name,
		Decision:   rec.Handoff,
		Confidence: rec.ValidatedConfidence,
		Reason:     rec.HandoffReason,
	})

	var stageErr *stage.Error
	if errors.As(runErr, &stageErr) && stageErr.Kind == stage.KindMissingDependency {
		// Scheduling bug: fatal for the whole session.
		return runErr
	}
	return nil
}

// readyStages returns stages with no current record whose dependencies
// all succeeded with PASS. Caller holds the session lock.
func (o *Orchestrator) readyStages(sess *session.CaseSession) []stage.Definition {
	var ready []stage.Definition
	for _, def := range o.graph {
		if sess.Record(def.Name) != nil {
			continue
		}
		eligible := true
		for _, dep := range def.DependsOn {
			rec := sess.Record(dep)
			if rec == nil || !rec.Succeeded() || rec.Handoff != session.DecisionPass {
				eligible = false
				break
			}
		}
		if eligible {
			ready = append(ready, def)
		}
	}
	return ready
}

// depRecords snapshots the dependency records a stage will consume.
// Caller holds the session lock.
func depRecords(sess *session.CaseSession, def stage.Definition) map[string]*session.StageRecord {
	if len(def.DependsOn) == 0 {
		return nil
	}
	deps := make(map[string]*session.StageRecord, len(def.DependsOn))
	for _, dep := range def.DependsOn {
		deps[dep] = sess.Record(dep)
	}
	return deps
}

// finalize settles the session status after a drive: COMPLETED when every
// graph node passed, otherwise BLOCKED over AWAITING_HUMAN over FAILED.
func (o *Orchestrator) finalize(st *sessionState, runErr error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess := st.sess
	if sess.Status.Terminal() {
		return
	}

	var anyBlock, anyEscalate bool
	allPassed := true
	for _, def := range o.graph {
		rec := sess.Record(def.Name)
		if rec == nil {
			allPassed = false
			continue
		}
		switch {
		case rec.State == session.RecordFailed:
			allPassed = false
		case rec.Handoff == session.DecisionBlock:
			anyBlock = true
			allPassed = false
		case rec.Handoff == session.DecisionEscalate:
			anyEscalate = true
			allPassed = false
		case rec.Handoff != session.DecisionPass:
			allPassed = false
		}
	}

	var target session.Status
	switch {
	case allPassed && runErr == nil:
		target = session.StatusCompleted
	case anyBlock:
		target = session.StatusBlocked
	case anyEscalate && runErr == nil:
		target = session.StatusAwaitingHuman
	default:
		target = session.StatusFailed
	}

	if err := sess.Transition(target); err != nil {
		o.logger.Error("finalize transition failed",
			zap.String("case_id", sess.CaseID),
			zap.Error(err))
		return
	}
	CasesTotal.WithLabelValues(string(target)).Inc()
	o.persistLocked(context.Background(), st)

	eventType := audit.EventCaseFinished
	switch target {
	case session.StatusAwaitingHuman:
		eventType = audit.EventAwaitingHuman
	case session.StatusBlocked:
		eventType = audit.EventCaseBlocked
	}
	o.events.Publish(audit.Event{Type: eventType, CaseID: sess.CaseID, Status: target})

	o.logger.Info("case settled",
		zap.String("case_id", sess.CaseID),
		zap.String("status", string(target)),
		zap.Int("records", len(sess.Records)))
}

// Resume applies a human decision to a suspended session and drives it to
// its next stop synchronously.
//
// approve re-enables downstream scheduling from the held stage. reject
// with a correction re-runs the stage on the corrected intake,
// superseding the held record; reject without a correction fails the
// session.
func (o *Orchestrator) Resume(ctx context.Context, caseID, stageName, decision, correction string) (*Report, error) {
	st, err := o.state(ctx, caseID)
	if err != nil {
		return nil, err
	}
	def, ok := o.byName[stageName]
	if !ok {
		return nil, fmt.Errorf("unknown stage %s", stageName)
	}

	st.mu.Lock()
	sess := st.sess
	if sess.Status != session.StatusAwaitingHuman && sess.Status != session.StatusBlocked {
		st.mu.Unlock()
		return nil, fmt.Errorf("case %s is %s, not awaiting a decision", caseID, sess.Status)
	}
	rec := sess.Record(stageName)
	if rec == nil || !rec.Succeeded() || (rec.Handoff != session.DecisionEscalate && rec.Handoff != session.DecisionBlock) {
		st.mu.Unlock()
		return nil, fmt.Errorf("stage %s of case %s is not awaiting a decision", stageName, caseID)
	}

	switch decision {
	case ResumeApprove:
		rec.Handoff = session.DecisionPass
		rec.HandoffReason = "human approved: " + rec.HandoffReason
		if err := sess.Transition(session.StatusRunning); err != nil {
			st.mu.Unlock()
			return nil, err
		}
		o.persistLocked(ctx, st)
		st.mu.Unlock()

	case ResumeReject:
		if correction == "" {
			rec.HandoffReason = rec.HandoffReason + " (human rejected)"
			if err := sess.Transition(session.StatusFailed); err != nil {
				st.mu.Unlock()
				return nil, err
			}
			CasesTotal.WithLabelValues(string(session.StatusFailed)).Inc()
			o.persistLocked(ctx, st)
			report := BuildReport(sess)
			st.mu.Unlock()
			o.events.Publish(audit.Event{Type: audit.EventCaseFinished, CaseID: caseID, Status: session.StatusFailed, Stage: stageName, Reason: "human rejected"})
			return report, nil
		}

		sess.Intake = sess.Intake.WithCorrection(correction)
		if err := sess.Transition(session.StatusRunning); err != nil {
			st.mu.Unlock()
			return nil, err
		}
		in := stage.Input{
			CaseID:       sess.CaseID,
			Intake:       sess.Intake,
			RiskFlags:    sess.RiskFlags,
			Dependencies: depRecords(sess, def),
		}
		o.persistLocked(ctx, st)
		st.mu.Unlock()

		newRec, _ := o.runner.Run(ctx, in, def)
		StageRuns.WithLabelValues(def.Name, string(newRec.State)).Inc()

		st.mu.Lock()
		if err := sess.Append(newRec); err != nil {
			st.mu.Unlock()
			return nil, err
		}
		if err := sess.Supersede(rec.ID, newRec.ID); err != nil {
			o.logger.Warn("supersede failed", zap.String("case_id", caseID), zap.Error(err))
		}
		o.persistLocked(ctx, st)
		st.mu.Unlock()

	default:
		st.mu.Unlock()
		return nil, fmt.Errorf("unknown decision %q: want %s or %s", decision, ResumeApprove, ResumeReject)
	}

	o.events.Publish(audit.Event{Type: audit.EventCaseResumed, CaseID: caseID, Stage: stageName, Reason: decision})

	runCtx, cancel := context.WithCancel(ctx)
	st.mu.Lock()
	st.cancel = cancel
	st.mu.Unlock()
	defer cancel()

	err = o.advance(runCtx, st)
	o.finalize(st, err)

	st.mu.Lock()
	defer st.mu.Unlock()
	return BuildReport(st.sess), nil
}

// Abort cancels any in-flight work for the session and fails it. Other
// sessions are unaffected.
func (o *Orchestrator) Abort(ctx context.Context, caseID string) error {
	st, err := o.state(ctx, caseID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	if st.cancel != nil {
		st.cancel()
	}
	if !st.sess.Status.Terminal() {
		if err := st.sess.Transition(session.StatusFailed); err != nil {
			st.mu.Unlock()
			return err
		}
		CasesTotal.WithLabelValues(string(session.StatusFailed)).Inc()
		o.persistLocked(ctx, st)
	}
	st.mu.Unlock()

	o.events.Publish(audit.Event{Type: audit.EventCaseFinished, CaseID: caseID, Status: session.StatusFailed, Reason: "aborted"})
	return nil
}

// Status returns a snapshot of the session.
func (o *Orchestrator) Status(ctx context.Context, caseID string) (*session.CaseSession, error) {
	st, err := o.state(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return o.snapshot(st), nil
}

// ReportFor compiles the case report from the session's current state.
func (o *Orchestrator) ReportFor(ctx context.Context, caseID string) (*Report, error) {
	st, err := o.state(ctx, caseID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return BuildReport(st.sess), nil
}

// Recover reloads persisted sessions, sweeps stale RUNNING records past
// the grace period, and settles sessions the previous process left
// mid-flight. Returns the number of records swept.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	ids, err := o.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing persisted cases: %w", err)
	}

	total := 0
	for _, id := range ids {
		st, err := o.state(ctx, id)
		if err != nil {
			o.logger.Warn("cannot recover case", zap.String("case_id", id), zap.Error(err))
			continue
		}

		st.mu.Lock()
		swept := st.sess.SweepStaleRunning(o.config.GracePeriod)
		interrupted := !st.sess.Status.Terminal() &&
			(st.sess.Status == session.StatusRunning || st.sess.Status == session.StatusPending)
		if swept > 0 {
			StaleRecordsSwept.Add(float64(swept))
			o.persistLocked(ctx, st)
		}
		st.mu.Unlock()

		if interrupted {
			o.finalize(st, errors.New("process restarted mid-run"))
		}
		total += swept

		if swept > 0 {
			o.logger.Info("swept stale records",
				zap.String("case_id", id),
				zap.Int("swept", swept))
		}
	}
	return total, nil
}

// Close aborts nothing but cancels in-flight drives and closes the store.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	for _, st := range o.sessions {
		st.mu.Lock()
		if st.cancel != nil {
			st.cancel()
		}
		st.mu.Unlock()
	}
	o.mu.Unlock()
	return o.store.Close()
}

// state returns the tracked session, loading it from the store on a cold
// lookup (e.g. resume after restart).
func (o *Orchestrator) state(ctx context.Context, caseID string) (*sessionState, error) {
	o.mu.RLock()
	st, ok := o.sessions[caseID]
	o.mu.RUnlock()
	if ok {
		return st, nil
	}

	sess, err := o.store.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.sessions[caseID]; ok {
		return existing, nil
	}
	st = &sessionState{sess: sess}
	o.sessions[caseID] = st
	ActiveSessions.Set(float64(len(o.sessions)))
	return st, nil
}

// snapshot deep-copies the session so callers never share pointers with
// the orchestrator's mutable state.
func (o *Orchestrator) snapshot(st *sessionState) *session.CaseSession {
	st.mu.Lock()
	defer st.mu.Unlock()
	raw, err := json.Marshal(st.sess)
	if err != nil {
		o.logger.Error("snapshot encode failed", zap.Error(err))
		return nil
	}
	var out session.CaseSession
	if err := json.Unmarshal(raw, &out); err != nil {
		o.logger.Error("snapshot decode failed", zap.Error(err))
		return nil
	}
	return &out
}

// persistLocked saves the session; caller holds the session lock. A save
// failure is logged, never fatal: the in-memory session stays canonical.
func (o *Orchestrator) persistLocked(ctx context.Context, st *sessionState) {
	if err := o.store.Save(ctx, st.sess); err != nil {
		o.logger.Error("persist failed",
			zap.String("case_id", st.sess.CaseID),
			zap.Error(err))
	}
}
