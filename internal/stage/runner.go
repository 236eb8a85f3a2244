package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lexfoundry/caseflowd/internal/capability"
	"github.com/lexfoundry/caseflowd/internal/citation"
	"github.com/lexfoundry/caseflowd/internal/confidence"
	"github.com/lexfoundry/caseflowd/internal/evidence"
	"github.com/lexfoundry/caseflowd/internal/gate"
	"github.com/lexfoundry/caseflowd/internal/session"
)

// Config holds runner-wide execution defaults. Stage definitions may
// override Timeout and MaxRetries per stage.
type Config struct {
	// Timeout bounds a single capability attempt.
	Timeout time.Duration `koanf:"timeout"`

	// MaxRetries bounds retries after transient failures.
	MaxRetries int `koanf:"max_retries"`

	// Backoff is the base delay before the first retry, doubled each
	// subsequent attempt.
	Backoff time.Duration `koanf:"backoff"`

	// TopK is how many evidence items a retrieval stage requests.
	TopK int `koanf:"top_k"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
}

// Input is the read-only slice of session state a stage run may see. The
// orchestrator assembles it under its session lock; the runner never
// touches the session itself, it only returns the record to apply.
type Input struct {
	CaseID    string
	Intake    session.Intake
	RiskFlags []session.RiskFlag

	// Dependencies maps each declared dependency name to its latest
	// record. A missing or nil entry fails the run before any
	// capability call.
	Dependencies map[string]*session.StageRecord
}

// Runner executes stages against a capability and the evidence corpus.
// It holds no per-session state and is safe for concurrent use.
type Runner struct {
	invoker    capability.Invoker
	store      evidence.Store
	validator  *citation.Validator
	aggregator *confidence.Aggregator
	config     Config
	logger     *zap.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewRunner wires a runner. The store may be nil only if no definition it
// runs performs retrieval.
func NewRunner(invoker capability.Invoker, store evidence.Store, validator *citation.Validator, aggregator *confidence.Aggregator, config Config, logger *zap.Logger) *Runner {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		invoker:    invoker,
		store:      store,
		validator:  validator,
		aggregator: aggregator,
		config:     config,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Run executes one stage and returns its terminal record. The record is
// always returned, succeeded or failed; the caller appends it to the
// session. A non-nil error means the stage FAILED; ESCALATE and BLOCK are
// successful runs whose handoff decision the caller acts on.
func (r *Runner) Run(ctx context.Context, in Input, def Definition) (*session.StageRecord, error) {
	rec := session.NewStageRecord(def.Name)
	rec.State = session.RecordRunning

	log := r.logger.With(
		zap.String("case_id", in.CaseID),
		zap.String("stage", def.Name),
		zap.String("record_id", rec.ID),
	)

	inputs, err := collectDependencies(in, def)
	if err != nil {
		return rec, r.fail(rec, log, &Error{Kind: KindMissingDependency, Stage: def.Name, Err: err})
	}

	snapshot, err := json.Marshal(struct {
		Intake session.Intake             `json:"intake"`
		Inputs map[string]json.RawMessage `json:"inputs,omitempty"`
	}{in.Intake, inputs})
	if err != nil {
		return rec, r.fail(rec, log, &Error{Kind: KindTransformation, Stage: def.Name, Err: err})
	}
	rec.InputSnapshot = snapshot

	retrieved, query, err := r.retrieve(ctx, in.Intake, inputs, def)
	if err != nil {
		return rec, r.fail(rec, log, &Error{Kind: KindCapabilityUnavailable, Stage: def.Name, Err: err})
	}

	resp, runErr := r.invokeWithRetry(ctx, rec, def, capability.Request{
		Stage:     def.Name,
		Intake:    in.Intake,
		Inputs:    inputs,
		Evidence:  retrieved,
		Directive: def.Directive,
	}, log)
	if runErr != nil {
		return rec, r.fail(rec, log, runErr)
	}

	if def.ValidateOutput != nil {
		if err := def.ValidateOutput(resp.Output); err != nil {
			return rec, r.fail(rec, log, &Error{Kind: KindTransformation, Stage: def.Name, Err: fmt.Errorf("output contract: %w", err)})
		}
	}

	r.grade(rec, def, in.RiskFlags, resp, retrieved, query)
	rec.State = session.RecordSucceeded
	rec.CompletedAt = time.Now().UTC()

	log.Info("stage completed",
		zap.String("confidence", string(rec.ValidatedConfidence)),
		zap.String("handoff", string(rec.Handoff)),
		zap.Int("attempts", rec.AttemptCount),
		zap.Int("claims", len(rec.Claims)))
	return rec, nil
}

// collectDependencies enforces fail-fast: every declared dependency must
// have a succeeded, PASS-gated record before the capability is touched.
func collectDependencies(in Input, def Definition) (map[string]json.RawMessage, error) {
	if len(def.DependsOn) == 0 {
		return nil, nil
	}
	inputs := make(map[string]json.RawMessage, len(def.DependsOn))
	for _, dep := range def.DependsOn {
		depRec := in.Dependencies[dep]
		switch {
		case depRec == nil:
			return nil, fmt.Errorf("dependency %s has no record", dep)
		case !depRec.Succeeded():
			return nil, fmt.Errorf("dependency %s is %s", dep, depRec.State)
		case depRec.Handoff != session.DecisionPass:
			return nil, fmt.Errorf("dependency %s handoff is %s, not PASS", dep, depRec.Handoff)
		}
		inputs[dep] = depRec.Output
	}
	return inputs, nil
}

func (r *Runner) retrieve(ctx context.Context, intake session.Intake, inputs map[string]json.RawMessage, def Definition) ([]evidence.Evidence, string, error) {
	if def.Query == nil {
		return nil, "", nil
	}
	if r.store == nil {
		return nil, "", fmt.Errorf("stage %s requires retrieval but no evidence store is configured", def.Name)
	}
	query := def.Query(intake, inputs)
	if query == "" {
		return nil, "", nil
	}
	results, err := r.store.Query(ctx, query, nil, r.config.TopK)
	if err != nil {
		return nil, "", fmt.Errorf("evidence query: %w", err)
	}
	return results, query, nil
}

// invokeWithRetry runs the capability with per-attempt timeout. Transient
// failures retry with exponential backoff up to the retry budget; a
// TransformationError retries at most once and only for idempotent stages.
func (r *Runner) invokeWithRetry(ctx context.Context, rec *session.StageRecord, def Definition, req capability.Request, log *zap.Logger) (*capability.Response, *Error) {
	timeout := def.Timeout
	if timeout <= 0 {
		timeout = r.config.Timeout
	}
	maxRetries := def.MaxRetries
	if maxRetries == 0 {
		maxRetries = r.config.MaxRetries
	} else if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr *Error
	transformRetried := false
	for attempt := 0; ; attempt++ {
		rec.AttemptCount = attempt + 1

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := r.invoker.Invoke(attemptCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}

		kind := Classify(err)
		lastErr = &Error{Kind: kind, Stage: def.Name, Err: err}
		log.Warn("stage attempt failed",
			zap.Int("attempt", attempt+1),
			zap.String("kind", string(kind)),
			zap.Error(err))

		if ctx.Err() != nil {
			return nil, lastErr
		}

		switch {
		case kind.Transient() && attempt < maxRetries:
			r.sleep(r.config.Backoff * time.Duration(1<<attempt))
		case kind == KindTransformation && def.Idempotent && !transformRetried:
			transformRetried = true
		default:
			return nil, lastErr
		}
	}
}

// grade composes citation validation, coverage, contradiction detection,
// confidence aggregation, and the handoff gate into the record.
func (r *Runner) grade(rec *session.StageRecord, def Definition, riskFlags []session.RiskFlag, resp *capability.Response, retrieved []evidence.Evidence, query string) {
	outcome := r.validator.Validate(resp.Claims, retrieved, def.ClaimBearing)

	coverage := 1.0
	if query != "" {
		coverage = evidence.Coverage(query, retrieved)
	}
	contradictions := evidence.DetectContradictions(retrieved)

	grade := r.aggregator.Aggregate(confidence.Signals{
		Citations:    outcome,
		Coverage:     coverage,
		SelfReported: resp.SelfReported,
		ClaimBearing: def.ClaimBearing,
	})

	decision := gate.Decide(gate.Input{
		StageName:     def.Name,
		ClaimBearing:  def.ClaimBearing,
		Confidence:    grade.Confidence,
		RiskFlags:     riskFlags,
		Contradiction: len(contradictions) > 0,
	})

	rec.Output = resp.Output
	rec.SelfReported = resp.SelfReported
	rec.Claims = outcome.Retained
	rec.Citations = retainedCitations(outcome.Retained, retrieved)
	rec.ValidatedConfidence = grade.Confidence
	rec.Handoff = decision.Decision
	rec.HandoffReason = decision.Reason

	// Content-quality outcomes are recorded in the error taxonomy even on
	// SUCCEEDED records so reports can name what went wrong.
	switch {
	case outcome.AnyRejected():
		rec.ErrorKind = string(KindCitationUnverifiable)
		rec.LastError = grade.Reason
	case len(contradictions) > 0:
		rec.ErrorKind = string(KindContradictionUnresolved)
		rec.LastError = contradictions[0].Reason
	case decision.Decision == session.DecisionBlock && grade.Confidence != session.ConfidenceLow:
		rec.ErrorKind = string(KindRiskPolicyBlock)
		rec.LastError = decision.Reason
	}
}

// retainedCitations flattens the citations of retained claims, carrying
// the trust score of the cited source forward from the retrieval set.
func retainedCitations(claims []session.Claim, retrieved []evidence.Evidence) []session.Citation {
	trust := make(map[string]float64, len(retrieved))
	for _, ev := range retrieved {
		trust[ev.SourceID] = ev.TrustScore
	}
	var out []session.Citation
	for _, claim := range claims {
		for _, cit := range claim.Citations {
			cit.TrustScore = trust[cit.SourceID]
			out = append(out, cit)
		}
	}
	return out
}

// fail finalizes a FAILED record.
func (r *Runner) fail(rec *session.StageRecord, log *zap.Logger, stageErr *Error) error {
	rec.State = session.RecordFailed
	rec.ErrorKind = string(stageErr.Kind)
	rec.LastError = stageErr.Err.Error()
	rec.CompletedAt = time.Now().UTC()

	log.Warn("stage failed",
		zap.String("kind", string(stageErr.Kind)),
		zap.Int("attempts", rec.AttemptCount),
		zap.Error(stageErr.Err))
	return stageErr
}
