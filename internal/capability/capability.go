// Package capability abstracts the model call behind each pipeline stage.
//
// Stages never talk to a model SDK directly: they hand a Request to an
// Invoker and get structured output plus a self-reported confidence back.
// Two implementations exist: an LLM-backed invoker via langchaingo, and a
// scripted invoker for offline runs and tests. The orchestrator treats
// both identically, which is what makes every stage replayable.
package capability

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/lexfoundry/caseflowd/internal/evidence"
	"github.com/lexfoundry/caseflowd/internal/session"
)

// ErrUnavailable indicates the backing capability cannot be reached. The
// stage runner surfaces it as a distinct error kind so operators can tell
// infrastructure failures from content failures.
var ErrUnavailable = errors.New("capability unavailable")

// Request carries everything a stage invocation may see: the intake, the
// outputs of declared dependencies, and the retrieval set. Nothing else.
type Request struct {
	Stage     string                     `json:"stage"`
	Intake    session.Intake             `json:"intake"`
	Inputs    map[string]json.RawMessage `json:"inputs,omitempty"`
	Evidence  []evidence.Evidence        `json:"evidence,omitempty"`
	Directive string                     `json:"directive,omitempty"`
}

// Response is a stage invocation result. SelfReported is advisory only;
// validated confidence is derived downstream from evidence signals.
type Response struct {
	Output       json.RawMessage `json:"output"`
	Claims       []session.Claim `json:"claims,omitempty"`
	SelfReported float64         `json:"self_reported"`
}

// Invoker executes one stage capability call.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}
