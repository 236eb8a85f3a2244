package stage

import (
	"encoding/json"
	"time"

	"github.com/lexfoundry/caseflowd/internal/session"
)

// QueryFunc builds the retrieval query for a stage from the intake and the
// outputs of its declared dependencies. A nil QueryFunc means the stage
// performs no retrieval.
type QueryFunc func(intake session.Intake, inputs map[string]json.RawMessage) string

// ValidateFunc checks a stage output against its declared contract before
// any downstream consumer sees it. A validation failure is a
// TransformationError.
type ValidateFunc func(output json.RawMessage) error

// Definition describes one stage of the pipeline: its position in the
// dependency graph, its safety posture, and its execution limits. Stages
// never reference each other directly, only names in DependsOn.
type Definition struct {
	// Name uniquely identifies the stage within a pipeline.
	Name string

	// DependsOn lists stages whose approved output this stage consumes.
	DependsOn []string

	// ClaimBearing marks stages that assert legal positions. Such stages
	// fall under the no-citation-no-claim rule and BLOCK at LOW
	// confidence instead of escalating.
	ClaimBearing bool

	// Idempotent permits a single retry after a TransformationError.
	// Non-idempotent stages never retry content failures.
	Idempotent bool

	// Directive is the instruction handed to the capability.
	Directive string

	// Query builds the retrieval query, nil for non-retrieval stages.
	Query QueryFunc

	// ValidateOutput checks the typed output contract, optional.
	ValidateOutput ValidateFunc

	// Timeout bounds a single attempt. Zero uses the runner default.
	Timeout time.Duration

	// MaxRetries bounds retries for transient failures. Zero uses the
	// runner default; negative disables retries entirely.
	MaxRetries int
}
