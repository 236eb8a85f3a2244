package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexfoundry/caseflowd/internal/capability"
)

// ErrorKind is the stage failure taxonomy recorded on StageRecords and
// surfaced in case reports. Kinds are stable strings: they appear in
// persisted audit trails.
type ErrorKind string

const (
	KindMissingDependency       ErrorKind = "MissingDependency"
	KindTimeout                 ErrorKind = "Timeout"
	KindTransformation          ErrorKind = "TransformationError"
	KindCapabilityUnavailable   ErrorKind = "CapabilityUnavailable"
	KindCitationUnverifiable    ErrorKind = "CitationUnverifiable"
	KindContradictionUnresolved ErrorKind = "ContradictionUnresolved"
	KindRiskPolicyBlock         ErrorKind = "RiskPolicyBlock"
)

// Transient reports whether a failure of this kind may succeed on retry.
// Content failures (bad output, unverifiable citations) are not transient:
// re-running the same transformation on the same input cannot fix them.
func (k ErrorKind) Transient() bool {
	return k == KindTimeout || k == KindCapabilityUnavailable
}

// Error wraps a stage failure with its taxonomy kind and stage name.
type Error struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps an invocation error to its taxonomy kind.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, capability.ErrUnavailable):
		return KindCapabilityUnavailable
	default:
		return KindTransformation
	}
}
