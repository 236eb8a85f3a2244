package capability

import (
	"context"
	"fmt"
	"sync"
)

// StageFunc computes one scripted stage response.
type StageFunc func(ctx context.Context, req Request) (*Response, error)

// Scripted is a deterministic Invoker backed by per-stage functions. It
// drives offline runs and tests; a stage with no script is reported as
// ErrUnavailable, exactly like an unreachable model endpoint.
type Scripted struct {
	mu     sync.RWMutex
	stages map[string]StageFunc
	calls  map[string]int
}

// NewScripted returns an empty scripted invoker.
func NewScripted() *Scripted {
	return &Scripted{
		stages: make(map[string]StageFunc),
		calls:  make(map[string]int),
	}
}

// Register installs the script for a stage, replacing any previous one.
func (s *Scripted) Register(stage string, fn StageFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[stage] = fn
}

// Calls reports how many times a stage has been invoked.
func (s *Scripted) Calls(stage string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[stage]
}

// Invoke runs the registered script for the requested stage.
func (s *Scripted) Invoke(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	fn, ok := s.stages[req.Stage]
	s.calls[req.Stage]++
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: no script for stage %s", ErrUnavailable, req.Stage)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fn(ctx, req)
}
