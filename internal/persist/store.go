package persist

import (
	"context"
	"errors"

	"github.com/lexfoundry/caseflowd/internal/session"
)

// ErrNotFound indicates no session exists for the requested case ID.
var ErrNotFound = errors.New("case not found")

// Store persists case session snapshots.
type Store interface {
	// Save replaces the stored snapshot for the session's case ID.
	Save(ctx context.Context, sess *session.CaseSession) error

	// Load returns a deep copy of the stored session, or ErrNotFound.
	Load(ctx context.Context, caseID string) (*session.CaseSession, error)

	// List returns all stored case IDs.
	List(ctx context.Context) ([]string, error)

	// Close releases store resources.
	Close() error
}
