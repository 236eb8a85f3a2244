package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lexfoundry/caseflowd/internal/session"
)

// FileStore persists one JSON document per case under a directory.
// Writes go through a temp file and rename so a crash mid-write never
// leaves a truncated snapshot behind.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed and returns a store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(caseID string) string {
	return filepath.Join(s.dir, caseID+".json")
}

// Save replaces the stored snapshot atomically.
func (s *FileStore) Save(_ context.Context, sess *session.CaseSession) error {
	if sess == nil || sess.CaseID == "" {
		return fmt.Errorf("session with case ID required")
	}
	if strings.ContainsAny(sess.CaseID, `/\`) {
		return fmt.Errorf("invalid case ID %q", sess.CaseID)
	}
	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", sess.CaseID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "case-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(sess.CaseID)); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Load reads the stored session.
func (s *FileStore) Load(_ context.Context, caseID string) (*session.CaseSession, error) {
	if strings.ContainsAny(caseID, `/\`) {
		return nil, fmt.Errorf("invalid case ID %q", caseID)
	}
	raw, err := os.ReadFile(s.path(caseID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, caseID)
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var sess session.CaseSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", caseID, err)
	}
	return &sess, nil
}

// List returns stored case IDs in sorted order.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing store directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases nothing; each operation opens and closes its own file.
func (s *FileStore) Close() error { return nil }
