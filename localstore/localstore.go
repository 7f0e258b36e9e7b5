// Package localstore persists small on-device state documents under the data
// directory: the current user record and one comment list per clip. Each key
// maps to a single JSON file; writes are atomic (temp file + rename) and a
// corrupt or missing document reads as absent rather than failing the caller.
package localstore

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/onnwee/streampulse/crypto"
)

const (
	userFile    = "user.json"
	commentsDir = "comments"
)

// Store owns the data directory. When a Sealer is provided the user record is
// encrypted at rest (it can carry an email address); comment lists are stored
// in the clear.
type Store struct {
	dir    string
	sealer crypto.Sealer
}

// Open ensures the data directory exists and returns a Store. sealer may be nil.
func Open(dir string, sealer crypto.Sealer) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data dir is empty")
	}
	if err := os.MkdirAll(filepath.Join(dir, commentsDir), 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir, sealer: sealer}, nil
}

// GetUser returns the persisted user record, or ok=false if absent or
// unreadable. Corruption is logged, never propagated.
func (s *Store) GetUser() (data []byte, ok bool) {
	raw, err := os.ReadFile(filepath.Join(s.dir, userFile))
	if err != nil {
		return nil, false
	}
	if s.sealer != nil {
		opened, err := s.sealer.Open(raw)
		if err != nil {
			slog.Warn("stored user record unreadable, treating as absent", slog.Any("err", err), slog.String("component", "localstore"))
			return nil, false
		}
		return opened, true
	}
	return raw, true
}

// PutUser persists the user record, replacing any previous one.
func (s *Store) PutUser(data []byte) error {
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(data)
		if err != nil {
			return fmt.Errorf("seal user record: %w", err)
		}
		data = sealed
	}
	return s.writeAtomic(filepath.Join(s.dir, userFile), data)
}

// GetComments returns the persisted comment list for a clip, or ok=false.
func (s *Store) GetComments(clipID string) (data []byte, ok bool) {
	raw, err := os.ReadFile(s.commentsPath(clipID))
	if err != nil {
		return nil, false
	}
	return raw, true
}

// PutComments persists the full comment list for a clip.
func (s *Store) PutComments(clipID string, data []byte) error {
	return s.writeAtomic(s.commentsPath(clipID), data)
}

func (s *Store) commentsPath(clipID string) string {
	// Clip ids can be arbitrary strings in degraded mode; escape them so they
	// cannot traverse out of the comments directory.
	return filepath.Join(s.dir, commentsDir, url.PathEscape(clipID)+".json")
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
