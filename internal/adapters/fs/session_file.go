// Package fs persists the session record as a JSON file.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/muxship/internal/ports"
)

const sessionFileName = "status.json"

// SessionFileRepository implements ports.SessionRepository with a JSON file
// in a state directory.
type SessionFileRepository struct {
	dir string
}

// NewSessionFileRepository creates a repository rooted at dir.
func NewSessionFileRepository(dir string) *SessionFileRepository {
	return &SessionFileRepository{dir: dir}
}

// Load reads the record. A missing file yields the zero record.
func (r *SessionFileRepository) Load(ctx context.Context) (ports.SessionRecord, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ports.SessionRecord{}, nil
		}
		return ports.SessionRecord{}, err
	}

	var rec ports.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ports.SessionRecord{}, fmt.Errorf("decode %s: %w", r.Path(), err)
	}
	return rec, nil
}

// Save writes the record through a temp file and a rename.
func (r *SessionFileRepository) Save(ctx context.Context, rec ports.SessionRecord) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, r.Path())
}

// Path returns the full path of the record file.
func (r *SessionFileRepository) Path() string {
	return filepath.Join(r.dir, sessionFileName)
}
