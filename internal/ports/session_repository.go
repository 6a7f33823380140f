package ports

import (
	"context"
	"time"

	"github.com/bft-labs/muxship/internal/domain"
)

// SessionRecord is what survives a process restart: the session identity and
// a little bookkeeping about its connections.
type SessionRecord struct {
	SessionID        domain.SessionID `json:"session_id"`
	Connections      uint64           `json:"connections"`
	LastCheckPointAt time.Time        `json:"last_checkpoint_at"`
}

// SessionRepository persists the session record.
type SessionRepository interface {
	// Load returns the saved record. A missing record yields the zero value and nil.
	Load(ctx context.Context) (SessionRecord, error)

	// Save persists the record atomically.
	Save(ctx context.Context, rec SessionRecord) error
}
