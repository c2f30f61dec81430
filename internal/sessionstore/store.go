// Package sessionstore persists Sessions and their bounded conversation
// history (spec §6.4): a key-value store for session state plus an
// append-only history sink whose writes are logged-and-swallowed on
// failure, never fatal to the user turn.
package sessionstore

import (
	"context"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// Store is session + history persistence. Implementations: MemoryStore for
// tests/local runs, PostgresStore for production (teacher's
// CockroachStore pattern, generalized to any lib/pq-compatible target).
type Store interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	SessionsByUser(ctx context.Context, userID string) ([]*models.Session, error)

	// AppendHistory bounds history at models.MaxHistoryEntries non-system
	// entries per session (spec §3), dropping the oldest first. A tool
	// entry whose content exceeds models.MaxToolResultBytes is dropped
	// rather than inserted.
	AppendHistory(ctx context.Context, sessionID string, entry models.HistoryEntry) error
	GetHistory(ctx context.Context, sessionID string) ([]models.HistoryEntry, error)
}
