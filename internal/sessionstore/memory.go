package sessionstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// MemoryStore is an in-memory Store for tests and local runs (teacher's
// sessions.MemoryStore pattern).
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	byUser   map[string][]string
	history  map[string][]models.HistoryEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
		byUser:   make(map[string][]string),
		history:  make(map[string][]models.HistoryEntry),
	}
}

func (m *MemoryStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("sessionstore: session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *session
	m.sessions[clone.ID] = &clone
	m.byUser[clone.UserID] = append(m.byUser[clone.UserID], clone.ID)
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("sessionstore: session %q not found", id)
	}
	clone := *s
	return &clone, nil
}

func (m *MemoryStore) UpdateSession(ctx context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("sessionstore: session is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return fmt.Errorf("sessionstore: session %q not found", session.ID)
	}
	clone := *session
	m.sessions[clone.ID] = &clone
	return nil
}

func (m *MemoryStore) SessionsByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byUser[userID]
	out := make([]*models.Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.sessions[id]; ok {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MemoryStore) AppendHistory(ctx context.Context, sessionID string, entry models.HistoryEntry) error {
	if entry.Role != models.HistorySystem && entry.SizeBytes() > models.MaxToolResultBytes {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := append(m.history[sessionID], entry)
	entries = trimHistory(entries)
	m.history[sessionID] = entries
	return nil
}

func (m *MemoryStore) GetHistory(ctx context.Context, sessionID string) ([]models.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.history[sessionID]
	out := make([]models.HistoryEntry, len(src))
	copy(out, src)
	return out, nil
}

// trimHistory drops the oldest non-system entries once the non-system
// count exceeds models.MaxHistoryEntries (spec §3); system entries don't
// count toward the bound and are never dropped here.
func trimHistory(entries []models.HistoryEntry) []models.HistoryEntry {
	nonSystem := 0
	for _, e := range entries {
		if e.Role != models.HistorySystem {
			nonSystem++
		}
	}
	excess := nonSystem - models.MaxHistoryEntries
	if excess <= 0 {
		return entries
	}
	out := make([]models.HistoryEntry, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		if e.Role != models.HistorySystem && dropped < excess {
			dropped++
			continue
		}
		out = append(out, e)
	}
	return out
}
