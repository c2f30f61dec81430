package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

func TestMemoryStoreSessionRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	session := &models.Session{ID: "sess-1", UserID: "user-1", CreatedAt: time.Now()}

	require.NoError(t, store.CreateSession(ctx, session))

	got, err := store.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	byUser, err := store.SessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "sess-1", byUser[0].ID)
}

func TestMemoryStoreTrimsHistoryToMaxEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.AppendHistory(ctx, "sess-1", models.HistoryEntry{Role: models.HistorySystem, Content: "system prompt"}))
	for i := 0; i < models.MaxHistoryEntries+5; i++ {
		require.NoError(t, store.AppendHistory(ctx, "sess-1", models.HistoryEntry{Role: models.HistoryUser, Content: "msg"}))
	}

	entries, err := store.GetHistory(ctx, "sess-1")
	require.NoError(t, err)

	nonSystem := 0
	hasSystem := false
	for _, e := range entries {
		if e.Role == models.HistorySystem {
			hasSystem = true
		} else {
			nonSystem++
		}
	}
	assert.True(t, hasSystem, "system entry must never be dropped")
	assert.Equal(t, models.MaxHistoryEntries, nonSystem)
}

func TestMemoryStoreDropsOversizedToolResult(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	huge := make([]byte, models.MaxToolResultBytes+1)

	require.NoError(t, store.AppendHistory(ctx, "sess-1", models.HistoryEntry{Role: models.HistoryTool, Content: string(huge)}))

	entries, err := store.GetHistory(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
