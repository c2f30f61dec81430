package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.StreamEvent
}

func (r *recordingSink) Send(event models.StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) snapshot() []models.StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.StreamEvent, len(r.events))
	copy(out, r.events)
	return out
}

func TestMultiplexerDeliversInOrder(t *testing.T) {
	mux := New()
	sink := &recordingSink{}
	mux.Attach("sess-1", sink)

	for i := 0; i < 20; i++ {
		mux.SendChunk("sess-1", models.StreamEvent{Type: models.EventToolStatusUpdate, Content: string(rune('a' + i))})
	}

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 20 }, time.Second, time.Millisecond)
	got := sink.snapshot()
	for i, ev := range got {
		assert.Equal(t, string(rune('a'+i)), ev.Content)
		assert.Equal(t, "sess-1", ev.SessionID)
	}
}

func TestMultiplexerDropsAfterDetach(t *testing.T) {
	mux := New()
	sink := &recordingSink{}
	mux.Attach("sess-1", sink)
	mux.Detach("sess-1")

	mux.SendChunk("sess-1", models.StreamEvent{Type: models.EventError})
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, sink.snapshot())
	assert.False(t, mux.IsAttached("sess-1"))
}

func TestBroadcastToUser(t *testing.T) {
	mux := New()
	sinkA := &recordingSink{}
	sinkB := &recordingSink{}
	mux.Attach("sess-a", sinkA)
	mux.Attach("sess-b", sinkB)
	mux.AttachUser("user-1", "sess-a")
	mux.AttachUser("user-1", "sess-b")

	mux.BroadcastToUser("user-1", models.StreamEvent{Type: models.EventToolsUpdated})

	require.Eventually(t, func() bool {
		return len(sinkA.snapshot()) == 1 && len(sinkB.snapshot()) == 1
	}, time.Second, time.Millisecond)
}
