package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// SSESink delivers StreamEvents as `event: <type>\ndata: <json>\n\n` frames
// over a single long-lived HTTP response, flushed after every write.
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	events  chan models.StreamEvent
	done    chan struct{}
}

// ServeSSE upgrades w/r into an SSE stream attached to mux under sessionID
// and blocks until the client disconnects or the request context ends.
// welcome events are enqueued immediately after attach so they arrive
// first, ahead of any turn-driven event (spec §6.1).
func ServeSSE(w http.ResponseWriter, r *http.Request, mux *Multiplexer, sessionID string, welcome ...models.StreamEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sink := &SSESink{w: w, flusher: flusher, events: make(chan models.StreamEvent, 64), done: make(chan struct{})}
	mux.Attach(sessionID, sink)
	defer mux.Detach(sessionID)
	for _, ev := range welcome {
		mux.SendChunk(sessionID, ev)
	}

	sink.pump(r.Context())
}

// Send implements Sink by queueing event for the pump goroutine.
func (s *SSESink) Send(event models.StreamEvent) error {
	select {
	case s.events <- event:
		return nil
	case <-s.done:
		return nil
	default:
		return nil
	}
}

func (s *SSESink) pump(ctx context.Context) {
	defer close(s.done)
	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(s.w, ": keep-alive\n\n")
			s.flusher.Flush()
		case event, ok := <-s.events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data)
			s.flusher.Flush()
		}
	}
}
