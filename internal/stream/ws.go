package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 45 * time.Second
	wsPingInterval    = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSSink delivers StreamEvents over a single websocket connection as JSON
// text frames, serialized through a buffered send channel (teacher's
// wsSession pattern).
type WSSink struct {
	conn   *websocket.Conn
	send   chan []byte
	cancel context.CancelFunc
}

// NewWSSink upgrades r/w to a websocket connection and attaches it to mux
// under sessionID. It starts the read/write pump goroutines and blocks
// until the connection closes, matching the teacher's per-connection
// run-to-completion handler shape. welcome events (connection_ack,
// session_init, ...) are sent immediately after attach, before any
// turn-driven event can reach the sink, so they are always first in the
// session's ordered stream (spec §6.1).
func NewWSSink(w http.ResponseWriter, r *http.Request, logger *slog.Logger, mux *Multiplexer, sessionID string, welcome ...models.StreamEvent) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(r.Context())
	sink := &WSSink{conn: conn, send: make(chan []byte, 64), cancel: cancel}

	mux.Attach(sessionID, sink)
	defer mux.Detach(sessionID)
	for _, ev := range welcome {
		mux.SendChunk(sessionID, ev)
	}

	go sink.writeLoop(ctx)
	sink.readLoop(logger)
	return nil
}

// Send implements Sink by enqueueing the JSON-encoded event for delivery.
func (s *WSSink) Send(event models.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case s.send <- data:
		return nil
	default:
		return nil // slow client, drop rather than block the multiplexer
	}
}

func (s *WSSink) readLoop(logger *slog.Logger) {
	defer s.cancel()
	s.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *WSSink) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	defer func() { _ = s.conn.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
