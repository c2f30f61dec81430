// Package stream implements the Stream Multiplexer (spec §4.7): a
// process-wide, session-keyed registry of sinks that emits ordered,
// typed StreamEvents. Sink-agnostic: WS and SSE sinks both implement Sink.
package stream

import (
	"sync"

	"github.com/lutendolukhele/intentorch/pkg/models"
)

// Sink is anything that can accept one StreamEvent at a time, in the order
// it is sent. Implementations: the WebSocket sink and the SSE sink (§9's
// open question leaves the two non-bit-identical, only vocabulary-
// conformant).
type Sink interface {
	Send(event models.StreamEvent) error
}

// sessionChannel serializes all sends for one session through a single
// goroutine, guaranteeing issue-order delivery regardless of which caller
// goroutine calls SendChunk (spec §4.7, §5).
type sessionChannel struct {
	sink   Sink
	events chan models.StreamEvent
	done   chan struct{}
}

// Multiplexer is the process-wide session -> sink registry.
type Multiplexer struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionChannel
	userIndex   map[string]map[string]bool // userID -> set of sessionIDs
}

// New returns an empty Multiplexer.
func New() *Multiplexer {
	return &Multiplexer{
		sessions:  make(map[string]*sessionChannel),
		userIndex: make(map[string]map[string]bool),
	}
}

// Attach registers sink as the delivery target for sessionID, starting the
// per-session serialization goroutine. A prior sink for the same session
// is detached first.
func (m *Multiplexer) Attach(sessionID string, sink Sink) {
	m.Detach(sessionID)

	ch := &sessionChannel{
		sink:   sink,
		events: make(chan models.StreamEvent, 256),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.sessions[sessionID] = ch
	m.mu.Unlock()

	go ch.run()
}

func (c *sessionChannel) run() {
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			_ = c.sink.Send(ev)
		case <-c.done:
			return
		}
	}
}

// AttachUser records that sessionID belongs to userID, for BroadcastToUser.
func (m *Multiplexer) AttachUser(userID, sessionID string) {
	if userID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.userIndex[userID]
	if !ok {
		set = make(map[string]bool)
		m.userIndex[userID] = set
	}
	set[sessionID] = true
}

// Detach removes a session's sink; any events sent afterward are dropped
// silently (spec §4.7).
func (m *Multiplexer) Detach(sessionID string) {
	m.mu.Lock()
	ch, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	for _, set := range m.userIndex {
		delete(set, sessionID)
	}
	m.mu.Unlock()

	if ok {
		close(ch.done)
	}
}

// SendChunk enqueues event for delivery to sessionID. Events for the same
// session are delivered in the order SendChunk was called (spec §4.7); a
// detached session drops the event silently.
func (m *Multiplexer) SendChunk(sessionID string, event models.StreamEvent) {
	event.SessionID = sessionID
	m.mu.RLock()
	ch, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case ch.events <- event:
	case <-ch.done:
	}
}

// BroadcastToUser sends event to every session currently attached under
// userID, resolved via the reverse index (spec §4.7).
func (m *Multiplexer) BroadcastToUser(userID string, event models.StreamEvent) {
	m.mu.RLock()
	set := m.userIndex[userID]
	sessionIDs := make([]string, 0, len(set))
	for id := range set {
		sessionIDs = append(sessionIDs, id)
	}
	m.mu.RUnlock()

	for _, id := range sessionIDs {
		m.SendChunk(id, event)
	}
}

// IsAttached reports whether a sink is currently registered for sessionID.
func (m *Multiplexer) IsAttached(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[sessionID]
	return ok
}
