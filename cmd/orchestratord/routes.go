package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lutendolukhele/intentorch/internal/catalog"
	"github.com/lutendolukhele/intentorch/internal/stream"
	"github.com/lutendolukhele/intentorch/pkg/models"
)

// routes builds the full HTTP mux: session creation, message submission,
// the two stream transports, and process health/metrics.
func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/sessions", a.handleCreateSession)
	mux.HandleFunc("POST /v1/sessions/{sessionID}/messages", a.handleSubmitMessage)
	mux.HandleFunc("POST /v1/sessions/{sessionID}/runs/{runID}/confirm", a.handleConfirmRun)
	mux.HandleFunc("GET /v1/sessions/{sessionID}/stream/ws", a.handleWS)
	mux.HandleFunc("GET /v1/sessions/{sessionID}/stream/sse", a.handleSSE)
	return mux
}

func (a *app) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type createSessionRequest struct {
	UserID string `json:"userId"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// handleCreateSession creates a Session for an authenticated (or
// anonymous, per spec §3) user ahead of the client opening a stream.
func (a *app) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	userID := req.UserID
	if userID == "" {
		userID = models.AnonymousUserID
	}

	session := &models.Session{ID: uuid.NewString(), UserID: userID}
	if err := a.store.CreateSession(r.Context(), session); err != nil {
		a.logger.Error("create session failed", "error", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	a.mux.AttachUser(session.UserID, session.ID)
	a.notifySiblingSessionsOfNewDevice(r.Context(), session)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(createSessionResponse{SessionID: session.ID, UserID: session.UserID})
}

// notifySiblingSessionsOfNewDevice tells a user's other already-open
// sessions that their available-tools snapshot may be stale (spec §6.1's
// tools_updated) whenever a new session is created for the same user: one
// user may hold multiple concurrent sessions across devices (spec line 6),
// and a new device joining is the signal this deployment has that the
// user's provider connections could have changed since an existing
// session's last lookup. Resolved via sessionstore.Store.SessionsByUser and
// delivered through Multiplexer.BroadcastToUser.
func (a *app) notifySiblingSessionsOfNewDevice(ctx context.Context, session *models.Session) {
	siblings, err := a.store.SessionsByUser(ctx, session.UserID)
	if err != nil {
		a.logger.Warn("sibling session lookup failed", "user_id", session.UserID, "error", err)
		return
	}
	if len(siblings) <= 1 {
		return
	}
	a.filter.Invalidate(session.UserID)
	a.mux.BroadcastToUser(session.UserID, models.StreamEvent{Type: models.EventToolsUpdated})
}

type submitMessageRequest struct {
	Input string `json:"input"`
}

// handleSubmitMessage enqueues a user turn for asynchronous processing:
// the coordinator's results arrive over the session's already-open WS/SSE
// stream, not in this response (spec §4.11).
func (a *app) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	session, err := a.store.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var req submitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Input == "" {
		http.Error(w, "input is required", http.StatusBadRequest)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := a.coordinator.HandleTurn(ctx, session.ID, session.UserID, req.Input); err != nil {
			a.logger.Error("turn failed", "session_id", session.ID, "error", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

type confirmRunRequest struct {
	ArgumentEdits map[string]map[string]any `json:"argumentEdits"`
}

// handleConfirmRun resumes a Run parked in action_confirmation_required or
// parameter_collection_required (spec §4.11 step 5); results stream over
// the session's already-open WS/SSE stream, same as handleSubmitMessage.
func (a *app) handleConfirmRun(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	runID := r.PathValue("runID")
	session, err := a.store.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var req confirmRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := a.coordinator.Confirm(ctx, session.ID, session.UserID, runID, req.ArgumentEdits); err != nil {
			a.logger.Error("confirm run failed", "session_id", session.ID, "run_id", runID, "error", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (a *app) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	welcome := a.sessionWelcomeEvents(r.Context(), sessionID)
	if err := stream.NewWSSink(w, r, a.logger, a.mux, sessionID, welcome...); err != nil {
		a.logger.Warn("ws sink closed", "session_id", sessionID, "error", err)
	}
}

func (a *app) handleSSE(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	welcome := a.sessionWelcomeEvents(r.Context(), sessionID)
	stream.ServeSSE(w, r, a.mux, sessionID, welcome...)
}

// sessionWelcomeEvents builds the connection_ack/auth_success/session_init
// sequence sent to a client the instant its stream attaches (spec §6.1):
// the session is now attached, the (possibly anonymous) user is resolved,
// and the initial per-user available-tools snapshot is computed from the
// User Tool Filter. It also re-registers the session under its owning user
// in the Multiplexer's reverse index (mux.Detach drops that registration on
// every prior disconnect, so a reconnecting stream must re-attach it before
// BroadcastToUser can reach this session again). A session lookup failure
// still yields connection_ack alone rather than failing the stream attach
// outright.
func (a *app) sessionWelcomeEvents(ctx context.Context, sessionID string) []models.StreamEvent {
	events := []models.StreamEvent{{Type: models.EventConnectionAck}}

	session, err := a.store.GetSession(ctx, sessionID)
	if err != nil {
		a.logger.Warn("welcome: session lookup failed", "session_id", sessionID, "error", err)
		return events
	}
	a.mux.AttachUser(session.UserID, session.ID)
	events = append(events, models.StreamEvent{
		Type:    models.EventAuthSuccess,
		Payload: map[string]string{"userId": session.UserID},
	})

	tools, err := a.filter.GetAvailableToolsForUser(session.UserID)
	if err != nil {
		a.logger.Warn("welcome: tool filter failed", "user_id", session.UserID, "error", err)
		return events
	}
	defs, err := catalog.FormatForLLM(tools)
	if err != nil {
		a.logger.Warn("welcome: format tools failed", "user_id", session.UserID, "error", err)
		return events
	}
	events = append(events, models.StreamEvent{Type: models.EventSessionInit, Payload: defs})
	return events
}
