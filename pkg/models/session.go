// Package models defines the shared data model for the orchestration core:
// sessions, runs, steps, tool definitions, and the cached provider entities
// that flow between them.
package models

import "time"

// Session is a persistent client attachment. A user may hold multiple
// concurrent sessions across devices; each session owns at most one active
// Run at a time.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"` // "anonymous" when unauthenticated
	ActiveRunID string   `json:"active_run_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AnonymousUserID is used for sessions with no authenticated user.
const AnonymousUserID = "anonymous"

// IsAnonymous reports whether the session has no authenticated user.
func (s *Session) IsAnonymous() bool {
	return s == nil || s.UserID == "" || s.UserID == AnonymousUserID
}
