package models

import "time"

// EntityCacheTTL is how long a CachedEntity remains valid (spec §3: 24h).
const EntityCacheTTL = 24 * time.Hour

// FetchDedupTTL is how long a fetch fingerprint's entity-id list is
// reusable without a second remote call (spec §3: 1h).
const FetchDedupTTL = time.Hour

// WarmupTTL is how long a successful provider warm remains valid (spec §3: 30m).
const WarmupTTL = 30 * time.Minute

// MaxCleanBodyBytes caps a cached entity's cleaned text body (spec §3/§4.4: 5 KiB).
const MaxCleanBodyBytes = 5 * 1024

// TruncationMarker is appended when a cleaned body is capped.
const TruncationMarker = "… [truncated]"

// CachedEntity is a session-scoped, provider-sourced record with a cleaned,
// size-capped body suitable for LLM consumption.
type CachedEntity struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Provider  string         `json:"provider"`
	CleanBody string         `json:"clean_body"`
	BodyHash  string         `json:"body_hash"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
}
