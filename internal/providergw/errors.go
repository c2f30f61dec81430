package providergw

import (
	"fmt"
	"time"
)

// ProviderError is the structured failure a provider adapter returns from
// TriggerAction/FetchFromCache/TriggerSync (spec §4.1).
type ProviderError struct {
	ProviderKey    string
	ActionName     string
	StatusCode     int
	ProviderPayload any
	Timestamp      time.Time
	Cause          error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %s action %s failed (status %d): %v", e.ProviderKey, e.ActionName, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("provider %s action %s failed (status %d)", e.ProviderKey, e.ActionName, e.StatusCode)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Class reports the spec §4.1/§7 error-kind classification: 4xx is
// "validation", everything else (transport/5xx) is surfaced unchanged for
// the caller (the Executor/Orchestrator retry policy) to decide.
func (e *ProviderError) Class() string {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return "validation"
	}
	return "transport"
}

// IsRetryable reports whether the caller's retry policy should consider
// retrying this failure: transport/5xx yes, validation (4xx) no (spec
// §4.1, §4.6's retry policy).
func (e *ProviderError) IsRetryable() bool {
	return e.Class() == "transport"
}
