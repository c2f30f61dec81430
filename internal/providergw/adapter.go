package providergw

import "context"

// FetchQuery is the uniform request shape for a cache-path fetch (spec
// §4.1/§4.6): a bounded, optionally cursor-paginated pull of an entity
// model's recently-synced records.
type FetchQuery struct {
	Limit         int
	ModifiedAfter *int64 // unix seconds, optional
	Cursor        string
}

// FetchedEntity is the adapter-facing shape returned by a cache-path fetch,
// before the Orchestrator applies the filter DSL and cleans/caps bodies.
type FetchedEntity struct {
	ID        string
	Type      string
	Body      map[string]any
	UpdatedAt int64 // unix seconds
}

// Adapter is the Provider Adapter Contract (spec §6.3): a pluggable
// translator between the gateway's uniform contract and one external
// system's native protocol. Provider keys are opaque configuration
// identifiers; an alias group of keys is treated as interchangeable by the
// User Tool Filter (§4.3), not by the adapter itself.
type Adapter interface {
	// Warm performs a single lightweight identity call to pre-open a
	// connection. Errors are the caller's to log; Warm never panics.
	Warm(ctx context.Context, connectionID string) error
	// FetchFromCache pulls entities of the named model via the
	// provider's bulk-synced read path.
	FetchFromCache(ctx context.Context, connectionID, model string, query FetchQuery) ([]FetchedEntity, error)
	// TriggerAction performs a mutating remote operation.
	TriggerAction(ctx context.Context, connectionID, actionName string, payload map[string]any) (map[string]any, error)
	// TriggerSync kicks off a provider-side resync of a model.
	TriggerSync(ctx context.Context, connectionID, syncName string) error
}
