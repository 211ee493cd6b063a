// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Book metrics
	IncBookCreated()
	IncBookUpdated()
	IncBookDeleted()
	IncISBNConflict()

	// Identity metrics
	IncUserCreated()
	IncIdentityCacheHit()
	IncIdentityCacheMiss()

	// GraphQL transport metrics
	ObserveGraphQLRequest(duration time.Duration)
	IncGraphQLError(code string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
