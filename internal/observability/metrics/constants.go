// Package metrics provides the Prometheus collectors for MenuLens.
package metrics

// Status label values
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusDegraded = "degraded"
	StatusSkipped  = "skipped"
)

// Generation outcome label values
const (
	OutcomeGenerated = "generated"
	OutcomeCacheHit  = "cache_hit"
	OutcomeJoined    = "joined"
	OutcomeFailed    = "failed"
	OutcomeLimited   = "rate_limited"
	OutcomeTimeout   = "timeout"
)

// Histogram bucket layouts
const (
	BucketStart1ms   = 0.001
	BucketStart10ms  = 0.01
	BucketStart100ms = 0.1
	BucketFactor2    = 2
	BucketCount12    = 12
	BucketCount14    = 14
)
