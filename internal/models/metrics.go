package models

import "time"

// SystemMetrics is a JSON snapshot of process instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	BlobOperations           uint64    `json:"blob_operations"`
	AverageBlobDurationMs    float64   `json:"average_blob_duration_ms"`
	PersistenceFailures      uint64    `json:"persistence_failures"`
	AdvisorFailures          uint64    `json:"advisor_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
