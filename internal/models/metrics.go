package models

import "time"

// SystemMetrics summarises instrumentation counters for the admin dashboard.
type SystemMetrics struct {
	CacheHitRatio            float64 `json:"cache_hit_ratio"`
	CacheHits                uint64  `json:"cache_hits"`
	CacheMisses              uint64  `json:"cache_misses"`
	RequestsTotal            uint64  `json:"requests_total"`
	AverageRequestDurationMs float64 `json:"average_request_duration_ms"`
	CatalogQueries           uint64  `json:"catalog_queries"`
	AverageCatalogQueryMs    float64 `json:"average_catalog_query_ms"`
	// AuthEvents is keyed "event:outcome", e.g. "login:rejected".
	AuthEvents  map[string]uint64 `json:"auth_events,omitempty"`
	Goroutines  int               `json:"goroutines"`
	GeneratedAt time.Time         `json:"generated_at"`
}
