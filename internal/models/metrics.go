package models

import "time"

// SystemMetrics is a JSON-friendly snapshot of the Prometheus counters.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	Generations              map[string]uint64 `json:"generations"`
	AverageSolveDurationMs   float64           `json:"average_solve_duration_ms"`
	BacktracksTotal          uint64            `json:"backtracks_total"`
	JobsPending              int               `json:"jobs_pending"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
