package models

import "time"

// CacheStats summarises snapshot cache activity since process start.
type CacheStats struct {
	Hits          uint64    `json:"hits"`
	Misses        uint64    `json:"misses"`
	HitRatio      float64   `json:"hit_ratio"`
	Invalidations uint64    `json:"invalidations"`
	LoadErrors    uint64    `json:"load_errors"`
	GeneratedAt   time.Time `json:"generated_at"`
}
