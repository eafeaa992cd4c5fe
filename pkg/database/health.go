package database

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus is the database block of the /health response: liveness
// plus the pool counters that matter when webhook traffic stalls.
type HealthStatus struct {
	Status          string `json:"status"`
	ResponseTime    int64  `json:"response_time_ms"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	WaitDuration    int64  `json:"wait_duration_ms"`
	MaxOpenConns    int    `json:"max_open_conns"`
}

// Health pings the database and snapshots the pool. On ping failure the
// returned status still carries the measured response time so the probe
// output shows how long the attempt took.
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()
	err := db.PingContext(ctx)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return &HealthStatus{Status: "unhealthy", ResponseTime: elapsed}, err
	}

	hs := &HealthStatus{Status: "healthy", ResponseTime: elapsed}
	hs.fillPoolStats(db.Stats())
	return hs, nil
}

func (hs *HealthStatus) fillPoolStats(stats sql.DBStats) {
	hs.OpenConnections = stats.OpenConnections
	hs.InUse = stats.InUse
	hs.Idle = stats.Idle
	hs.WaitCount = stats.WaitCount
	hs.WaitDuration = stats.WaitDuration.Milliseconds()
	hs.MaxOpenConns = stats.MaxOpenConnections
}
