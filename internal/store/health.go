package store

import (
	"context"
	"time"

	"github.com/dietplan/dietplan/internal/health"
)

// HealthCheck returns the health status of the database.
func (db *DB) HealthCheck() health.ComponentHealth {
	h := health.ComponentHealth{
		Name:   "database",
		Status: "ok",
	}
	if last := db.lastOK.Load(); last != 0 {
		h.LastOK = time.Unix(0, last)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		h.Status = "error"
		h.Message = err.Error()
		h.LastError = time.Now()
		return h
	}

	// Check we can query
	var count int
	if err := db.QueryRowxContext(ctx, "SELECT COUNT(*) FROM diet_profiles").Scan(&count); err != nil {
		h.Status = "degraded"
		h.Message = "cannot query profiles: " + err.Error()
		h.LastError = time.Now()
		return h
	}
	if v := db.SchemaVersion(ctx); v != SchemaVersion {
		h.Status = "degraded"
		h.Message = "unexpected schema version"
		h.LastError = time.Now()
		return h
	}

	now := time.Now()
	db.lastOK.Store(now.UnixNano())
	h.LastOK = now
	return h
}
