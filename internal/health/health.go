package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db    Pinger
	cache func() bool
}

type HealthStatus struct {
	Status   string          `json:"status"`
	Database ComponentHealth `json:"database"`
	Cache    ComponentHealth `json:"cache"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

// NewHealthChecker builds a checker. cache may be nil when Redis is not used.
func NewHealthChecker(db Pinger, cache func() bool) *HealthChecker {
	return &HealthChecker{db: db, cache: cache}
}

// CheckBasic reports unhealthy only when the database is down. A missing
// cache slows reads but does not stop the service.
func (h *HealthChecker) CheckBasic() HealthStatus {
	status := HealthStatus{
		Status:   "healthy",
		Database: h.checkDatabase(),
		Cache:    h.checkCache(),
	}
	if status.Database.Status != "healthy" {
		status.Status = "unhealthy"
	} else if status.Cache.Status == "unhealthy" {
		status.Status = "degraded"
	}
	return status
}

func (h *HealthChecker) checkDatabase() ComponentHealth {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{Status: "unhealthy", ResponseTime: responseTime}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: responseTime}
}

func (h *HealthChecker) checkCache() ComponentHealth {
	if h.cache == nil {
		return ComponentHealth{Status: "disabled"}
	}
	start := time.Now()
	ok := h.cache()
	responseTime := time.Since(start).Milliseconds()
	if !ok {
		return ComponentHealth{Status: "unhealthy", ResponseTime: responseTime}
	}
	return ComponentHealth{Status: "healthy", ResponseTime: responseTime}
}
