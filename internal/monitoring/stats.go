package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

type DashboardStats struct {
	DatabaseStatus   string         `json:"database_status"`
	ResponseTime     int64          `json:"response_time_ms"`
	PoolTotal        int32          `json:"pool_total_conns"`
	PoolIdle         int32          `json:"pool_idle_conns"`
	PoolAcquired     int32          `json:"pool_acquired_conns"`
	DBSize           string         `json:"db_size"`
	Uptime           string         `json:"uptime"`
	CPUPercent       float64        `json:"cpu_percent"`
	MemoryPercent    float64        `json:"memory_percent"`
	MemoryUsed       string         `json:"memory_used"`
	MemoryTotal      string         `json:"memory_total"`
	DiskPercent      float64        `json:"disk_percent"`
	DiskUsed         string         `json:"disk_used"`
	DiskTotal        string         `json:"disk_total"`
	StageFeedClients int            `json:"stage_feed_clients"`
	Records          map[string]int `json:"records"`
}

// trackedTables are counted for the dashboard
var trackedTables = []string{"whitelist", "batches", "cartons", "mappings", "lifecycles", "packlists"}

// StatsCollector gathers process, host and database numbers for operators.
type StatsCollector struct {
	db   *pgxpool.Pool
	feed *StageFeed
}

func NewStatsCollector(db *pgxpool.Pool, feed *StageFeed) *StatsCollector {
	return &StatsCollector{db: db, feed: feed}
}

func (s *StatsCollector) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.Collect(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (s *StatsCollector) Collect(ctx context.Context) DashboardStats {
	var stats DashboardStats
	s.collectDatabase(ctx, &stats)

	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsed = formatBytes(vm.Used)
		stats.MemoryTotal = formatBytes(vm.Total)
	}
	if du, err := disk.Usage("/"); err == nil {
		stats.DiskPercent = du.UsedPercent
		stats.DiskUsed = formatBytes(du.Used)
		stats.DiskTotal = formatBytes(du.Total)
	}
	if s.feed != nil {
		stats.StageFeedClients = s.feed.Clients()
	}
	return stats
}

func (s *StatsCollector) collectDatabase(ctx context.Context, stats *DashboardStats) {
	if s.db == nil {
		stats.DatabaseStatus = "unconfigured"
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := s.db.Ping(ctx)
	stats.ResponseTime = time.Since(start).Milliseconds()
	if err != nil {
		stats.DatabaseStatus = "unhealthy"
		return
	}
	stats.DatabaseStatus = "healthy"

	pool := s.db.Stat()
	stats.PoolTotal = pool.TotalConns()
	stats.PoolIdle = pool.IdleConns()
	stats.PoolAcquired = pool.AcquiredConns()

	var dbSizeBytes int64
	s.db.QueryRow(ctx, "SELECT pg_database_size(current_database())").Scan(&dbSizeBytes)
	stats.DBSize = formatBytes(uint64(dbSizeBytes))

	var uptimeSec int
	s.db.QueryRow(ctx, "SELECT EXTRACT(EPOCH FROM (NOW() - pg_postmaster_start_time()))::int").Scan(&uptimeSec)
	stats.Uptime = formatUptime(uptimeSec)

	stats.Records = make(map[string]int, len(trackedTables))
	for _, table := range trackedTables {
		var n int
		// Table names come from the fixed list above
		if err := s.db.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&n); err == nil {
			stats.Records[table] = n
		}
	}
}

func formatBytes(bytes uint64) string {
	gb := float64(bytes) / (1024 * 1024 * 1024)
	if gb < 1 {
		mb := float64(bytes) / (1024 * 1024)
		return fmt.Sprintf("%.1f MB", mb)
	}
	return fmt.Sprintf("%.1f GB", gb)
}

func formatUptime(seconds int) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
