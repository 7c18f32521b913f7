package monitor

import (
	"runtime"
	"sync"
	"time"
)

const (
	fallbackFileLimit    = 10000
	maxReportedFileLimit = 100000
)

type SystemSnapshot struct {
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	SysMB         float64 `json:"sys_mb"`
	NumGC         uint32  `json:"num_gc"`
	NumCPU        int     `json:"num_cpu"`
	OpenFileLimit int     `json:"open_file_limit"`
	GoVersion     string  `json:"go_version"`
	Platform      string  `json:"platform"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type DiskUsage struct {
	Path         string  `json:"path"`
	TotalGB      float64 `json:"total_gb"`
	FreeGB       float64 `json:"free_gb"`
	UsedPercent  float64 `json:"used_percent"`
	LowDiskSpace bool    `json:"low_disk_space"`
}

func newDiskUsage(path string, total, free uint64) DiskUsage {
	const gb = 1 << 30
	d := DiskUsage{Path: path, TotalGB: float64(total) / gb, FreeGB: float64(free) / gb}
	if total > 0 {
		d.UsedPercent = float64(total-free) / float64(total) * 100
	}
	d.LowDiskSpace = d.UsedPercent > 90
	return d
}

// Monitor reports process health and request statistics.
type Monitor struct {
	started  time.Time
	Requests *RequestStats
}

func New() *Monitor {
	return &Monitor{started: time.Now(), Requests: &RequestStats{}}
}

func (m *Monitor) Uptime() time.Duration {
	return time.Since(m.started)
}

func (m *Monitor) System() SystemSnapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return SystemSnapshot{
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(ms.HeapAlloc) / (1 << 20),
		SysMB:         float64(ms.Sys) / (1 << 20),
		NumGC:         ms.NumGC,
		NumCPU:        runtime.NumCPU(),
		OpenFileLimit: openFileLimit(),
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
		UptimeSeconds: m.Uptime().Seconds(),
	}
}

func (m *Monitor) Disk(path string) (DiskUsage, error) {
	return diskUsage(path)
}

type RequestSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	ErrorCount        int64   `json:"error_count"`
	ErrorRate         float64 `json:"error_rate"`
	AverageResponseMs float64 `json:"average_response_ms"`
}

// RequestStats counts requests; responses with status >= 500 are errors.
type RequestStats struct {
	mu      sync.Mutex
	total   int64
	errors  int64
	totalMs float64
}

func (s *RequestStats) Record(status int, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if status >= 500 {
		s.errors++
	}
	s.totalMs += float64(d) / float64(time.Millisecond)
}

func (s *RequestStats) Snapshot() RequestSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := RequestSnapshot{TotalRequests: s.total, ErrorCount: s.errors}
	if s.total > 0 {
		snap.ErrorRate = float64(s.errors) / float64(s.total) * 100
		snap.AverageResponseMs = s.totalMs / float64(s.total)
	}
	return snap
}
