package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-lite/internal/logging"
	"media-lite/internal/metrics"
)

// MonitorConfig controls when a Monitor pauses and resumes.
type MonitorConfig struct {
	// Limit in bytes; 0 uses GOMEMLIMIT, and without either the monitor
	// never pauses.
	Limit int64
	// HighWaterMark is the usage ratio under which paused work resumes.
	HighWaterMark float64
	// CriticalWaterMark is the usage ratio at which work pauses.
	CriticalWaterMark float64
	CheckInterval     time.Duration
}

// DefaultMonitorConfig returns the settings used by the backfill tool.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     2 * time.Second,
	}
}

// Monitor tracks heap allocation and gates work while it is critical.
type Monitor struct {
	cfg   MonitorConfig
	limit int64
	alloc func() uint64

	mu     sync.Mutex
	usage  float64
	paused bool
	resume chan struct{}
}

// NewMonitor creates a Monitor. It does nothing until Run is called.
func NewMonitor(cfg MonitorConfig) *Monitor {
	limit := cfg.Limit
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			limit = l
		}
	}
	return &Monitor{
		cfg:    cfg,
		limit:  limit,
		alloc:  heapAlloc,
		resume: make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Enabled reports whether a limit is known.
func (m *Monitor) Enabled() bool {
	return m.limit > 0
}

// Run samples memory every CheckInterval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if !m.Enabled() {
		logging.Debug("Memory monitor disabled: no memory limit configured")
		return
	}
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		m.check()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) check() {
	if !m.Enabled() {
		return
	}
	usage := float64(m.alloc()) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = usage

	switch {
	case usage >= m.cfg.CriticalWaterMark && !m.paused:
		logging.Warn("Memory critical (%.1f%% of limit), pausing work", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPausesTotal.Inc()
		go runtime.GC()
	case usage < m.cfg.HighWaterMark && m.paused:
		logging.Info("Memory recovered (%.1f%% of limit), resuming work", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// Wait blocks while work is paused. It returns ctx.Err() if ctx ends first.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return ctx.Err()
	}
	resume := m.resume
	m.mu.Unlock()

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether work is currently paused.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Usage returns the last sampled usage ratio.
func (m *Monitor) Usage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}
