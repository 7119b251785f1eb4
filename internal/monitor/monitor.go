// Package monitor samples process health on a cron schedule and emits
// resource events for relevance scoring.
package monitor

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"

	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/relevance"
)

// EmitFunc receives each sampled event.
type EmitFunc func(relevance.Event)

// Monitor runs a scheduled resource sampler.
type Monitor struct {
	schedule         string
	memoryBudgetMB   float64
	goroutineCeiling int
	emit             EmitFunc
	cron             *cron.Cron
	entry            cron.EntryID
}

func New(cfg config.MonitorConfig, emit EmitFunc) *Monitor {
	return &Monitor{
		schedule:         cfg.Schedule,
		memoryBudgetMB:   cfg.MemoryAlertMB,
		goroutineCeiling: cfg.GoroutineCeiling,
		emit:             emit,
		cron:             cron.New(),
	}
}

func (m *Monitor) Start() error {
	entry, err := m.cron.AddFunc(m.schedule, m.sample)
	if err != nil {
		return fmt.Errorf("invalid monitor schedule %q: %w", m.schedule, err)
	}
	m.entry = entry
	m.cron.Start()
	slog.Info("System monitor started", "schedule", m.schedule)
	return nil
}

// Stop halts scheduling and waits for a running sample to finish.
func (m *Monitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	slog.Info("System monitor stopped")
}

func (m *Monitor) sample() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	memoryMB := float64(stats.Alloc) / (1 << 20)
	goroutines := runtime.NumGoroutine()

	// Usage is reported against the configured budget so downstream
	// thresholds work in percentages.
	memoryPercent := 0.0
	if m.memoryBudgetMB > 0 {
		memoryPercent = memoryMB / m.memoryBudgetMB * 100
	}
	goroutinePercent := 0.0
	if m.goroutineCeiling > 0 {
		goroutinePercent = float64(goroutines) / float64(m.goroutineCeiling) * 100
	}

	slog.Debug("Resource sample",
		"memory_mb", memoryMB,
		"memory_percent", memoryPercent,
		"goroutines", goroutines,
	)

	if m.emit == nil {
		return
	}
	m.emit(relevance.Event{
		ID:     ulid.Make().String(),
		Source: "system",
		Type:   "resource_alert",
		Payload: map[string]any{
			"memory_mb":         memoryMB,
			"memory_percent":    memoryPercent,
			"goroutines":        goroutines,
			"goroutine_percent": goroutinePercent,
		},
		ObservedAt: time.Now(),
	})
}
