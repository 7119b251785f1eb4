package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/relevance"
)

func TestSampleEmitsResourceEvent(t *testing.T) {
	var got []relevance.Event
	m := New(config.MonitorConfig{
		Schedule:         "@every 1m",
		MemoryAlertMB:    1024,
		GoroutineCeiling: 5000,
	}, func(e relevance.Event) { got = append(got, e) })

	m.sample()

	require.Len(t, got, 1)
	event := got[0]
	assert.Equal(t, "system", event.Source)
	assert.Equal(t, "resource_alert", event.Type)
	assert.NotEmpty(t, event.ID)
	assert.Greater(t, event.Payload["memory_mb"].(float64), 0.0)
	assert.Greater(t, event.Payload["goroutines"].(int), 0)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	m := New(config.MonitorConfig{Schedule: "not a schedule"}, nil)
	assert.Error(t, m.Start())
}

func TestStartStop(t *testing.T) {
	m := New(config.MonitorConfig{Schedule: "@every 1h"}, func(relevance.Event) {})
	require.NoError(t, m.Start())
	m.Stop()
}
