package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/plan"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	rec, err := NewRecorder(config.AuditConfig{
		Enabled:        true,
		Path:           filepath.Join(t.TempDir(), "audit.jsonl"),
		RedactPatterns: []string{`"password"\s*:\s*"[^"]*"`},
	})
	require.NoError(t, err)
	return rec
}

func TestRecordAndQuery(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()

	err := rec.Record(ctx, &Entry{
		ID:          "01ABC",
		UserID:      "alice",
		ToolID:      "filesystem",
		Action:      "write_file",
		RiskLevel:   plan.RiskMedium,
		ConsentMode: ConsentGranted,
		Outcome:     "success",
		Duration:    42 * time.Millisecond,
	})
	require.NoError(t, err)

	err = rec.Record(ctx, &Entry{
		ID:          "01ABD",
		UserID:      "bob",
		ToolID:      "system",
		Action:      "run_command",
		RiskLevel:   plan.RiskHigh,
		ConsentMode: ConsentMissing,
		Outcome:     "blocked",
	})
	require.NoError(t, err)

	all, err := rec.Query(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	blocked, err := rec.Query(ctx, &Filter{Outcome: "blocked"})
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, "system", blocked[0].ToolID)
	assert.Equal(t, ConsentMissing, blocked[0].ConsentMode)

	alice, err := rec.Query(ctx, &Filter{UserID: "alice", ToolID: "filesystem"})
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Equal(t, "write_file", alice[0].Action)
	assert.Equal(t, 42*time.Millisecond, alice[0].Duration)
}

func TestRecordRedactsParameters(t *testing.T) {
	rec := newTestRecorder(t)

	params, _ := json.Marshal(map[string]any{"host": "imap.example.com", "password": "hunter2"})
	err := rec.Record(context.Background(), &Entry{
		ID:         "01ABE",
		UserID:     "alice",
		ToolID:     "imap_email",
		Action:     "connect",
		Parameters: params,
		Outcome:    "success",
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(rec.logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
	assert.Contains(t, string(raw), "[REDACTED]")
	assert.Contains(t, string(raw), "imap.example.com")
}

func TestQueryTimeRange(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, rec.Record(ctx, &Entry{ID: "a", ToolID: "t", Outcome: "success", Timestamp: old}))
	require.NoError(t, rec.Record(ctx, &Entry{ID: "b", ToolID: "t", Outcome: "success"}))

	recent, err := rec.Query(ctx, &Filter{StartTime: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "b", recent[0].ID)
}

func TestDisabledRecorderIsNoop(t *testing.T) {
	rec, err := NewRecorder(config.AuditConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, rec.Record(context.Background(), &Entry{ID: "x", ToolID: "t", Outcome: "success"}))
	entries, err := rec.Query(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSkipsMalformedLines(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()
	require.NoError(t, rec.Record(ctx, &Entry{ID: "a", ToolID: "t", Outcome: "success"}))

	f, err := os.OpenFile(rec.logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := rec.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].ID, "a"))
}
