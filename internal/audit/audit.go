package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/logger"
	"github.com/stewardhq/steward/internal/plan"
)

// ConsentMode records how a call cleared the permission gate.
type ConsentMode string

const (
	ConsentNotRequired ConsentMode = "not_required"
	ConsentGranted     ConsentMode = "granted"
	ConsentMissing     ConsentMode = "missing"
)

// Entry is one record per executed tool call.
type Entry struct {
	ID          string          `json:"id"`
	TraceID     string          `json:"trace_id,omitempty"`
	UserID      string          `json:"user_id"`
	ToolID      string          `json:"tool_id"`
	Action      string          `json:"action"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	RiskLevel   plan.RiskLevel  `json:"risk_level"`
	ConsentMode ConsentMode     `json:"consent_mode"`
	Outcome     string          `json:"outcome"`
	Error       string          `json:"error,omitempty"`
	Duration    time.Duration   `json:"duration"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Filter narrows Query results.
type Filter struct {
	ToolID    string
	UserID    string
	Outcome   string
	StartTime time.Time
	EndTime   time.Time
}

// Recorder appends entries to a JSONL file with pattern-based redaction.
type Recorder struct {
	mu             sync.RWMutex
	logPath        string
	enabled        bool
	redactPatterns []string
}

func NewRecorder(cfg config.AuditConfig) (*Recorder, error) {
	if !cfg.Enabled {
		return &Recorder{enabled: false}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	return &Recorder{
		logPath:        cfg.Path,
		enabled:        true,
		redactPatterns: cfg.RedactPatterns,
	}, nil
}

func (r *Recorder) Record(ctx context.Context, entry *Entry) error {
	if !r.enabled {
		return nil
	}
	if entry == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.TraceID == "" {
		entry.TraceID = logger.GetTraceID(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	redacted := r.redact(entry)
	line, err := json.Marshal(redacted)
	if err != nil {
		slog.Error("Failed to marshal audit entry", "error", err)
		return err
	}

	f, err := os.OpenFile(r.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("Failed to open audit log", "error", err)
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		slog.Error("Failed to write audit entry", "error", err)
		return err
	}

	slog.Debug("Audit entry recorded", "tool", entry.ToolID, "action", entry.Action, "outcome", entry.Outcome)
	return nil
}

func (r *Recorder) Query(ctx context.Context, filter *Filter) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.enabled {
		return nil, nil
	}

	file, err := os.Open(r.logPath)
	if os.IsNotExist(err) {
		return []*Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []*Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			slog.Warn("Failed to parse audit entry", "error", err)
			continue
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if filter == nil {
		return entries, nil
	}
	var filtered []*Entry
	for _, entry := range entries {
		if matches(entry, filter) {
			filtered = append(filtered, entry)
		}
	}
	return filtered, nil
}

func matches(entry *Entry, filter *Filter) bool {
	if filter.ToolID != "" && entry.ToolID != filter.ToolID {
		return false
	}
	if filter.UserID != "" && entry.UserID != filter.UserID {
		return false
	}
	if filter.Outcome != "" && entry.Outcome != filter.Outcome {
		return false
	}
	if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
		return false
	}
	return true
}

func (r *Recorder) redact(entry *Entry) *Entry {
	redacted := *entry
	for _, pattern := range r.redactPatterns {
		redacted.Parameters = redactRaw(redacted.Parameters, pattern)
	}
	return &redacted
}

func redactRaw(data json.RawMessage, pattern string) json.RawMessage {
	if len(data) == 0 || pattern == "" {
		return data
	}
	if re, err := regexp.Compile(pattern); err == nil {
		return json.RawMessage(re.ReplaceAllString(string(data), `"[REDACTED]"`))
	}
	return json.RawMessage(strings.ReplaceAll(string(data), pattern, "[REDACTED]"))
}
