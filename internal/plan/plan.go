package plan

import (
	"fmt"
	"time"
)

// Intent classifies what the user is asking for.
type Intent string

const (
	IntentQuestion     Intent = "question"
	IntentSystemAction Intent = "system_action"
	IntentEmail        Intent = "email"
	IntentCalendar     Intent = "calendar"
	IntentLearn        Intent = "learn"
	IntentControl      Intent = "control"
	IntentSearch       Intent = "search"
	IntentGeneral      Intent = "general"
	IntentMultiStep    Intent = "multi_step"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentQuestion, IntentSystemAction, IntentEmail, IntentCalendar,
		IntentLearn, IntentControl, IntentSearch, IntentGeneral, IntentMultiStep:
		return true
	}
	return false
}

// Conversational reports whether the intent may carry zero tool calls.
func (i Intent) Conversational() bool {
	switch i {
	case IntentQuestion, IntentGeneral, IntentSearch, IntentLearn:
		return true
	}
	return false
}

// RiskLevel classifies how dangerous a capability is.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskSafe, RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Gated reports whether the level always requires explicit consent.
func (r RiskLevel) Gated() bool {
	return r == RiskHigh || r == RiskCritical
}

// Status tracks a tool call through its lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusBlocked Status = "blocked"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusBlocked:
		return true
	}
	return false
}

// ToolCall is one action requested by the plan.
type ToolCall struct {
	ToolID               string         `json:"tool_id"`
	Capability           string         `json:"capability"`
	Parameters           map[string]any `json:"parameters"`
	Reasoning            string         `json:"reasoning,omitempty"`
	RiskLevel            RiskLevel      `json:"risk_level"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	Status               Status         `json:"status"`
	Result               any            `json:"result,omitempty"`
	Error                string         `json:"error,omitempty"`
	Elapsed              time.Duration  `json:"elapsed,omitempty"`
}

// Transition moves the call to a new status. Only pending→running and
// running→terminal are permitted; terminal states are frozen.
func (c *ToolCall) Transition(to Status) error {
	switch {
	case c.Status.Terminal():
		return fmt.Errorf("tool call %s.%s already %s", c.ToolID, c.Capability, c.Status)
	case c.Status == StatusPending && to == StatusRunning:
	case c.Status == StatusPending && to == StatusBlocked:
	case c.Status == StatusRunning && to.Terminal():
	default:
		return fmt.Errorf("illegal status transition %s -> %s", c.Status, to)
	}
	c.Status = to
	return nil
}

// ActionPlan is the structured per-turn decision extracted from the model.
type ActionPlan struct {
	Intent           Intent     `json:"intent"`
	Confidence       float64    `json:"confidence"`
	ToolCalls        []ToolCall `json:"tool_calls"`
	NarrationMessage string     `json:"narration_message"`
	Reasoning        string     `json:"reasoning,omitempty"`
	NeedsMoreInfo    bool       `json:"needs_more_info"`
	FollowupQuestion string     `json:"followup_question,omitempty"`
}

// Normalize applies the structural invariants: default status, forced
// confirmation for gated risk levels.
func (p *ActionPlan) Normalize() {
	for i := range p.ToolCalls {
		if p.ToolCalls[i].Status == "" {
			p.ToolCalls[i].Status = StatusPending
		}
		if p.ToolCalls[i].RiskLevel == "" {
			p.ToolCalls[i].RiskLevel = RiskSafe
		}
		if p.ToolCalls[i].RiskLevel.Gated() {
			p.ToolCalls[i].RequiresConfirmation = true
		}
		if p.ToolCalls[i].Parameters == nil {
			p.ToolCalls[i].Parameters = map[string]any{}
		}
	}
}

// Check verifies the plan satisfies its own invariants.
func (p *ActionPlan) Check() error {
	if !p.Intent.Valid() {
		return fmt.Errorf("unknown intent %q", p.Intent)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", p.Confidence)
	}
	if len(p.ToolCalls) == 0 && !p.Intent.Conversational() {
		return fmt.Errorf("intent %q requires at least one tool call", p.Intent)
	}
	for i, call := range p.ToolCalls {
		if call.ToolID == "" {
			return fmt.Errorf("tool call %d missing tool_id", i)
		}
		if call.Capability == "" {
			return fmt.Errorf("tool call %d missing capability", i)
		}
		if !call.RiskLevel.Valid() {
			return fmt.Errorf("tool call %d has unknown risk level %q", i, call.RiskLevel)
		}
		if call.RiskLevel.Gated() && !call.RequiresConfirmation {
			return fmt.Errorf("tool call %d is %s risk but not confirmation-gated", i, call.RiskLevel)
		}
	}
	return nil
}
