package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_ForcesConfirmationForGatedRisk(t *testing.T) {
	p := &ActionPlan{
		Intent:     IntentSystemAction,
		Confidence: 0.9,
		ToolCalls: []ToolCall{
			{ToolID: "filesystem", Capability: "delete_file", RiskLevel: RiskHigh},
			{ToolID: "system", Capability: "run_command", RiskLevel: RiskCritical},
			{ToolID: "filesystem", Capability: "read_file", RiskLevel: RiskSafe},
		},
	}
	p.Normalize()

	assert.True(t, p.ToolCalls[0].RequiresConfirmation)
	assert.True(t, p.ToolCalls[1].RequiresConfirmation)
	assert.False(t, p.ToolCalls[2].RequiresConfirmation)
	for _, call := range p.ToolCalls {
		assert.Equal(t, StatusPending, call.Status)
	}
}

func TestCheck_ConfidenceRange(t *testing.T) {
	p := &ActionPlan{Intent: IntentGeneral, Confidence: 1.2}
	assert.Error(t, p.Check())

	p.Confidence = -0.1
	assert.Error(t, p.Check())

	p.Confidence = 0.5
	assert.NoError(t, p.Check())
}

func TestCheck_EmptyToolCallsOnlyForConversationalIntents(t *testing.T) {
	p := &ActionPlan{Intent: IntentGeneral, Confidence: 0.8}
	assert.NoError(t, p.Check())

	p.Intent = IntentSystemAction
	assert.Error(t, p.Check())

	p.ToolCalls = []ToolCall{{ToolID: "filesystem", Capability: "write_file", RiskLevel: RiskMedium, Status: StatusPending}}
	assert.NoError(t, p.Check())
}

func TestCheck_RejectsUnknownEnums(t *testing.T) {
	p := &ActionPlan{Intent: Intent("banter"), Confidence: 0.5}
	assert.Error(t, p.Check())

	p = &ActionPlan{
		Intent:     IntentSystemAction,
		Confidence: 0.5,
		ToolCalls:  []ToolCall{{ToolID: "t", Capability: "c", RiskLevel: RiskLevel("none")}},
	}
	assert.Error(t, p.Check())
}

func TestTransition_LegalPath(t *testing.T) {
	call := &ToolCall{ToolID: "t", Capability: "c", Status: StatusPending}

	assert.NoError(t, call.Transition(StatusRunning))
	assert.NoError(t, call.Transition(StatusSuccess))
	assert.Error(t, call.Transition(StatusFailed), "terminal state must be frozen")
	assert.Equal(t, StatusSuccess, call.Status)
}

func TestTransition_PendingCanBlock(t *testing.T) {
	call := &ToolCall{Status: StatusPending}
	assert.NoError(t, call.Transition(StatusBlocked))
	assert.Error(t, call.Transition(StatusRunning))
}

func TestTransition_NoSkippingRunning(t *testing.T) {
	call := &ToolCall{Status: StatusPending}
	assert.Error(t, call.Transition(StatusSuccess))
	assert.Equal(t, StatusPending, call.Status)
}
