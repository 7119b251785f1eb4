// Package executor runs validated plans strictly in order, gating risky
// calls on stored consent and halting at the first failure.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stewardhq/steward/internal/audit"
	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/config"
	stderrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/plan"
)

// ConsentChecker answers whether a user holds an active grant.
type ConsentChecker interface {
	CheckConsent(toolID, capability, userID string) bool
}

// CredentialSource supplies stored credentials for tool connection.
type CredentialSource interface {
	GetCredentials(toolID, userID string) (map[string]string, bool)
}

// AuditSink records one entry per executed call.
type AuditSink interface {
	Record(ctx context.Context, entry *audit.Entry) error
}

// Summary reports what happened to a plan's calls. Executed counts calls
// that were dispatched; calls after a failure stay pending and are not
// counted.
type Summary struct {
	ExecutionID string
	Executed    int
	Succeeded   int
	Failed      int
	Blocked     int
	Results     []*plan.ToolCall
	Errors      []error
}

// Success reports whether every dispatched call succeeded and none were
// left pending.
func (s *Summary) Success() bool {
	return s.Failed == 0 && s.Blocked == 0 && len(s.Errors) == 0
}

func (s *Summary) FirstError() error {
	if len(s.Errors) == 0 {
		return nil
	}
	return s.Errors[0]
}

// Executor dispatches plan calls against registered tools.
type Executor struct {
	registry    *capability.Registry
	consents    ConsentChecker
	credentials CredentialSource
	auditor     AuditSink
	callTimeout time.Duration
	planTimeout time.Duration
	defaultUser string
}

func New(cfg config.ExecutorConfig, registry *capability.Registry, consents ConsentChecker, credentials CredentialSource, auditor AuditSink) (*Executor, error) {
	callTimeout, err := config.DurationOrDefault(cfg.CallTimeout, config.DefaultExecutorCallTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse executor call timeout: %w", err)
	}
	planTimeout, err := config.DurationOrDefault(cfg.PlanTimeout, config.DefaultExecutorPlanTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse executor plan timeout: %w", err)
	}
	return &Executor{
		registry:    registry,
		consents:    consents,
		credentials: credentials,
		auditor:     auditor,
		callTimeout: callTimeout,
		planTimeout: planTimeout,
		defaultUser: cfg.DefaultUser,
	}, nil
}

// Execute runs the plan's calls one at a time in plan order. The first
// call that does not succeed halts the remainder; later calls keep their
// pending status. Context cancellation stops before the next dispatch —
// already-dispatched calls are not rolled back.
func (e *Executor) Execute(ctx context.Context, p *plan.ActionPlan, userID string) *Summary {
	if userID == "" {
		userID = e.defaultUser
	}

	// The whole plan runs under a cumulative deadline on top of the
	// per-call timeout, so a chain of slow calls cannot stall a turn.
	ctx, cancel := context.WithTimeout(ctx, e.planTimeout)
	defer cancel()

	summary := &Summary{ExecutionID: ulid.Make().String()}

	for i := range p.ToolCalls {
		if err := ctx.Err(); err != nil {
			summary.Errors = append(summary.Errors, fmt.Errorf("execution cancelled before call %d: %w", i, err))
			break
		}

		call := &p.ToolCalls[i]
		summary.Executed++
		summary.Results = append(summary.Results, call)

		err := e.runCall(ctx, call, userID, summary.ExecutionID)
		switch {
		case err == nil:
			summary.Succeeded++
		case call.Status == plan.StatusBlocked:
			summary.Blocked++
			summary.Errors = append(summary.Errors, err)
		default:
			summary.Failed++
			summary.Errors = append(summary.Errors, err)
		}

		if err != nil {
			slog.Warn("Plan execution halted",
				"call", i,
				"tool", call.ToolID,
				"capability", call.Capability,
				"error", err,
			)
			break
		}
	}

	slog.Info("Plan executed",
		"execution_id", summary.ExecutionID,
		"executed", summary.Executed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"blocked", summary.Blocked,
	)
	return summary
}

func (e *Executor) runCall(ctx context.Context, call *plan.ToolCall, userID, executionID string) error {
	started := time.Now()
	consentMode := audit.ConsentNotRequired

	fail := func(status plan.Status, err error) error {
		call.Error = err.Error()
		if terr := call.Transition(status); terr != nil {
			slog.Error("Invalid status transition during failure handling", "error", terr)
		}
		call.Elapsed = time.Since(started)
		e.recordAudit(ctx, call, userID, consentMode, started)
		return err
	}

	tool, ok := e.registry.Get(call.ToolID)
	if !ok {
		return fail(plan.StatusBlocked, stderrors.NotFound(fmt.Sprintf("tool %q is not registered", call.ToolID)))
	}

	spec, ok := tool.Manifest().Capability(call.Capability)
	if !ok {
		return fail(plan.StatusBlocked, stderrors.NotFound(fmt.Sprintf("tool %q has no capability %q", call.ToolID, call.Capability)))
	}

	if call.RiskLevel.Gated() || spec.RequiresConfirmation || call.RequiresConfirmation {
		if e.consents == nil || !e.consents.CheckConsent(call.ToolID, call.Capability, userID) {
			consentMode = audit.ConsentMissing
			return fail(plan.StatusBlocked, stderrors.ConsentRequired(
				fmt.Sprintf("%s.%s requires consent from %s", call.ToolID, call.Capability, userID)))
		}
		consentMode = audit.ConsentGranted
	}

	if !tool.Connected() {
		creds := map[string]string{}
		if e.credentials != nil {
			if stored, ok := e.credentials.GetCredentials(call.ToolID, userID); ok {
				creds = stored
			}
		}
		if err := tool.Connect(ctx, creds); err != nil {
			return fail(plan.StatusBlocked, fmt.Errorf("%w: connect %s: %v", stderrors.ErrToolExecution, call.ToolID, err))
		}
	}

	if err := tool.ValidateParameters(call.Capability, call.Parameters); err != nil {
		return fail(plan.StatusBlocked, stderrors.InvalidInput(err.Error()))
	}

	if err := call.Transition(plan.StatusRunning); err != nil {
		return fail(plan.StatusFailed, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	result, err := tool.Invoke(callCtx, call.Capability, call.Parameters, capability.InvocationContext{
		UserID:      userID,
		ExecutionID: executionID,
		Source:      "plan",
	})
	cancel()

	call.Elapsed = time.Since(started)

	if err != nil {
		call.Error = err.Error()
		_ = call.Transition(plan.StatusFailed)
		e.recordAudit(ctx, call, userID, consentMode, started)
		return fmt.Errorf("%w: %s.%s: %v", stderrors.ErrToolExecution, call.ToolID, call.Capability, err)
	}
	if !result.Success {
		call.Error = result.Error
		call.Result = result.Data
		_ = call.Transition(plan.StatusFailed)
		e.recordAudit(ctx, call, userID, consentMode, started)
		return fmt.Errorf("%w: %s.%s: %s", stderrors.ErrToolExecution, call.ToolID, call.Capability, result.Error)
	}

	call.Result = result.Data
	_ = call.Transition(plan.StatusSuccess)
	e.recordAudit(ctx, call, userID, consentMode, started)
	return nil
}

func (e *Executor) recordAudit(ctx context.Context, call *plan.ToolCall, userID string, consentMode audit.ConsentMode, started time.Time) {
	if e.auditor == nil {
		return
	}

	params, err := json.Marshal(call.Parameters)
	if err != nil {
		params = nil
	}
	entry := &audit.Entry{
		ID:          ulid.Make().String(),
		UserID:      userID,
		ToolID:      call.ToolID,
		Action:      call.Capability,
		Parameters:  params,
		RiskLevel:   call.RiskLevel,
		ConsentMode: consentMode,
		Outcome:     string(call.Status),
		Error:       call.Error,
		Duration:    time.Since(started),
	}
	if err := e.auditor.Record(ctx, entry); err != nil {
		slog.Error("Failed to record audit entry", "error", err)
	}
}
