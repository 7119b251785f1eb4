// Package narrator turns execution outcomes into user-facing text. It
// prefers model phrasing and always has a deterministic template to fall
// back on, so narration itself never fails.
package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stewardhq/steward/internal/executor"
	"github.com/stewardhq/steward/internal/gateway"
	"github.com/stewardhq/steward/internal/plan"
)

// Narrator phrases results for the user.
type Narrator struct {
	gateway gateway.Gateway
}

func New(gw gateway.Gateway) *Narrator {
	return &Narrator{gateway: gw}
}

// Narrate produces the user-facing response for a completed turn.
func (n *Narrator) Narrate(ctx context.Context, p *plan.ActionPlan, summary *executor.Summary) string {
	// Conversational turns carry their own message; no model call needed.
	if len(p.ToolCalls) == 0 {
		if p.NeedsMoreInfo && p.FollowupQuestion != "" {
			return p.FollowupQuestion
		}
		return p.NarrationMessage
	}

	if summary.Success() {
		return n.phraseSuccess(ctx, p, summary)
	}
	return n.phraseFailure(ctx, p, summary)
}

func (n *Narrator) phraseSuccess(ctx context.Context, p *plan.ActionPlan, summary *executor.Summary) string {
	prompt := successPrompt(p, summary)
	if text := n.phrase(ctx, prompt); text != "" {
		return text
	}
	return successTemplate(summary)
}

func (n *Narrator) phraseFailure(ctx context.Context, p *plan.ActionPlan, summary *executor.Summary) string {
	prompt := failurePrompt(p, summary)
	if text := n.phrase(ctx, prompt); text != "" {
		return text
	}
	return failureTemplate(summary)
}

func (n *Narrator) phrase(ctx context.Context, prompt string) string {
	if n.gateway == nil {
		return ""
	}
	text, err := n.gateway.Generate(ctx, gateway.GenerationRequest{
		Prompt:    prompt,
		MaxTokens: 300,
	})
	if err != nil {
		slog.Debug("Narration phrasing failed, using template", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func successPrompt(p *plan.ActionPlan, summary *executor.Summary) string {
	var b strings.Builder
	b.WriteString("Summarize the following completed actions for the user in one or two friendly sentences. Do not invent results.\n\n")
	for _, call := range summary.Results {
		fmt.Fprintf(&b, "- %s.%s succeeded", call.ToolID, call.Capability)
		if call.Result != nil {
			fmt.Fprintf(&b, " with result: %v", call.Result)
		}
		b.WriteString("\n")
	}
	if p.NarrationMessage != "" {
		fmt.Fprintf(&b, "\nPlanned message: %s\n", p.NarrationMessage)
	}
	return b.String()
}

func failurePrompt(p *plan.ActionPlan, summary *executor.Summary) string {
	var b strings.Builder
	b.WriteString("Apologize briefly to the user and explain what went wrong, in plain language.\n\n")
	fmt.Fprintf(&b, "Request intent: %s\n", p.Intent)
	for _, call := range summary.Results {
		fmt.Fprintf(&b, "- %s.%s: %s", call.ToolID, call.Capability, call.Status)
		if call.Error != "" {
			fmt.Fprintf(&b, " (%s)", call.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func successTemplate(summary *executor.Summary) string {
	if summary.Succeeded == 1 {
		call := summary.Results[0]
		return fmt.Sprintf("Done. %s.%s completed successfully.", call.ToolID, call.Capability)
	}
	return fmt.Sprintf("Done. %d actions completed successfully.", summary.Succeeded)
}

func failureTemplate(summary *executor.Summary) string {
	var failed *plan.ToolCall
	for _, call := range summary.Results {
		if call.Status == plan.StatusFailed || call.Status == plan.StatusBlocked {
			failed = call
			break
		}
	}

	if failed != nil && failed.Status == plan.StatusBlocked {
		return fmt.Sprintf("I stopped before running %s.%s because it needs your confirmation first. %d of %d actions completed.",
			failed.ToolID, failed.Capability, summary.Succeeded, len(summary.Results))
	}
	if failed != nil {
		return fmt.Sprintf("Sorry, %s.%s failed: %s. %d of %d actions completed before I stopped.",
			failed.ToolID, failed.Capability, failed.Error, summary.Succeeded, len(summary.Results))
	}
	return fmt.Sprintf("Sorry, I could not complete that. %d actions finished before the problem.", summary.Succeeded)
}
