// Package generator turns an assembled prompt into a validated ActionPlan
// by calling the model gateway and extracting JSON from its response.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stewardhq/steward/internal/config"
	stderrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/gateway"
	"github.com/stewardhq/steward/internal/plan"
)

// GenerationError carries the raw model text alongside the reason the
// plan could not be built from it.
type GenerationError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plan generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("plan generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() []error {
	if e.Err != nil {
		return []error{stderrors.ErrGeneration, e.Err}
	}
	return []error{stderrors.ErrGeneration}
}

// Generator produces plans from prompts. One gateway call per turn, no
// retries; the caller handles fallback behavior.
type Generator struct {
	gateway     gateway.Gateway
	timeout     time.Duration
	maxTokens   int
	temperature float32
}

func New(cfg config.ModelsConfig, gw gateway.Gateway) (*Generator, error) {
	timeout, err := config.DurationOrDefault(cfg.GenerationTimeout, config.DefaultModelGenerationTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse generation timeout: %w", err)
	}
	return &Generator{
		gateway:     gw,
		timeout:     timeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate calls the model and parses a plan out of whatever text comes
// back. The plan is normalized and checked before being returned.
func (g *Generator) Generate(ctx context.Context, prompt string) (*plan.ActionPlan, error) {
	genCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.gateway.Generate(genCtx, gateway.GenerationRequest{
		Prompt:      prompt,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, &GenerationError{Reason: "model call failed", Err: err}
	}

	p, err := ExtractPlan(raw)
	if err != nil {
		slog.Warn("Failed to extract plan from model output", "error", err)
		return nil, err
	}

	p.Normalize()
	if err := p.Check(); err != nil {
		return nil, &GenerationError{Reason: "plan failed schema checks", Raw: raw, Err: err}
	}

	slog.Debug("Plan generated",
		"intent", p.Intent,
		"confidence", p.Confidence,
		"tool_calls", len(p.ToolCalls),
	)
	return p, nil
}
