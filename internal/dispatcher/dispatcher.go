// Package dispatcher runs the full turn pipeline: assemble a prompt,
// generate a plan, validate it, execute it, and narrate the outcome.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stewardhq/steward/internal/assembler"
	"github.com/stewardhq/steward/internal/capability"
	stderrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/executor"
	"github.com/stewardhq/steward/internal/generator"
	"github.com/stewardhq/steward/internal/history"
	"github.com/stewardhq/steward/internal/logger"
	"github.com/stewardhq/steward/internal/narrator"
	"github.com/stewardhq/steward/internal/plan"
)

// Turn is the complete result of handling one utterance.
type Turn struct {
	Response string
	Plan     *plan.ActionPlan
	Summary  *executor.Summary
	Elapsed  time.Duration
}

// Dispatcher wires the pipeline stages together. Each stage degrades in
// a user-visible but non-fatal way, so Handle always returns a response.
type Dispatcher struct {
	assembler *assembler.Assembler
	generator *generator.Generator
	validator *capability.Validator
	executor  *executor.Executor
	narrator  *narrator.Narrator
	history   *history.Store
}

func New(
	asm *assembler.Assembler,
	gen *generator.Generator,
	val *capability.Validator,
	exec *executor.Executor,
	nar *narrator.Narrator,
	hist *history.Store,
) *Dispatcher {
	return &Dispatcher{
		assembler: asm,
		generator: gen,
		validator: val,
		executor:  exec,
		narrator:  nar,
		history:   hist,
	}
}

const fallbackResponse = "Sorry, I couldn't work out a safe way to do that. Could you rephrase?"

// Handle processes one utterance end to end and records the turn in
// conversation history.
func (d *Dispatcher) Handle(ctx context.Context, userID, utterance string) *Turn {
	started := time.Now()
	ctx = logger.WithTraceID(ctx, ulid.Make().String())
	ctx = logger.WithUserID(ctx, userID)

	turn := d.run(ctx, userID, utterance)
	turn.Elapsed = time.Since(started)

	if d.history != nil {
		intent := ""
		if turn.Plan != nil {
			intent = string(turn.Plan.Intent)
		}
		d.history.Append(userID, history.Turn{
			Utterance: utterance,
			Response:  turn.Response,
			Intent:    intent,
		})
	}

	slog.Info("Turn handled",
		"trace_id", logger.GetTraceID(ctx),
		"user", userID,
		"elapsed", turn.Elapsed,
	)
	return turn
}

func (d *Dispatcher) run(ctx context.Context, userID, utterance string) *Turn {
	prompt := d.assembler.Assemble(ctx, userID, utterance)

	p, err := d.generator.Generate(ctx, prompt)
	if err != nil {
		slog.Warn("Plan generation failed", "error", err)
		return &Turn{Response: fallbackResponse}
	}

	if result := d.validator.Validate(p); !result.Valid() {
		slog.Warn("Plan rejected by validator",
			"violations", len(result.Violations),
			"missing_tools", result.MissingTools,
		)
		return &Turn{Plan: p, Response: refusal(result)}
	}

	summary := d.executor.Execute(ctx, p, userID)

	response := d.narrator.Narrate(ctx, p, summary)
	if blocked := firstBlockedError(summary); blocked != nil && response == "" {
		response = blocked.Error()
	}

	return &Turn{Plan: p, Summary: summary, Response: response}
}

// refusal explains the first concrete violation in plain language.
func refusal(result capability.ValidationResult) string {
	first := result.Violations[0]
	if len(result.MissingTools) > 0 {
		return fmt.Sprintf("I can't do that: %s. I don't have access to: %v.", first, result.MissingTools)
	}
	return fmt.Sprintf("I can't do that as planned: %s.", first)
}

func firstBlockedError(summary *executor.Summary) error {
	for _, err := range summary.Errors {
		if errors.Is(err, stderrors.ErrConsentRequired) {
			return err
		}
	}
	return nil
}
