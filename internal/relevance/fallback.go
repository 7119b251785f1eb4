package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stewardhq/steward/internal/gateway"
	"github.com/stewardhq/steward/internal/generator"
)

const fallbackPromptTemplate = `Judge whether this background event deserves interrupting the user right now.
Respond with a single JSON object:
{"tier": "critical|high|medium|low|noise", "value": 0.0-1.0, "reasoning": "<one sentence>", "announce": true|false, "priority": 1-10}

Event source: %s
Event type: %s
Payload: %s`

type fallbackVerdict struct {
	Tier      string  `json:"tier"`
	Value     float64 `json:"value"`
	Reasoning string  `json:"reasoning"`
	Announce  bool    `json:"announce"`
	Priority  int     `json:"priority"`
}

func (e *Engine) modelFallback(ctx context.Context, event Event) ScoredEvent {
	if e.gateway == nil {
		return conservativeDefault(event, "no rule matched and no model available")
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		payload = []byte("{}")
	}

	raw, err := e.gateway.Generate(ctx, gateway.GenerationRequest{
		Prompt:    fmt.Sprintf(fallbackPromptTemplate, event.Source, event.Type, payload),
		MaxTokens: 200,
	})
	if err != nil {
		slog.Debug("Relevance model call failed, using conservative default", "error", err)
		return conservativeDefault(event, "model fallback unavailable")
	}

	var v fallbackVerdict
	if err := generator.ExtractObject(raw, &v); err != nil {
		slog.Debug("Relevance model returned unusable output", "error", err)
		return conservativeDefault(event, "model fallback output unusable")
	}

	tier := Tier(v.Tier)
	if !tier.Valid() || v.Value < 0 || v.Value > 1 || v.Priority < 1 || v.Priority > 10 {
		return conservativeDefault(event, "model fallback verdict out of range")
	}

	return ScoredEvent{
		Event:          event,
		Tier:           tier,
		Score:          v.Value,
		ShouldAnnounce: v.Announce,
		Reasoning:      v.Reasoning,
		Priority:       v.Priority,
	}
}
