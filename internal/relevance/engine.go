package relevance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/gateway"
)

// Engine scores events in two stages: a deterministic rule cascade, then
// a model fallback for events no rule is confident about. Announcements
// pass through a sliding-window rate limiter.
type Engine struct {
	rules   []rule
	prefs   *Preferences
	gateway gateway.Gateway
	limiter *limiter
}

func NewEngine(cfg config.RelevanceConfig, gw gateway.Gateway) (*Engine, error) {
	window, err := config.DurationOrDefault(cfg.Window, config.DefaultRelevanceWindow)
	if err != nil {
		return nil, fmt.Errorf("parse relevance window: %w", err)
	}
	dedupWindow, err := config.DurationOrDefault(cfg.DedupWindow, config.DefaultRelevanceDedupWindow)
	if err != nil {
		return nil, fmt.Errorf("parse relevance dedup window: %w", err)
	}
	return &Engine{
		rules: defaultRules(),
		prefs: &Preferences{
			VIPSenders: cfg.VIPSenders,
			VIPDomains: cfg.VIPDomains,
		},
		gateway: gw,
		limiter: newLimiter(window, dedupWindow, cfg.AnnouncementCeiling),
	}, nil
}

// SetClock replaces the limiter's clock. Tests only.
func (e *Engine) SetClock(now func() time.Time) {
	e.limiter.now = now
}

// Score produces a verdict for one event. A confident rule verdict is
// final; otherwise the model decides, with a conservative default when
// it fails. The announce decision is then subject to rate limiting.
func (e *Engine) Score(ctx context.Context, event Event) ScoredEvent {
	scored := e.classify(ctx, event)

	if scored.ShouldAnnounce {
		if allowed, reason := e.limiter.allow(event.Source, event.Type); !allowed {
			scored.ShouldAnnounce = false
			scored.Reasoning += "; suppressed: " + reason
			slog.Debug("Announcement suppressed",
				"source", event.Source,
				"type", event.Type,
				"reason", reason,
			)
		}
	}

	scored.ScoredAt = e.limiter.now()
	return scored
}

func (e *Engine) classify(ctx context.Context, event Event) ScoredEvent {
	for _, r := range e.rules {
		if !r.Match(event) {
			continue
		}
		if v := r.Judge(event, e.prefs); v != nil {
			slog.Debug("Event scored by rule",
				"rule", r.Name,
				"source", event.Source,
				"type", event.Type,
				"tier", v.Tier,
			)
			return ScoredEvent{
				Event:          event,
				Tier:           v.Tier,
				Score:          v.Score,
				ShouldAnnounce: v.Announce,
				Reasoning:      v.Reasoning,
				Priority:       v.Priority,
			}
		}
	}
	return e.modelFallback(ctx, event)
}

// conservativeDefault is the verdict when neither rules nor the model
// can decide: do not interrupt the user.
func conservativeDefault(event Event, reason string) ScoredEvent {
	return ScoredEvent{
		Event:          event,
		Tier:           TierLow,
		Score:          0.3,
		ShouldAnnounce: false,
		Reasoning:      reason,
		Priority:       3,
	}
}
