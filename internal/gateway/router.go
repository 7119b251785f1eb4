package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stewardhq/steward/internal/config"
	stewardErrors "github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/gateway/providers/anthropic"
	"github.com/stewardhq/steward/internal/gateway/providers/gemini"
	"github.com/stewardhq/steward/internal/gateway/providers/openai"
	"github.com/stewardhq/steward/internal/logger"

	"golang.org/x/time/rate"
)

// Router resolves a configured default provider and falls back to the
// configured fallback on transport errors. All calls share one request
// throttle and run under the configured generation timeout.
type Router struct {
	cfg       config.ModelsConfig
	providers map[string]Provider
	limiter   *rate.Limiter
	timeout   time.Duration
	mu        sync.RWMutex
}

func NewRouter(cfg config.ModelsConfig) (*Router, error) {
	timeout, err := config.DurationOrDefault(cfg.GenerationTimeout, config.DefaultModelGenerationTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse generation timeout: %w", err)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = config.DefaultModelRequestsPerMinute
	}

	r := &Router{
		cfg:       cfg,
		providers: make(map[string]Provider),
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		timeout:   timeout,
	}
	if err := r.initProviders(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) initProviders() error {
	for _, entry := range r.cfg.Registry {
		switch entry.Provider {
		case "openai":
			r.providers[entry.Name] = openai.New(entry.APIKey, entry.BaseURL, entry.Name)
		case "anthropic":
			r.providers[entry.Name] = anthropic.New(entry.APIKey, entry.Name)
		case "gemini":
			p, err := gemini.New(entry.APIKey, entry.Name)
			if err != nil {
				slog.Warn("Skipping gemini provider", "model", entry.Name, "error", err)
				continue
			}
			r.providers[entry.Name] = p
		default:
			slog.Warn("Unknown provider type, skipping", "provider", entry.Provider, "model", entry.Name)
		}
	}
	if len(r.providers) == 0 {
		return fmt.Errorf("no usable model providers configured")
	}
	return nil
}

// Generate routes the request to the default model, retrying on the fallback
// model when the default fails with a transport error.
func (r *Router) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	traceID := logger.GetTraceID(ctx)

	attempts := r.cfg.MaxFallbackAttempts
	if attempts <= 0 {
		attempts = config.DefaultModelMaxFallbackAttempts
	}

	var lastErr error
	for i, model := range r.tryOrder() {
		if i >= attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		provider, ok := r.provider(model)
		if !ok {
			continue
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return "", stewardErrors.Wrap(err, "gateway throttle")
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		text, err := provider.Generate(callCtx, req)
		cancel()
		if err == nil {
			slog.Debug("Generation completed", "model", model, "trace_id", traceID)
			return text, nil
		}

		lastErr = err
		slog.Warn("Generation failed, trying fallback", "model", model, "error", err, "trace_id", traceID)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no provider available")
	}
	return "", stewardErrors.Wrap(stewardErrors.MapError(lastErr), "gateway generation")
}

// Embed routes embedding requests to the first provider that supports them.
func (r *Router) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for _, model := range r.tryOrder() {
		provider, ok := r.provider(model)
		if !ok {
			continue
		}
		vec, err := provider.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, stewardErrors.Wrap(lastErr, "embedding")
	}
	return nil, stewardErrors.NotFound("no embedding-capable model configured")
}

func (r *Router) tryOrder() []string {
	order := make([]string, 0, 2)
	if r.cfg.Default != "" {
		order = append(order, r.cfg.Default)
	}
	if r.cfg.Fallback != "" && r.cfg.Fallback != r.cfg.Default {
		order = append(order, r.cfg.Fallback)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name := range r.providers {
		if name != r.cfg.Default && name != r.cfg.Fallback {
			order = append(order, name)
		}
	}
	return order
}

func (r *Router) provider(model string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[model]
	return p, ok
}
