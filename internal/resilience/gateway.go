// Package resilience layers failover across speech synthesis backends.
//
// [Gateway] wraps an ordered list of [tts.Gateway] backends, each guarded by a
// [Breaker]. The message pipeline performs exactly one synthesis attempt per
// message and treats this wrapper as a single gateway; which concrete backend
// served the attempt is this package's concern alone. Every attempt is
// recorded on the gateway request/error metrics, attributed to the backend
// that handled it.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/sayso/internal/observe"
	"github.com/MrWong99/sayso/pkg/tts"
)

// ErrAllFailed is returned when every backend failed or is cooling down.
var ErrAllFailed = errors.New("resilience: all synthesis backends failed")

// Compile-time interface assertion.
var _ tts.Gateway = (*Gateway)(nil)

// GatewayConfig configures a [Gateway].
type GatewayConfig struct {
	// Breaker tunes the per-backend failure detector.
	Breaker BreakerConfig

	// Metrics receives per-attempt request and error counts. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// backend pairs a named synthesis gateway with its breaker.
type backend struct {
	name    string
	gw      tts.Gateway
	breaker *Breaker
}

// Gateway implements [tts.Gateway] with automatic failover. Backends are
// tried in registration order; a backend whose breaker is open is skipped
// until its cooldown admits a probe.
type Gateway struct {
	cfg      GatewayConfig
	metrics  *observe.Metrics
	backends []*backend
}

// NewGateway creates a [Gateway] with primary as the preferred backend.
// Register the backends before first use; AddFallback is not safe to call
// concurrently with synthesis.
func NewGateway(primaryName string, primary tts.Gateway, cfg GatewayConfig) *Gateway {
	g := &Gateway{cfg: cfg, metrics: cfg.Metrics}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	g.AddFallback(primaryName, primary)
	return g
}

// AddFallback appends a synthesis backend, tried after all earlier ones.
func (g *Gateway) AddFallback(name string, gw tts.Gateway) {
	g.backends = append(g.backends, &backend{
		name:    name,
		gw:      gw,
		breaker: NewBreaker(name, g.cfg.Breaker),
	})
}

// Synthesize renders text with the first healthy backend.
func (g *Gateway) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Clip, error) {
	return attempt(ctx, g, "synthesize", func(b tts.Gateway) (tts.Clip, error) {
		return b.Synthesize(ctx, text, voice)
	})
}

// ListVoices returns the catalogue of the first healthy backend. Catalogues
// are not merged across backends: voice names registered by users must stay
// resolvable on whichever backend serves them.
func (g *Gateway) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	return attempt(ctx, g, "list_voices", func(b tts.Gateway) ([]tts.Voice, error) {
		return b.ListVoices(ctx)
	})
}

// attempt runs call against each backend in order until one succeeds,
// charging breakers and metrics per attempt. A package-level function because
// Go does not support method-level type parameters.
func attempt[R any](ctx context.Context, g *Gateway, op string, call func(tts.Gateway) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for _, b := range g.backends {
		// A dead context would fail every remaining backend for reasons
		// that are not theirs; stop instead of charging their breakers.
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if !b.breaker.Allow() {
			slog.Debug("skipping sidelined synthesis backend", "backend", b.name, "op", op)
			continue
		}

		res, err := call(b.gw)
		b.breaker.Record(err)
		if err != nil {
			g.metrics.RecordGatewayRequest(ctx, b.name, op, "error")
			g.metrics.RecordGatewayError(ctx, b.name, op)
			slog.Warn("synthesis backend failed, trying next",
				"backend", b.name, "op", op, "error", err)
			lastErr = err
			continue
		}
		g.metrics.RecordGatewayRequest(ctx, b.name, op, "ok")
		return res, nil
	}

	if lastErr == nil {
		return zero, fmt.Errorf("%w: every backend is cooling down", ErrAllFailed)
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
