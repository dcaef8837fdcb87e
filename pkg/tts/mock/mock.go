// Package mock provides a configurable [tts.Gateway] test double.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sayso/pkg/tts"
)

// Compile-time interface assertion.
var _ tts.Gateway = (*Gateway)(nil)

// Gateway is a [tts.Gateway] double that records calls and returns configured
// results. The zero value returns empty results and nil errors.
type Gateway struct {
	mu sync.Mutex

	// Voices is returned by ListVoices.
	Voices []tts.Voice

	// ListErr, when non-nil, is returned by ListVoices.
	ListErr error

	// Clip is returned by Synthesize.
	Clip tts.Clip

	// SynthesizeErr, when non-nil, is returned by Synthesize.
	SynthesizeErr error

	// SynthesizeFn, when non-nil, replaces the canned Synthesize behaviour.
	SynthesizeFn func(ctx context.Context, text string, voice tts.Voice) (tts.Clip, error)

	// SynthesizedTexts records every text passed to Synthesize.
	SynthesizedTexts []string
}

// ListVoices returns the configured catalogue or error.
func (g *Gateway) ListVoices(context.Context) ([]tts.Voice, error) {
	if g.ListErr != nil {
		return nil, g.ListErr
	}
	return g.Voices, nil
}

// Synthesize records the text and returns the configured clip or error.
func (g *Gateway) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Clip, error) {
	g.mu.Lock()
	g.SynthesizedTexts = append(g.SynthesizedTexts, text)
	g.mu.Unlock()

	if g.SynthesizeFn != nil {
		return g.SynthesizeFn(ctx, text, voice)
	}
	if g.SynthesizeErr != nil {
		return tts.Clip{}, g.SynthesizeErr
	}
	return g.Clip, nil
}

// Calls returns a copy of the recorded synthesis texts.
func (g *Gateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.SynthesizedTexts))
	copy(out, g.SynthesizedTexts)
	return out
}
