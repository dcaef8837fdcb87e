// Package orchestrator runs the per-message text-to-speech pipeline: filter,
// binding lookup, profile lookup, sanitization, synthesis, playback. Each
// inbound message is processed independently; messages for different guilds
// run fully concurrently.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/sayso/internal/observe"
	"github.com/MrWong99/sayso/internal/sanitize"
	"github.com/MrWong99/sayso/pkg/tts"
	"github.com/MrWong99/sayso/pkg/voice"
)

// MessageEvent is one inbound chat message, platform details already
// flattened by the transport layer.
type MessageEvent struct {
	AuthorID   string
	AuthorName string
	AuthorBot  bool
	GuildID    string // empty for direct messages
	ChannelID  string
	Content    string
	Mentions   []sanitize.Mention
}

// BindingLookup resolves a guild to its bound text channel.
type BindingLookup interface {
	Lookup(guildID string) (channelID string, ok bool)
}

// ProfileLookup resolves a user to their registered voice.
type ProfileLookup interface {
	Get(userID string) (tts.Voice, bool)
}

// Synthesizer is the slice of [tts.Gateway] the pipeline needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Clip, error)
}

// Player submits audio to a guild's voice session. Implementations return
// [voice.ErrNoSession] when the guild has no live session.
type Player interface {
	Play(ctx context.Context, guildID string, clip tts.Clip) error
}

// Notifier posts a short user-facing message to a text channel. Failures are
// logged by the pipeline, never escalated.
type Notifier interface {
	Notify(ctx context.Context, channelID, text string) error
}

// defaultSynthesisTimeout bounds a single synthesis gateway call.
const defaultSynthesisTimeout = 15 * time.Second

// Orchestrator drives the message pipeline. Construct with [New]; safe for
// concurrent use.
type Orchestrator struct {
	bindings BindingLookup
	profiles ProfileLookup
	synth    Synthesizer
	player   Player
	notifier Notifier

	metrics      *observe.Metrics
	stats        *Stats
	synthTimeout time.Duration

	// Filter settings are hot-reloadable via UpdateFilters.
	filterMu sync.RWMutex
	prefix   string
	denylist []string
}

// Config carries the collaborators and settings for [New]. Bindings,
// Profiles, Synth, and Player are required; the rest have defaults.
type Config struct {
	Bindings BindingLookup
	Profiles ProfileLookup
	Synth    Synthesizer
	Player   Player

	// Notifier receives the one-shot error messages for the reporting
	// terminal states. Nil disables reporting.
	Notifier Notifier

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Stats defaults to a fresh [NewStats] with the default window.
	Stats *Stats

	// SynthesisTimeout bounds each synthesis call. Zero means the default
	// of 15 s.
	SynthesisTimeout time.Duration

	// CommandPrefix marks messages to ignore (the command surface handles
	// them). Empty disables prefix filtering.
	CommandPrefix string

	// Denylist is a list of literal strings that are never spoken.
	Denylist []string
}

// New creates an Orchestrator. Returns an error when a required collaborator
// is missing.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Bindings == nil || cfg.Profiles == nil || cfg.Synth == nil || cfg.Player == nil {
		return nil, errors.New("orchestrator: bindings, profiles, synth, and player are required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats(0)
	}
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = defaultSynthesisTimeout
	}
	return &Orchestrator{
		bindings:     cfg.Bindings,
		profiles:     cfg.Profiles,
		synth:        cfg.Synth,
		player:       cfg.Player,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		stats:        cfg.Stats,
		synthTimeout: cfg.SynthesisTimeout,
		prefix:       cfg.CommandPrefix,
		denylist:     append([]string(nil), cfg.Denylist...),
	}, nil
}

// Stats returns the pipeline's statistics collector.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// UpdateFilters swaps the command prefix and denylist. Called by the config
// watcher on reload; in-flight messages keep the settings they started with.
func (o *Orchestrator) UpdateFilters(prefix string, denylist []string) {
	o.filterMu.Lock()
	defer o.filterMu.Unlock()
	o.prefix = prefix
	o.denylist = append([]string(nil), denylist...)
}

// HandleMessage runs one message through the pipeline and returns its
// terminal state. Every failure path ends in either silence or exactly one
// short user-facing message; lower-layer errors never reach the chat
// transport untranslated.
func (o *Orchestrator) HandleMessage(ctx context.Context, ev MessageEvent) Outcome {
	ctx, span := observe.StartSpan(ctx, "pipeline.message",
		trace.WithAttributes(
			observe.Attr("guild_id", ev.GuildID),
			observe.Attr("channel_id", ev.ChannelID),
		),
	)
	defer span.End()

	outcome := o.run(ctx, ev)

	span.SetAttributes(observe.Attr("outcome", outcome.String()))
	o.metrics.RecordOutcome(ctx, outcome.String())
	o.stats.RecordOutcome(outcome)
	if !outcome.Silent() {
		observe.Logger(ctx).Warn("pipeline terminated with error",
			"outcome", outcome.String(),
			"guild_id", ev.GuildID,
			"author_id", ev.AuthorID,
		)
	}
	return outcome
}

func (o *Orchestrator) run(ctx context.Context, ev MessageEvent) Outcome {
	if o.filtered(ev) {
		return OutcomeFiltered
	}

	bound, ok := o.bindings.Lookup(ev.GuildID)
	if !ok || bound != ev.ChannelID {
		return OutcomeUnbound
	}

	profile, ok := o.profiles.Get(ev.AuthorID)
	if !ok {
		return OutcomeNoProfile
	}

	text := sanitize.Sanitize(ev.Content, ev.Mentions)
	if strings.TrimSpace(text) == "" {
		return OutcomeNothingToSay
	}

	clip, err := o.synthesize(ctx, text, profile)
	if err != nil {
		observe.Logger(ctx).Error("synthesis failed",
			"guild_id", ev.GuildID, "error", err)
		o.notify(ctx, ev.ChannelID, "Sorry, I could not synthesize that message right now.")
		return OutcomeSynthesisFailed
	}

	playStart := time.Now()
	switch err := o.player.Play(ctx, ev.GuildID, clip); {
	case err == nil:
		d := time.Since(playStart)
		o.metrics.PlaybackDuration.Record(ctx, d.Seconds())
		o.stats.RecordPlayback(d)
		return OutcomePlaying
	case errors.Is(err, voice.ErrInterrupted):
		// Cut off by a newer message. Not a failure, and the truncated
		// duration would skew the playback histogram, so it is only
		// counted as an outcome.
		return OutcomeReplaced
	case errors.Is(err, voice.ErrNoSession):
		o.notify(ctx, ev.ChannelID, "I'm not in a voice channel on this server. Use /join first.")
		return OutcomeNoSession
	default:
		observe.Logger(ctx).Error("playback failed",
			"guild_id", ev.GuildID, "error", err)
		o.notify(ctx, ev.ChannelID, "Sorry, playback failed.")
		return OutcomePlaybackFailed
	}
}

// filtered applies the cheap rejection rules: bot authors, direct messages,
// command-prefixed content, and denylisted content.
func (o *Orchestrator) filtered(ev MessageEvent) bool {
	if ev.AuthorBot || ev.GuildID == "" {
		return true
	}

	o.filterMu.RLock()
	prefix, denylist := o.prefix, o.denylist
	o.filterMu.RUnlock()

	if prefix != "" && strings.HasPrefix(ev.Content, prefix) {
		return true
	}
	trimmed := strings.TrimSpace(ev.Content)
	for _, entry := range denylist {
		if trimmed == entry {
			return true
		}
	}
	return false
}

func (o *Orchestrator) synthesize(ctx context.Context, text string, profile tts.Voice) (tts.Clip, error) {
	ctx, cancel := context.WithTimeout(ctx, o.synthTimeout)
	defer cancel()

	start := time.Now()
	clip, err := o.synth.Synthesize(ctx, text, profile)
	d := time.Since(start)
	o.metrics.SynthesisDuration.Record(ctx, d.Seconds())
	if err != nil {
		return tts.Clip{}, err
	}
	o.stats.RecordSynthesis(d)
	return clip, nil
}

// notify is the best-effort side channel for the reporting terminal states.
func (o *Orchestrator) notify(ctx context.Context, channelID, text string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, channelID, text); err != nil {
		observe.Logger(ctx).Warn("user notification failed",
			"channel_id", channelID, "error", err)
	}
}
