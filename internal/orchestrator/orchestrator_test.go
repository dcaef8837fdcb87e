package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/sayso/internal/binding"
	"github.com/MrWong99/sayso/internal/observe"
	"github.com/MrWong99/sayso/internal/profile"
	"github.com/MrWong99/sayso/internal/sanitize"
	"github.com/MrWong99/sayso/pkg/tts"
	"github.com/MrWong99/sayso/pkg/tts/mock"
	"github.com/MrWong99/sayso/pkg/voice"
)

type fakePlayer struct {
	mu    sync.Mutex
	err   error
	calls []string
	clips []tts.Clip
}

func (p *fakePlayer) Play(_ context.Context, guildID string, clip tts.Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, guildID)
	p.clips = append(p.clips, clip)
	return p.err
}

func (p *fakePlayer) played() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, _, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// harness bundles an orchestrator with its collaborators, pre-seeded with one
// binding (guild g1 -> channel c1) and one profile (user u1).
type harness struct {
	orch     *Orchestrator
	bindings *binding.Store
	profiles *profile.Store
	gateway  *mock.Gateway
	player   *fakePlayer
	notifier *fakeNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	h := &harness{
		bindings: binding.NewStore(),
		profiles: profile.NewStore(),
		gateway:  &mock.Gateway{Clip: tts.Clip{PCM: []byte{1, 2, 3, 4}, SampleRate: 48000, Channels: 2}},
		player:   &fakePlayer{},
		notifier: &fakeNotifier{},
	}
	h.bindings.Bind("g1", "c1")
	h.profiles.SetIfAbsent("u1", tts.Voice{LanguageCode: "en-US", Name: "en-US-Wavenet-A"})

	h.orch, err = New(Config{
		Bindings:      h.bindings,
		Profiles:      h.profiles,
		Synth:         h.gateway,
		Player:        h.player,
		Notifier:      h.notifier,
		Metrics:       metrics,
		CommandPrefix: "~",
		Denylist:      []string{"!ping"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func boundMessage(content string) MessageEvent {
	return MessageEvent{
		AuthorID:   "u1",
		AuthorName: "Sam",
		GuildID:    "g1",
		ChannelID:  "c1",
		Content:    content,
	}
}

func TestHandleMessageHappyPath(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	got := h.orch.HandleMessage(context.Background(), boundMessage("hello"))
	if got != OutcomePlaying {
		t.Fatalf("outcome = %v, want playing", got)
	}
	if h.player.played() != 1 {
		t.Errorf("player called %d times, want 1", h.player.played())
	}
	if h.notifier.count() != 0 {
		t.Errorf("success posted %d notifications, want 0", h.notifier.count())
	}
	if calls := h.gateway.Calls(); len(calls) != 1 || calls[0] != "hello" {
		t.Errorf("synthesized texts = %v, want [hello]", calls)
	}
}

func TestHandleMessageFiltered(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	cases := []struct {
		name string
		ev   MessageEvent
	}{
		{"bot author", func() MessageEvent {
			ev := boundMessage("hello")
			ev.AuthorBot = true
			return ev
		}()},
		{"direct message", func() MessageEvent {
			ev := boundMessage("hello")
			ev.GuildID = ""
			return ev
		}()},
		{"command prefix", boundMessage("~join")},
		{"denylisted", boundMessage("!ping")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := h.orch.HandleMessage(context.Background(), tc.ev); got != OutcomeFiltered {
				t.Errorf("outcome = %v, want filtered", got)
			}
		})
	}
	if h.player.played() != 0 {
		t.Errorf("filtered messages reached the player %d times", h.player.played())
	}
	if h.notifier.count() != 0 {
		t.Errorf("filtered messages posted %d notifications", h.notifier.count())
	}
}

func TestHandleMessageUnbound(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	ev := boundMessage("hello")
	ev.ChannelID = "c-other"
	if got := h.orch.HandleMessage(context.Background(), ev); got != OutcomeUnbound {
		t.Errorf("wrong channel outcome = %v, want unbound", got)
	}

	ev = boundMessage("hello")
	ev.GuildID = "g-unlinked"
	if got := h.orch.HandleMessage(context.Background(), ev); got != OutcomeUnbound {
		t.Errorf("unlinked guild outcome = %v, want unbound", got)
	}

	if h.player.played() != 0 {
		t.Error("unbound message produced audio")
	}
	if h.notifier.count() != 0 {
		t.Error("unbound message produced a notification")
	}
}

func TestHandleMessageNoProfile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	ev := boundMessage("hello")
	ev.AuthorID = "u-unregistered"
	if got := h.orch.HandleMessage(context.Background(), ev); got != OutcomeNoProfile {
		t.Errorf("outcome = %v, want no_profile", got)
	}
	if len(h.gateway.Calls()) != 0 {
		t.Error("profile-less message reached the gateway")
	}
}

func TestHandleMessageNothingToSay(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	if got := h.orch.HandleMessage(context.Background(), boundMessage("https://example.com/x")); got != OutcomeNothingToSay {
		t.Errorf("outcome = %v, want nothing_to_say", got)
	}
	if len(h.gateway.Calls()) != 0 {
		t.Error("empty sanitized text reached the gateway")
	}
}

func TestHandleMessageSanitizesBeforeSynthesis(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	ev := boundMessage("check http://x.co/y out <@!42>")
	ev.Mentions = []sanitize.Mention{{ID: "42", Name: "Sam"}}
	if got := h.orch.HandleMessage(context.Background(), ev); got != OutcomePlaying {
		t.Fatalf("outcome = %v, want playing", got)
	}
	if calls := h.gateway.Calls(); len(calls) != 1 || calls[0] != "check  out Sam" {
		t.Errorf("synthesized %q, want %q", calls, "check  out Sam")
	}
}

func TestHandleMessageSynthesisFailed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.gateway.SynthesizeErr = errors.New("upstream 500")

	if got := h.orch.HandleMessage(context.Background(), boundMessage("hello")); got != OutcomeSynthesisFailed {
		t.Fatalf("outcome = %v, want synthesis_failed", got)
	}
	if h.notifier.count() != 1 {
		t.Errorf("posted %d notifications, want exactly 1", h.notifier.count())
	}
	if h.player.played() != 0 {
		t.Error("failed synthesis reached the player")
	}
}

func TestHandleMessageNoSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.player.err = voice.ErrNoSession

	if got := h.orch.HandleMessage(context.Background(), boundMessage("hello")); got != OutcomeNoSession {
		t.Fatalf("outcome = %v, want no_session", got)
	}
	if h.notifier.count() != 1 {
		t.Errorf("posted %d notifications, want exactly 1", h.notifier.count())
	}
}

func TestHandleMessageReplacedMidPlayback(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.player.err = voice.ErrInterrupted

	if got := h.orch.HandleMessage(context.Background(), boundMessage("hello")); got != OutcomeReplaced {
		t.Fatalf("outcome = %v, want OutcomeReplaced", got)
	}
	if h.notifier.count() != 0 {
		t.Errorf("replaced playback should be silent, got %d notifications", h.notifier.count())
	}
	snap := h.orch.Stats().Snapshot()
	if snap.Outcomes[OutcomeReplaced] != 1 {
		t.Errorf("replaced count = %d, want 1", snap.Outcomes[OutcomeReplaced])
	}
	if snap.Outcomes[OutcomePlaying] != 0 {
		t.Errorf("cut-off clip counted as playing: %d", snap.Outcomes[OutcomePlaying])
	}
	if snap.Playback.P50 != 0 {
		t.Errorf("cut-off clip recorded a playback duration: p50 = %v", snap.Playback.P50)
	}
}

func TestHandleMessagePlaybackFailed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.player.err = errors.New("udp send failed")

	if got := h.orch.HandleMessage(context.Background(), boundMessage("hello")); got != OutcomePlaybackFailed {
		t.Fatalf("outcome = %v, want playback_failed", got)
	}
	if h.notifier.count() != 1 {
		t.Errorf("posted %d notifications, want exactly 1", h.notifier.count())
	}
}

func TestHandleMessageNotifierFailureNotEscalated(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.gateway.SynthesizeErr = errors.New("upstream 500")
	h.notifier.err = errors.New("channel deleted")

	// The notifier failing must not change the pipeline result.
	if got := h.orch.HandleMessage(context.Background(), boundMessage("hello")); got != OutcomeSynthesisFailed {
		t.Errorf("outcome = %v, want synthesis_failed", got)
	}
}

func TestUpdateFilters(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	if got := h.orch.HandleMessage(context.Background(), boundMessage("!speak hello")); got != OutcomePlaying {
		t.Fatalf("outcome before reload = %v, want playing", got)
	}

	h.orch.UpdateFilters("!", nil)
	if got := h.orch.HandleMessage(context.Background(), boundMessage("!speak hello")); got != OutcomeFiltered {
		t.Errorf("outcome after reload = %v, want filtered", got)
	}
	// The old denylist is gone too.
	if got := h.orch.HandleMessage(context.Background(), boundMessage("!ping")); got != OutcomeFiltered {
		t.Errorf("prefix still filters = %v, want filtered", got)
	}
}

func TestHandleMessageConcurrentGuilds(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.bindings.Bind("g2", "c2")
	h.profiles.SetIfAbsent("u2", tts.Voice{LanguageCode: "en-GB", Name: "en-GB-Wavenet-B"})

	var wg sync.WaitGroup
	for range 25 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.orch.HandleMessage(context.Background(), boundMessage("hello from g1"))
		}()
		go func() {
			defer wg.Done()
			h.orch.HandleMessage(context.Background(), MessageEvent{
				AuthorID:  "u2",
				GuildID:   "g2",
				ChannelID: "c2",
				Content:   "hello from g2",
			})
		}()
	}
	wg.Wait()

	if h.player.played() != 50 {
		t.Errorf("player called %d times, want 50", h.player.played())
	}
	snap := h.orch.Stats().Snapshot()
	if snap.Outcomes[OutcomePlaying] != 50 {
		t.Errorf("playing count = %d, want 50", snap.Outcomes[OutcomePlaying])
	}
}
