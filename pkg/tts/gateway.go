// Package tts defines the Gateway interface for speech synthesis backends.
//
// A Gateway wraps a remote synthesis service (e.g., Google Cloud TTS or
// ElevenLabs) behind two operations: listing the voice catalogue and turning a
// piece of text into PCM audio. The orchestrator treats both as slow,
// cancellable network calls that are attempted exactly once per pipeline run —
// retry and failover policy, when wanted, is layered on top by the resilience
// package, not baked into implementations.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"strings"
)

// ErrTransport is the sentinel wrapped by gateway implementations whenever the
// backing service is unreachable or returns a malformed response. Callers use
// errors.Is(err, ErrTransport) to distinguish network trouble from programming
// errors.
var ErrTransport = errors.New("tts: transport failure")

// Voice identifies a synthesis voice: a BCP-47 language code, the
// provider-specific voice name, and the provider's gender tag.
type Voice struct {
	// LanguageCode is the primary language of the voice (e.g., "en-US").
	LanguageCode string `yaml:"language_code" json:"languageCode"`

	// Name is the provider-specific voice identifier (e.g., "en-US-Wavenet-I").
	Name string `yaml:"name" json:"name"`

	// Gender is the provider's gender tag for the voice (e.g., "FEMALE").
	Gender string `yaml:"gender" json:"ssmlGender"`
}

// Clip is one finished synthesis result: interleaved little-endian int16 PCM
// plus the format it was produced in. The playback layer converts it to the
// voice transport's native format.
type Clip struct {
	// PCM is raw little-endian int16 audio data.
	PCM []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// Gateway is the abstraction over any speech synthesis backend.
//
// Implementations must be safe for concurrent use; multiple guilds may
// synthesise in parallel.
type Gateway interface {
	// ListVoices returns the backend's current voice catalogue. The result may
	// change between calls. Failures wrap [ErrTransport].
	ListVoices(ctx context.Context) ([]Voice, error)

	// Synthesize converts text to audio using the given voice. It makes a
	// single attempt; failures wrap [ErrTransport]. Cancellation and deadlines
	// are honoured via ctx.
	Synthesize(ctx context.Context, text string, voice Voice) (Clip, error)
}

// MatchVoice finds the catalogue entry whose name equals the requested name,
// ignoring case and surrounding whitespace. Returns the matched voice and true,
// or the zero Voice and false when no entry matches.
func MatchVoice(catalogue []Voice, name string) (Voice, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return Voice{}, false
	}
	for _, v := range catalogue {
		if strings.ToLower(strings.TrimSpace(v.Name)) == want {
			return v, true
		}
	}
	return Voice{}, false
}
