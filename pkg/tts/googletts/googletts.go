// Package googletts provides a Google Cloud Text-to-Speech backed
// [tts.Gateway] using the plain REST API with API-key authentication.
//
// Synthesis requests LINEAR16 output so the playback layer receives raw PCM
// and can reuse the opus encoding path unchanged. Google wraps LINEAR16 in a
// minimal WAV container; the header is stripped before the clip is returned.
package googletts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrWong99/sayso/pkg/tts"
)

const (
	defaultBaseURL    = "https://texttospeech.googleapis.com"
	defaultSampleRate = 48000

	voicesPath     = "/v1beta1/voices"
	synthesizePath = "/v1/text:synthesize"
)

// Compile-time interface assertion.
var _ tts.Gateway = (*Gateway)(nil)

// Option is a functional option for configuring the Gateway.
type Option func(*Gateway)

// WithBaseURL overrides the API endpoint. Intended for tests against an
// httptest server.
func WithBaseURL(baseURL string) Option {
	return func(g *Gateway) {
		g.baseURL = baseURL
	}
}

// WithSampleRate sets the requested output sample rate in Hz.
func WithSampleRate(hz int) Option {
	return func(g *Gateway) {
		if hz > 0 {
			g.sampleRate = hz
		}
	}
}

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// Gateway implements [tts.Gateway] backed by Google Cloud Text-to-Speech.
type Gateway struct {
	apiKey     string
	baseURL    string
	sampleRate int
	httpClient *http.Client
}

// New creates a Gateway. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Gateway, error) {
	if apiKey == "" {
		return nil, errors.New("googletts: apiKey must not be empty")
	}
	g := &Gateway{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// ---- wire types ----

// voiceEntry is a single voice from GET /v1beta1/voices. A voice may carry
// several language codes; the first one is used for synthesis requests.
type voiceEntry struct {
	LanguageCodes          []string `json:"languageCodes"`
	Name                   string   `json:"name"`
	SSMLGender             string   `json:"ssmlGender"`
	NaturalSampleRateHertz int      `json:"naturalSampleRateHertz"`
}

type voicesResponse struct {
	Voices []voiceEntry `json:"voices"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
	SSMLGender   string `json:"ssmlGender,omitempty"`
}

type audioConfig struct {
	AudioEncoding   string `json:"audioEncoding"`
	SampleRateHertz int    `json:"sampleRateHertz,omitempty"`
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// ListVoices returns the Google TTS voice catalogue.
func (g *Gateway) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	url := g.baseURL + voicesPath + "?key=" + g.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("googletts: list voices: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("googletts: list voices: %w: %w", tts.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("googletts: list voices: %w: unexpected status %d", tts.ErrTransport, resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("googletts: list voices decode: %w: %w", tts.ErrTransport, err)
	}
	return mapVoices(vr.Voices), nil
}

// Synthesize converts text to a PCM clip using the given voice.
func (g *Gateway) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Clip, error) {
	body := synthesizeRequest{
		Input: synthesisInput{Text: text},
		Voice: voiceSelection{
			LanguageCode: voice.LanguageCode,
			Name:         voice.Name,
			SSMLGender:   voice.Gender,
		},
		AudioConfig: audioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: g.sampleRate,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("googletts: synthesize encode: %w", err)
	}

	url := g.baseURL + synthesizePath + "?key=" + g.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return tts.Clip{}, fmt.Errorf("googletts: synthesize: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("googletts: synthesize: %w: %w", tts.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tts.Clip{}, fmt.Errorf("googletts: synthesize: %w: unexpected status %d", tts.ErrTransport, resp.StatusCode)
	}

	var sr synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return tts.Clip{}, fmt.Errorf("googletts: synthesize decode: %w: %w", tts.ErrTransport, err)
	}

	audio, err := base64.StdEncoding.DecodeString(sr.AudioContent)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("googletts: synthesize audio decode: %w: %w", tts.ErrTransport, err)
	}

	return tts.Clip{
		PCM:        stripWAVHeader(audio),
		SampleRate: g.sampleRate,
		Channels:   1,
	}, nil
}

// mapVoices converts wire entries to [tts.Voice] values, dropping entries
// without a language code.
func mapVoices(entries []voiceEntry) []tts.Voice {
	voices := make([]tts.Voice, 0, len(entries))
	for _, e := range entries {
		if len(e.LanguageCodes) == 0 {
			continue
		}
		voices = append(voices, tts.Voice{
			LanguageCode: e.LanguageCodes[0],
			Name:         e.Name,
			Gender:       e.SSMLGender,
		})
	}
	return voices
}

// stripWAVHeader removes the RIFF/WAVE header that Google prepends to LINEAR16
// audio, returning the raw sample data. Audio that does not start with a RIFF
// chunk is returned unchanged.
func stripWAVHeader(audio []byte) []byte {
	if len(audio) < 44 || !bytes.HasPrefix(audio, []byte("RIFF")) {
		return audio
	}
	// Locate the "data" sub-chunk; the header is not always exactly 44 bytes.
	idx := bytes.Index(audio, []byte("data"))
	if idx < 0 || idx+8 > len(audio) {
		return audio[44:]
	}
	return audio[idx+8:]
}
