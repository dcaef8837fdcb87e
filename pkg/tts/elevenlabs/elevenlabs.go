// Package elevenlabs provides an ElevenLabs-backed [tts.Gateway] using the
// ElevenLabs streaming WebSocket API. The streamed audio chunks are collected
// into a single clip, matching the one-shot synthesis contract.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/sayso/pkg/tts"
)

const (
	wsEndpointFmt  = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s"
	voicesEndpoint = "https://api.elevenlabs.io/v1/voices"
	defaultModel   = "eleven_flash_v2_5"

	// defaultOutputFmt selects raw mono PCM; the sample rate is encoded in the
	// format name and parsed back out for the returned clip.
	defaultOutputFmt = "pcm_24000"
)

// Compile-time interface assertion.
var _ tts.Gateway = (*Gateway)(nil)

// Option is a functional option for configuring the ElevenLabs Gateway.
type Option func(*Gateway)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(g *Gateway) {
		g.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "pcm_16000", "pcm_24000").
func WithOutputFormat(format string) Option {
	return func(g *Gateway) {
		g.outputFormat = format
	}
}

// Gateway implements [tts.Gateway] backed by the ElevenLabs streaming API.
type Gateway struct {
	apiKey       string
	model        string
	outputFormat string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Gateway. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Gateway, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	g := &Gateway{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for a text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// boiMessage is the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// Synthesize opens a WebSocket to ElevenLabs, sends the text, and collects the
// streamed PCM chunks into a single clip.
func (g *Gateway) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Clip, error) {
	if voice.Name == "" {
		return tts.Clip{}, errors.New("elevenlabs: voice.Name must not be empty")
	}

	wsURL := fmt.Sprintf(wsEndpointFmt, voice.Name, g.model)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: dial: %w: %w", tts.ErrTransport, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}

	// BOI handshake: ElevenLabs requires a non-empty first text value.
	boi := boiMessage{
		Text:          " ",
		VoiceSettings: vs,
		XiAPIKey:      g.apiKey,
		OutputFormat:  g.outputFormat,
	}
	if err := writeJSON(ctx, conn, boi); err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: send BOI: %w: %w", tts.ErrTransport, err)
	}

	if err := writeJSON(ctx, conn, textMessage{Text: text}); err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: send text: %w: %w", tts.ErrTransport, err)
	}

	// An empty text message flushes and ends the stream.
	if err := writeJSON(ctx, conn, textMessage{Text: ""}); err != nil {
		return tts.Clip{}, fmt.Errorf("elevenlabs: send flush: %w: %w", tts.ErrTransport, err)
	}

	var pcm []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			// A normal closure after the final chunk ends the stream.
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure && len(pcm) > 0 {
				break
			}
			if ctx.Err() != nil {
				return tts.Clip{}, fmt.Errorf("elevenlabs: synthesize: %w", ctx.Err())
			}
			return tts.Clip{}, fmt.Errorf("elevenlabs: read: %w: %w", tts.ErrTransport, err)
		}

		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return tts.Clip{}, fmt.Errorf("elevenlabs: audio decode: %w: %w", tts.ErrTransport, err)
			}
			pcm = append(pcm, chunk...)
		}
		if resp.IsFinal {
			break
		}
	}

	if len(pcm) == 0 {
		return tts.Clip{}, fmt.Errorf("elevenlabs: synthesize: %w: empty audio stream", tts.ErrTransport)
	}

	return tts.Clip{
		PCM:        pcm,
		SampleRate: outputFormatRate(g.outputFormat),
		Channels:   1,
	}, nil
}

// ---- ListVoices ----

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// ListVoices returns all voices available for the configured API key.
func (g *Gateway) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", g.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w: %w", tts.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: %w: unexpected status %d", tts.ErrTransport, resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w: %w", tts.ErrTransport, err)
	}
	return parseVoices(vr), nil
}

// ---- helpers ----

// parseVoices maps the ElevenLabs catalogue onto [tts.Voice] values. ElevenLabs
// identifies voices by opaque ID; synthesis addresses the voice by that ID, so
// it goes into the Name field.
func parseVoices(vr voicesResponse) []tts.Voice {
	voices := make([]tts.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		voices = append(voices, tts.Voice{
			LanguageCode: languageLabel(v.Labels),
			Name:         v.VoiceID,
			Gender:       strings.ToUpper(v.Labels["gender"]),
		})
	}
	return voices
}

// languageLabel extracts a language hint from the voice labels, defaulting to
// "en-US" when the catalogue provides none.
func languageLabel(labels map[string]string) string {
	if l, ok := labels["language"]; ok && l != "" {
		return l
	}
	return "en-US"
}

// outputFormatRate parses the sample rate out of a "pcm_<hz>" format name.
func outputFormatRate(format string) int {
	rate, err := strconv.Atoi(strings.TrimPrefix(format, "pcm_"))
	if err != nil || rate <= 0 {
		return 24000
	}
	return rate
}

// writeJSON marshals v and writes it as a text message.
func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}
