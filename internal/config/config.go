// Package config provides the configuration schema, loader, gateway registry,
// and hot-reload watcher for the Sayso bot.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps [time.Duration] so YAML values like "15s" decode naturally.
type Duration time.Duration

// UnmarshalYAML implements [yaml.Unmarshaler] using [time.ParseDuration].
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogLevel controls log verbosity for the Sayso server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the corresponding [slog.Level]. Unknown or empty levels map
// to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure for Sayso.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
}

// ServerConfig holds network and logging settings for the metrics/health
// HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig holds the chat transport settings.
type DiscordConfig struct {
	// Token is the bot token. Environment references like ${DISCORD_TOKEN}
	// are expanded at load time.
	Token string `yaml:"token"`

	// GuildID, when set, scopes slash command registration to a single
	// guild. Empty registers commands globally (propagation may take up to
	// an hour on Discord's side).
	GuildID string `yaml:"guild_id"`

	// CommandPrefix marks chat messages the pipeline must ignore. Slash
	// commands are registered regardless; the prefix only affects message
	// filtering. Default: "~".
	CommandPrefix string `yaml:"command_prefix"`

	// Denylist is a list of literal message strings that are never spoken.
	// Hot-reloadable.
	Denylist []string `yaml:"denylist"`
}

// SynthesisConfig selects the speech synthesis gateways.
type SynthesisConfig struct {
	// Primary is the preferred gateway.
	Primary GatewayEntry `yaml:"primary"`

	// Fallbacks are tried in order when the primary fails or its circuit
	// breaker is open.
	Fallbacks []GatewayEntry `yaml:"fallbacks"`

	// Timeout bounds one synthesis call. Default: 15s.
	Timeout Duration `yaml:"timeout"`
}

// GatewayEntry is the configuration block shared by all synthesis gateways.
// The Name field is used to look up the constructor in the [Registry].
type GatewayEntry struct {
	// Name selects the registered gateway implementation
	// (e.g., "googletts", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the gateway's API. Environment
	// references like ${GOOGLE_TTS_API_KEY} are expanded at load time.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the gateway's default API endpoint.
	// Leave empty to use the gateway's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a gateway-specific model where applicable
	// (e.g., "eleven_turbo_v2" for elevenlabs).
	Model string `yaml:"model"`

	// Options holds gateway-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}
