package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/sayso/internal/config"
	"github.com/MrWong99/sayso/pkg/tts"
	"github.com/MrWong99/sayso/pkg/tts/mock"
)

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info

discord:
  token: bot-token
  command_prefix: "~"
  denylist:
    - "!ping"

synthesis:
  primary:
    name: googletts
    api_key: g-test
  fallbacks:
    - name: elevenlabs
      api_key: el-test
      model: eleven_turbo_v2
  timeout: 10s
`

func TestLoadFromReader_Sample(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Discord.Token != "bot-token" {
		t.Errorf("token = %q, want bot-token", cfg.Discord.Token)
	}
	if cfg.Discord.CommandPrefix != "~" {
		t.Errorf("command_prefix = %q, want ~", cfg.Discord.CommandPrefix)
	}
	if len(cfg.Discord.Denylist) != 1 || cfg.Discord.Denylist[0] != "!ping" {
		t.Errorf("denylist = %v, want [!ping]", cfg.Discord.Denylist)
	}
	if cfg.Synthesis.Primary.Name != "googletts" {
		t.Errorf("primary = %q, want googletts", cfg.Synthesis.Primary.Name)
	}
	if len(cfg.Synthesis.Fallbacks) != 1 || cfg.Synthesis.Fallbacks[0].Model != "eleven_turbo_v2" {
		t.Errorf("fallbacks = %v", cfg.Synthesis.Fallbacks)
	}
	if cfg.Synthesis.Timeout.Std() != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.Synthesis.Timeout.Std())
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := sampleYAML + "\nunexpected_field: true\n"
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReader_DefaultPrefix(t *testing.T) {
	t.Parallel()
	yaml := `
discord:
  token: bot-token
synthesis:
  primary:
    name: googletts
    api_key: g-test
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discord.CommandPrefix != "~" {
		t.Errorf("default command_prefix = %q, want ~", cfg.Discord.CommandPrefix)
	}
}

func TestLoadFromReader_ExpandsEnvSecrets(t *testing.T) {
	t.Setenv("SAYSO_TEST_TOKEN", "expanded-token")
	t.Setenv("SAYSO_TEST_KEY", "expanded-key")

	yaml := `
discord:
  token: ${SAYSO_TEST_TOKEN}
synthesis:
  primary:
    name: googletts
    api_key: ${SAYSO_TEST_KEY}
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discord.Token != "expanded-token" {
		t.Errorf("token = %q, want expanded-token", cfg.Discord.Token)
	}
	if cfg.Synthesis.Primary.APIKey != "expanded-key" {
		t.Errorf("api_key = %q, want expanded-key", cfg.Synthesis.Primary.APIKey)
	}
}

func TestValidate_MissingToken(t *testing.T) {
	t.Parallel()
	yaml := `
synthesis:
  primary:
    name: googletts
    api_key: g-test
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing token, got nil")
	}
	if !strings.Contains(err.Error(), "discord.token") {
		t.Errorf("error should mention discord.token, got: %v", err)
	}
}

func TestValidate_MissingPrimary(t *testing.T) {
	t.Parallel()
	yaml := `
discord:
  token: bot-token
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing primary gateway, got nil")
	}
	if !strings.Contains(err.Error(), "synthesis.primary") {
		t.Errorf("error should mention synthesis.primary, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
synthesis:
  primary:
    name: googletts
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "discord.token") {
		t.Errorf("error should mention discord.token, got: %v", err)
	}
	if !strings.Contains(errStr, "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}
}

func TestLogLevel_Slog(t *testing.T) {
	t.Parallel()
	cases := map[config.LogLevel]string{
		config.LogDebug: "DEBUG",
		config.LogInfo:  "INFO",
		config.LogWarn:  "WARN",
		config.LogError: "ERROR",
		"":              "INFO",
	}
	for lvl, want := range cases {
		if got := lvl.Slog().String(); got != want {
			t.Errorf("LogLevel(%q).Slog() = %q, want %q", lvl, got, want)
		}
	}
}

func TestRegistry_CreateAndMiss(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.Register("fake", func(entry config.GatewayEntry) (tts.Gateway, error) {
		return &mock.Gateway{}, nil
	})

	if _, err := reg.Create(config.GatewayEntry{Name: "fake"}); err != nil {
		t.Fatalf("Create registered gateway: %v", err)
	}
	_, err := reg.Create(config.GatewayEntry{Name: "missing"})
	if !errors.Is(err, config.ErrGatewayNotRegistered) {
		t.Errorf("Create missing = %v, want ErrGatewayNotRegistered", err)
	}
}
