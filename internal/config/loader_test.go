package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/sayso/internal/config"
)

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discord.Token != "bot-token" {
		t.Errorf("token = %q, want bot-token", cfg.Discord.Token)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load("/nonexistent/sayso.yaml"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadFromReader_MalformedYAML(t *testing.T) {
	t.Parallel()
	if _, err := config.LoadFromReader(strings.NewReader("discord: [")); err == nil {
		t.Fatal("expected error for malformed yaml, got nil")
	}
}

func TestLoadFromReader_InvalidTimeout(t *testing.T) {
	t.Parallel()
	yaml := `
discord:
  token: bot-token
synthesis:
  primary:
    name: googletts
    api_key: g-test
  timeout: soon
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unparsable timeout, got nil")
	}
	if !strings.Contains(err.Error(), "duration") {
		t.Errorf("error should mention duration, got: %v", err)
	}
}

func TestValidGatewayNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidGatewayNames) == 0 {
		t.Fatal("ValidGatewayNames should not be empty")
	}
	found := false
	for _, n := range config.ValidGatewayNames {
		if n == "googletts" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidGatewayNames should contain \"googletts\"")
	}
}
