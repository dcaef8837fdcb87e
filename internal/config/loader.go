package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidGatewayNames lists known synthesis gateway names.
// Used by [Validate] to warn about unrecognised names.
var ValidGatewayNames = []string{"googletts", "elevenlabs"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands environment references
// in secret-bearing fields, applies defaults, and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	expandSecrets(cfg)
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandSecrets applies [os.ExpandEnv] to the fields that typically carry
// ${VAR} references instead of inline secrets.
func expandSecrets(cfg *Config) {
	cfg.Discord.Token = os.ExpandEnv(cfg.Discord.Token)
	cfg.Synthesis.Primary.APIKey = os.ExpandEnv(cfg.Synthesis.Primary.APIKey)
	for i := range cfg.Synthesis.Fallbacks {
		cfg.Synthesis.Fallbacks[i].APIKey = os.ExpandEnv(cfg.Synthesis.Fallbacks[i].APIKey)
	}
}

// applyDefaults fills in the documented defaults for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Discord.CommandPrefix == "" {
		cfg.Discord.CommandPrefix = "~"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Discord
	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}

	// Synthesis
	if cfg.Synthesis.Primary.Name == "" {
		errs = append(errs, errors.New("synthesis.primary.name is required"))
	} else {
		validateGatewayEntry("synthesis.primary", cfg.Synthesis.Primary, &errs)
	}
	for i, entry := range cfg.Synthesis.Fallbacks {
		prefix := fmt.Sprintf("synthesis.fallbacks[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateGatewayEntry(prefix, entry, &errs)
	}
	if cfg.Synthesis.Timeout < 0 {
		errs = append(errs, fmt.Errorf("synthesis.timeout %v is negative", cfg.Synthesis.Timeout))
	}

	return errors.Join(errs...)
}

// validateGatewayEntry checks a single gateway block. Unknown gateway names
// only warn: the registry may carry third-party registrations.
func validateGatewayEntry(prefix string, entry GatewayEntry, errs *[]error) {
	if !slices.Contains(ValidGatewayNames, entry.Name) {
		slog.Warn("unknown gateway name — may be a typo or third-party gateway",
			"field", prefix,
			"name", entry.Name,
			"known", ValidGatewayNames,
		)
	}
	if entry.APIKey == "" {
		*errs = append(*errs, fmt.Errorf("%s.api_key is required", prefix))
	}
}
