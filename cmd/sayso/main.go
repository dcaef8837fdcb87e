// Command sayso is the main entry point for the Sayso chat-to-speech bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrWong99/sayso/internal/app"
	"github.com/MrWong99/sayso/internal/config"
	"github.com/MrWong99/sayso/internal/resilience"
	"github.com/MrWong99/sayso/pkg/tts"
	"github.com/MrWong99/sayso/pkg/tts/elevenlabs"
	"github.com/MrWong99/sayso/pkg/tts/googletts"
)

// version is stamped via -ldflags at release time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Pick up DISCORD_TOKEN and friends from a local .env when present.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sayso: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sayso: %v\n", err)
		}
		return 1
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Slog())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("sayso starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	gateway, err := buildGateway(cfg)
	if err != nil {
		slog.Error("failed to build synthesis gateway", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, app.Options{
		Config:     cfg,
		ConfigPath: *configPath,
		Gateway:    gateway,
		LogLevel:   level,
		Version:    version,
	})
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("sayso ready — press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltinGateways wires the synthesis backends that ship with Sayso
// into reg.
func registerBuiltinGateways(reg *config.Registry) {
	reg.Register("googletts", func(entry config.GatewayEntry) (tts.Gateway, error) {
		var opts []googletts.Option
		if entry.BaseURL != "" {
			opts = append(opts, googletts.WithBaseURL(entry.BaseURL))
		}
		if rate := optInt(entry.Options, "sample_rate"); rate > 0 {
			opts = append(opts, googletts.WithSampleRate(rate))
		}
		return googletts.New(entry.APIKey, opts...)
	})

	reg.Register("elevenlabs", func(entry config.GatewayEntry) (tts.Gateway, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})
}

// buildGateway instantiates the primary synthesis gateway plus any configured
// fallbacks behind the failover layer. The layer is applied even for a lone
// primary so per-backend request metrics and the breaker's fail-fast behaviour
// hold regardless of the fallback configuration.
func buildGateway(cfg *config.Config) (tts.Gateway, error) {
	reg := config.NewRegistry()
	registerBuiltinGateways(reg)

	primary, err := reg.Create(cfg.Synthesis.Primary)
	if err != nil {
		return nil, fmt.Errorf("create gateway %q: %w", cfg.Synthesis.Primary.Name, err)
	}
	slog.Info("synthesis gateway created", "name", cfg.Synthesis.Primary.Name)

	group := resilience.NewGateway(cfg.Synthesis.Primary.Name, primary, resilience.GatewayConfig{})
	for _, entry := range cfg.Synthesis.Fallbacks {
		fb, err := reg.Create(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback gateway %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, fb)
		slog.Info("fallback gateway created", "name", entry.Name)
	}
	return group, nil
}

// optString extracts a string from a gateway Options map. Returns "" when
// the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an int from a gateway Options map. YAML decodes small
// integers as int, so only that case is handled.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	n, _ := opts[key].(int)
	return n
}
