// Package app wires all Sayso subsystems into a running application.
//
// The App struct owns the full lifecycle: New connects to Discord, builds
// the speech pipeline and the admin HTTP server, Run drives them until the
// context is cancelled, and Shutdown tears everything down in order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sayso/internal/binding"
	"github.com/MrWong99/sayso/internal/config"
	"github.com/MrWong99/sayso/internal/discord"
	"github.com/MrWong99/sayso/internal/discord/commands"
	"github.com/MrWong99/sayso/internal/health"
	"github.com/MrWong99/sayso/internal/observe"
	"github.com/MrWong99/sayso/internal/orchestrator"
	"github.com/MrWong99/sayso/internal/profile"
	"github.com/MrWong99/sayso/pkg/tts"
	"github.com/MrWong99/sayso/pkg/voice"
)

// Options holds everything New needs to assemble the application. Gateway is
// built by main from the config registry (with failover layered on when
// fallbacks are configured).
type Options struct {
	Config *config.Config

	// ConfigPath enables hot reload of the reloadable config fields when
	// non-empty.
	ConfigPath string

	// Gateway is the speech synthesis backend.
	Gateway tts.Gateway

	// LogLevel, when non-nil, is adjusted on config hot reload.
	LogLevel *slog.LevelVar

	// Version is reported in telemetry.
	Version string
}

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	bot      *discord.Bot
	bindings *binding.Store
	profiles *profile.Store
	registry *voice.Registry
	sessions *instrumentedSessions
	orch     *orchestrator.Orchestrator
	watcher  *config.Watcher
	admin    *http.Server
	metrics  *observe.Metrics
	logLevel *slog.LevelVar

	shutdownOTel func(context.Context) error
	stopOnce     sync.Once
}

// New wires the Discord bot, the voice session registry, the pipeline and
// the admin HTTP server together. The bot connects to the gateway during
// New; on any later error the session is closed again before returning.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	a := &App{
		cfg:      cfg,
		bindings: binding.NewStore(),
		profiles: profile.NewStore(),
		logLevel: opts.LogLevel,
	}

	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: opts.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	a.shutdownOTel = shutdownOTel
	a.metrics = observe.DefaultMetrics()

	// The bot dispatches into the App so the orchestrator can be built
	// after the voice registry, which needs the bot's session.
	bot, err := discord.New(discord.Config{
		Token:   cfg.Discord.Token,
		GuildID: cfg.Discord.GuildID,
	}, a, a)
	if err != nil {
		return nil, fmt.Errorf("app: connect discord: %w", err)
	}
	a.bot = bot

	a.registry = voice.NewRegistry(bot.Session())
	a.sessions = &instrumentedSessions{reg: a.registry, metrics: a.metrics}

	orch, err := orchestrator.New(orchestrator.Config{
		Bindings:         a.bindings,
		Profiles:         a.profiles,
		Synth:            opts.Gateway,
		Player:           a.registry,
		Notifier:         bot,
		Metrics:          a.metrics,
		SynthesisTimeout: cfg.Synthesis.Timeout.Std(),
		CommandPrefix:    cfg.Discord.CommandPrefix,
		Denylist:         cfg.Discord.Denylist,
	})
	if err != nil {
		_ = bot.Close()
		return nil, fmt.Errorf("app: build pipeline: %w", err)
	}
	a.orch = orch

	commands.NewLinkCommands(bot, a.bindings)
	commands.NewVoiceCommands(bot, a.profiles, opts.Gateway)
	commands.NewChannelCommands(bot, a.sessions)
	commands.NewStatsCommands(bot, orch.Stats(), a.registry)

	if cfg.Server.ListenAddr != "" {
		a.admin = newAdminServer(cfg.Server.ListenAddr, a.metrics, bot.Connected, opts.Gateway)
	}

	if opts.ConfigPath != "" {
		w, err := config.NewWatcher(opts.ConfigPath, a.applyConfig)
		if err != nil {
			// The config already loaded once, so a watcher failure is
			// not fatal; hot reload is just unavailable.
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			a.watcher = w
		}
	}

	return a, nil
}

// HandleMessage implements discord.MessageSink by delegating to the
// pipeline.
func (a *App) HandleMessage(ctx context.Context, ev orchestrator.MessageEvent) orchestrator.Outcome {
	return a.orch.HandleMessage(ctx, ev)
}

// Drop implements discord.SessionDropper.
func (a *App) Drop(guildID string) {
	a.sessions.Drop(guildID)
}

// Run drives the bot and the admin server until ctx is cancelled or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.bot.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if a.admin != nil {
		slog.Info("admin server listening", "addr", a.admin.Addr)
		g.Go(func() error {
			err := a.admin.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.admin.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Shutdown stops the watcher, disconnects from Discord, closes all voice
// sessions and flushes telemetry. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		if a.watcher != nil {
			a.watcher.Stop()
		}
		if err := a.bot.Close(); err != nil {
			errs = append(errs, err)
		}
		a.registry.CloseAll()
		if a.shutdownOTel != nil {
			if err := a.shutdownOTel(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		slog.Info("sayso stopped")
	})
	return errors.Join(errs...)
}

// applyConfig is the watcher callback for config hot reload. Only the log
// level, command prefix and denylist apply live; everything else logs a
// restart notice.
func (a *App) applyConfig(old, new *config.Config) {
	diff := config.Diff(old, new)
	if !diff.Changed() {
		return
	}

	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(diff.NewLogLevel.Slog())
		slog.Info("log level updated", "level", diff.NewLogLevel)
	}
	if diff.PrefixChanged || diff.DenylistChanged {
		a.orch.UpdateFilters(new.Discord.CommandPrefix, new.Discord.Denylist)
		slog.Info("message filters updated",
			"prefix", new.Discord.CommandPrefix,
			"denylist_len", len(new.Discord.Denylist),
		)
	}
	if diff.RestartRequired {
		slog.Warn("config change requires a restart to take effect")
	}
}

// newAdminServer builds the HTTP server exposing health probes and the
// Prometheus scrape endpoint.
func newAdminServer(addr string, m *observe.Metrics, connected func() bool, gw tts.Gateway) *http.Server {
	mux := http.NewServeMux()
	health.New(
		health.Discord(connected),
		health.SynthesisGateway(gw),
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(m)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// sessionRegistry is the slice of *voice.Registry the instrumentation
// wraps. Narrowed to an interface so tests can substitute a fake.
type sessionRegistry interface {
	Join(guildID, channelID string) (*voice.Session, error)
	Leave(guildID string) bool
	Drop(guildID string)
	SetMute(guildID string, mute bool) error
	SetDeaf(guildID string, deaf bool) error
	Len() int
}

// instrumentedSessions keeps the active-session gauge in step with the
// registry. It is handed to the command layer and the voice-state watcher so
// every session create/teardown path moves the gauge.
type instrumentedSessions struct {
	reg     sessionRegistry
	metrics *observe.Metrics
}

func (s *instrumentedSessions) Join(guildID, channelID string) (*voice.Session, error) {
	before := s.reg.Len()
	sess, err := s.reg.Join(guildID, channelID)
	s.adjust(before)
	return sess, err
}

func (s *instrumentedSessions) Leave(guildID string) bool {
	before := s.reg.Len()
	ok := s.reg.Leave(guildID)
	s.adjust(before)
	return ok
}

func (s *instrumentedSessions) Drop(guildID string) {
	before := s.reg.Len()
	s.reg.Drop(guildID)
	s.adjust(before)
}

func (s *instrumentedSessions) SetMute(guildID string, mute bool) error {
	return s.reg.SetMute(guildID, mute)
}

func (s *instrumentedSessions) SetDeaf(guildID string, deaf bool) error {
	return s.reg.SetDeaf(guildID, deaf)
}

func (s *instrumentedSessions) Len() int {
	return s.reg.Len()
}

func (s *instrumentedSessions) adjust(before int) {
	if delta := s.reg.Len() - before; delta != 0 {
		s.metrics.ActiveSessions.Add(context.Background(), int64(delta))
	}
}
