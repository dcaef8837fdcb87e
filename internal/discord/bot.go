// Package discord provides the Discord bot layer for Sayso. It owns the
// discordgo.Session lifecycle, routes slash command interactions to
// registered handlers, and feeds guild text messages into the speech
// pipeline.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/sayso/internal/orchestrator"
	"github.com/MrWong99/sayso/internal/sanitize"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token (e.g., "Bot MTIz...").
	Token string `yaml:"token"`

	// GuildID, when set, scopes slash command registration to a single
	// guild. Empty registers commands globally.
	GuildID string `yaml:"guild_id"`
}

// MessageSink consumes guild text messages. Implemented by the
// orchestrator's pipeline entry point.
type MessageSink interface {
	HandleMessage(ctx context.Context, ev orchestrator.MessageEvent) orchestrator.Outcome
}

// SessionDropper discards playback state for a guild after the voice
// connection is gone. Implemented by the voice session registry.
type SessionDropper interface {
	Drop(guildID string)
}

// Bot owns the Discord gateway connection. It routes interactions to
// registered command handlers, dispatches guild messages to the pipeline,
// and reconciles the session registry when the bot is disconnected from a
// voice channel externally.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	router    *CommandRouter
	guildID   string
	commands  []*discordgo.ApplicationCommand
	messages  MessageSink
	sessions  SessionDropper
	connected atomic.Bool
	closeOnce sync.Once
}

// New creates a Bot, connects to Discord, and registers the gateway event
// handlers. Messages and sessions may be nil when the corresponding events
// should be ignored (used in tests).
func New(cfg Config, messages MessageSink, sessions SessionDropper) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	b := &Bot{
		session:  session,
		router:   NewCommandRouter(),
		guildID:  cfg.GuildID,
		messages: messages,
		sessions: sessions,
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(s, m)
	})
	session.AddHandler(func(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
		b.handleVoiceState(s, v)
	})
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Ready) {
		b.connected.Store(true)
	})
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		b.connected.Store(false)
	})

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	return b, nil
}

// Session returns the underlying discordgo session. Used by subsystems that
// need direct Discord API access (e.g., voice channel joins).
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// GuildID returns the configured command registration guild, or empty for
// global registration.
func (b *Bot) GuildID() string {
	return b.guildID
}

// Connected reports whether the gateway websocket is currently up.
func (b *Bot) Connected() bool {
	return b.connected.Load()
}

// Notify posts a plain text message to a channel. It satisfies the
// pipeline's notifier dependency.
func (b *Bot) Notify(ctx context.Context, channelID, text string) error {
	_, err := b.Session().ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send notification: %w", err)
	}
	return nil
}

// Run registers slash commands with the Discord API and blocks until ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered))
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord bot closed")
	})
	return closeErr
}

// handleMessage converts a gateway message event and hands it to the
// pipeline. Dispatch happens on a fresh goroutine so a slow synthesis call
// never stalls the gateway event loop.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if b.messages == nil || m.Author == nil {
		return
	}
	// Never speak our own notifications back.
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	ev := messageEvent(m)
	go b.messages.HandleMessage(context.Background(), ev)
}

// handleVoiceState watches for the bot itself leaving a voice channel
// (kicked, moved by an admin, channel deleted) and drops the guild's
// session so stale playback state cannot accumulate.
func (b *Bot) handleVoiceState(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if b.sessions == nil || s.State == nil || s.State.User == nil {
		return
	}
	if v.UserID != s.State.User.ID || v.ChannelID != "" {
		return
	}
	slog.Info("voice connection dropped externally", "guild_id", v.GuildID)
	b.sessions.Drop(v.GuildID)
}

// messageEvent maps a discordgo message to the pipeline's event type.
func messageEvent(m *discordgo.MessageCreate) orchestrator.MessageEvent {
	ev := orchestrator.MessageEvent{
		AuthorID:   m.Author.ID,
		AuthorName: displayName(m.Author),
		AuthorBot:  m.Author.Bot,
		GuildID:    m.GuildID,
		ChannelID:  m.ChannelID,
		Content:    m.Content,
	}
	for _, u := range m.Mentions {
		if u == nil {
			continue
		}
		ev.Mentions = append(ev.Mentions, sanitize.Mention{ID: u.ID, Name: displayName(u)})
	}
	return ev
}

// displayName picks the name spoken in place of a mention: the user's
// global display name when set, otherwise the username.
func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
