package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/sayso/pkg/tts"
)

var (
	// ErrNoSession means no live voice session exists for the guild.
	ErrNoSession = errors.New("voice: no session for guild")
	// ErrAlreadyConnected means the guild already has a session in a
	// different voice channel.
	ErrAlreadyConnected = errors.New("voice: already connected to another channel")
)

// Registry tracks at most one live [Session] per guild.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// connect establishes the transport-level voice connection. Wired to
	// discordgo in NewRegistry; overridden in tests.
	connect func(guildID, channelID string) (*Session, error)
}

// NewRegistry creates a registry that opens voice connections on ds.
func NewRegistry(ds *discordgo.Session) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		connect: func(guildID, channelID string) (*Session, error) {
			vc, err := ds.ChannelVoiceJoin(guildID, channelID, false, false)
			if err != nil {
				return nil, err
			}
			return newSession(vc, ds, guildID, channelID), nil
		},
	}
}

// Get returns the guild's session, if any.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[guildID]
	return s, ok && s != nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Join connects the bot to a voice channel and registers the session. Joining
// the channel the guild is already connected to is a no-op returning the
// existing session; a different channel returns ErrAlreadyConnected — callers
// must Leave first.
func (r *Registry) Join(guildID, channelID string) (*Session, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[guildID]; ok {
		r.mu.Unlock()
		if existing.ChannelID() == channelID {
			return existing, nil
		}
		return nil, ErrAlreadyConnected
	}
	// Reserve the slot so concurrent Joins for the same guild don't open
	// two transport connections.
	r.sessions[guildID] = nil
	r.mu.Unlock()

	s, err := r.connect(guildID, channelID)

	r.mu.Lock()
	if err != nil {
		delete(r.sessions, guildID)
		r.mu.Unlock()
		return nil, fmt.Errorf("voice: join guild %s: %w", guildID, err)
	}
	r.sessions[guildID] = s
	r.mu.Unlock()
	return s, nil
}

// Leave tears down the guild's session. It reports whether a session existed.
func (r *Registry) Leave(guildID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	if ok {
		delete(r.sessions, guildID)
	}
	r.mu.Unlock()
	if !ok || s == nil {
		return false
	}
	// The session is already unregistered; a transport error on disconnect
	// is not actionable for the caller.
	_ = s.Close()
	return true
}

// Drop removes a session whose transport disconnected externally (kicked from
// the channel, gateway reconnect). Unlike Leave it does not initiate a
// disconnect handshake beyond closing the local handle.
func (r *Registry) Drop(guildID string) {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	delete(r.sessions, guildID)
	r.mu.Unlock()
	if ok && s != nil {
		_ = s.Close()
	}
}

// Play plays a clip on the guild's session, replacing any in-flight playback.
// Returns ErrNoSession when the guild has no live session.
func (r *Registry) Play(ctx context.Context, guildID string, clip tts.Clip) error {
	r.mu.RLock()
	s := r.sessions[guildID]
	r.mu.RUnlock()
	if s == nil {
		return ErrNoSession
	}
	return s.Play(ctx, clip)
}

// SetMute toggles self-mute on the guild's session. Returns ErrNoSession
// when the guild has no live session.
func (r *Registry) SetMute(guildID string, mute bool) error {
	r.mu.RLock()
	s := r.sessions[guildID]
	r.mu.RUnlock()
	if s == nil {
		return ErrNoSession
	}
	return s.SetMute(mute)
}

// SetDeaf toggles self-deafen on the guild's session. Returns ErrNoSession
// when the guild has no live session.
func (r *Registry) SetDeaf(guildID string, deaf bool) error {
	r.mu.RLock()
	s := r.sessions[guildID]
	r.mu.RUnlock()
	if s == nil {
		return ErrNoSession
	}
	return s.SetDeaf(deaf)
}

// CloseAll tears down every session. Used during shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s != nil {
			sessions = append(sessions, s)
		}
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}
