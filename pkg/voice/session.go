package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/sayso/pkg/tts"
)

// ErrPlayback is the sentinel wrapped when the voice transport rejects audio
// mid-playback.
var ErrPlayback = errors.New("voice: playback failure")

// ErrInterrupted is returned by [Session.Play] when a later Play call replaced
// the clip before it finished. The later call won; the caller of the losing
// Play must not count the clip as fully played.
var ErrInterrupted = errors.New("voice: playback interrupted")

// Session is the handle to one guild's live outbound audio connection. It
// outlives individual playbacks and is destroyed only by an explicit leave or
// a transport disconnect, never by a playback finishing.
//
// At most one playback is active per session; submitting a new clip while one
// is playing replaces it (latest wins, no queueing). Session is safe for
// concurrent use.
type Session struct {
	guildID   string
	channelID string

	mu         sync.Mutex
	muted      bool
	deafened   bool
	playCancel context.CancelFunc
	playDone   chan struct{}

	done      chan struct{}
	closeOnce sync.Once

	// Transport seams. Wired to the discordgo voice connection in
	// newSession; overridden in tests.
	opusSend    chan<- []byte
	speaking    func(bool) error
	updateVoice func(mute, deaf bool) error
	disconnect  func() error
}

// newSession wraps an established discordgo voice connection.
func newSession(vc *discordgo.VoiceConnection, ds *discordgo.Session, guildID, channelID string) *Session {
	return &Session{
		guildID:   guildID,
		channelID: channelID,
		done:      make(chan struct{}),
		opusSend:  vc.OpusSend,
		speaking:  vc.Speaking,
		updateVoice: func(mute, deaf bool) error {
			return ds.ChannelVoiceJoinManual(guildID, channelID, mute, deaf)
		},
		disconnect: vc.Disconnect,
	}
}

// GuildID returns the guild this session belongs to.
func (s *Session) GuildID() string { return s.guildID }

// ChannelID returns the voice channel the session is connected to.
func (s *Session) ChannelID() string { return s.channelID }

// Muted reports the confirmed self-mute state.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Deafened reports the confirmed self-deaf state.
func (s *Session) Deafened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deafened
}

// SetMute toggles self-mute. The local flag changes only after the transport
// accepts the update; a transport failure leaves the state untouched.
func (s *Session) SetMute(mute bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return ErrNoSession
	}
	if err := s.updateVoice(mute, s.deafened); err != nil {
		return fmt.Errorf("voice: set mute: %w", err)
	}
	s.muted = mute
	return nil
}

// SetDeaf toggles self-deafen. Same transport-first discipline as [Session.SetMute].
func (s *Session) SetDeaf(deaf bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return ErrNoSession
	}
	if err := s.updateVoice(s.muted, deaf); err != nil {
		return fmt.Errorf("voice: set deaf: %w", err)
	}
	s.deafened = deaf
	return nil
}

// Play submits a clip for playback, replacing any playback already in flight.
// It blocks until the clip finishes, the session is closed (ErrNoSession), the
// clip is replaced by a later Play call (ErrInterrupted), or ctx is cancelled.
func (s *Session) Play(ctx context.Context, clip tts.Clip) error {
	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		return ErrNoSession
	}
	prevCancel, prevDone := s.playCancel, s.playDone

	playCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.playCancel, s.playDone = cancel, done
	s.mu.Unlock()

	// Take over: stop the current playback and wait for its goroutine to
	// drain so two clips never interleave on the opus stream.
	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	defer close(done)
	defer cancel()

	return s.stream(ctx, playCtx, clip)
}

// stream encodes the clip into 20 ms opus frames and paces them onto the
// transport. playCtx cancellation means a later Play replaced this one.
func (s *Session) stream(ctx, playCtx context.Context, clip tts.Clip) error {
	enc, err := newOpusEncoder()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}

	pcm := convertClip(clip)
	if len(pcm) == 0 {
		return nil
	}
	// Pad the trailing partial frame with silence.
	if rem := len(pcm) % opusFrameBytes; rem != 0 {
		pcm = append(pcm, make([]byte, opusFrameBytes-rem)...)
	}

	if err := s.speaking(true); err != nil {
		return fmt.Errorf("%w: speaking notification: %w", ErrPlayback, err)
	}
	defer func() {
		if err := s.speaking(false); err != nil {
			slog.Warn("voice: speaking notification error", "guild_id", s.guildID, "error", err)
		}
	}()

	ticker := time.NewTicker(opusFrameSizeMs * time.Millisecond)
	defer ticker.Stop()

	for off := 0; off+opusFrameBytes <= len(pcm); off += opusFrameBytes {
		packet, encErr := enc.encode(pcm[off : off+opusFrameBytes])
		if encErr != nil {
			slog.Warn("voice: opus encode error, dropping frame", "guild_id", s.guildID, "error", encErr)
			continue
		}

		select {
		case <-playCtx.Done():
			return ErrInterrupted
		case <-s.done:
			return ErrNoSession
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrPlayback, ctx.Err())
		case <-ticker.C:
		}

		select {
		case s.opusSend <- packet:
		case <-playCtx.Done():
			return ErrInterrupted
		case <-s.done:
			return ErrNoSession
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrPlayback, ctx.Err())
		}
	}
	return nil
}

// Close tears the session down: the active playback is cancelled and the
// transport connection is dropped. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		cancel := s.playCancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		if s.disconnect != nil {
			err = s.disconnect()
		}
	})
	return err
}

// isClosed must be called with s.mu held or from a context where racing with
// Close is acceptable.
func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
