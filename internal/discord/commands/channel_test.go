package commands

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/sayso/internal/discord/mock"
	"github.com/MrWong99/sayso/pkg/voice"
)

// fakeSessions is a VoiceSessions double recording calls.
type fakeSessions struct {
	joinErr     error
	joinedGuild string
	joinedChan  string

	leaveResult bool
	leftGuild   string

	toggleErr error
	lastMute  *bool
	lastDeaf  *bool
}

func (f *fakeSessions) Join(guildID, channelID string) (*voice.Session, error) {
	f.joinedGuild, f.joinedChan = guildID, channelID
	return nil, f.joinErr
}

func (f *fakeSessions) Leave(guildID string) bool {
	f.leftGuild = guildID
	return f.leaveResult
}

func (f *fakeSessions) SetMute(guildID string, mute bool) error {
	if f.toggleErr != nil {
		return f.toggleErr
	}
	f.lastMute = &mute
	return nil
}

func (f *fakeSessions) SetDeaf(guildID string, deaf bool) error {
	if f.toggleErr != nil {
		return f.toggleErr
	}
	f.lastDeaf = &deaf
	return nil
}

func TestJoin_Success(t *testing.T) {
	t.Parallel()

	fs := &fakeSessions{}
	c := &ChannelCommands{sessions: fs}
	m := &mock.InteractionResponder{}

	c.join(m, commandInteraction("join", "g1", "c1", "u1"), "vc1")

	if fs.joinedGuild != "g1" || fs.joinedChan != "vc1" {
		t.Errorf("Join(%q, %q), want g1/vc1", fs.joinedGuild, fs.joinedChan)
	}
	if fu := m.LastFollowUp(); fu == nil || !strings.Contains(fu.Content, "<#vc1>") {
		t.Errorf("follow-up = %+v, want joined confirmation", fu)
	}
}

func TestJoin_NotInVoice(t *testing.T) {
	t.Parallel()

	fs := &fakeSessions{}
	c := &ChannelCommands{sessions: fs}
	m := &mock.InteractionResponder{}

	c.join(m, commandInteraction("join", "g1", "c1", "u1"), "")

	if content := responseContent(m.LastResponse()); !strings.Contains(content, "voice channel") {
		t.Errorf("response = %q, want not-in-voice notice", content)
	}
	if fs.joinedGuild != "" {
		t.Error("Join must not be attempted without a voice channel")
	}
}

func TestJoin_AlreadyConnected(t *testing.T) {
	t.Parallel()

	fs := &fakeSessions{joinErr: voice.ErrAlreadyConnected}
	c := &ChannelCommands{sessions: fs}
	m := &mock.InteractionResponder{}

	c.join(m, commandInteraction("join", "g1", "c1", "u1"), "vc2")

	if fu := m.LastFollowUp(); fu == nil || !strings.Contains(fu.Content, "/leave") {
		t.Errorf("follow-up = %+v, want leave-first hint", fu)
	}
}

func TestJoin_ConnectError(t *testing.T) {
	t.Parallel()

	fs := &fakeSessions{joinErr: errors.New("gateway handshake timed out")}
	c := &ChannelCommands{sessions: fs}
	m := &mock.InteractionResponder{}

	c.join(m, commandInteraction("join", "g1", "c1", "u1"), "vc1")

	if fu := m.LastFollowUp(); fu == nil || !strings.Contains(fu.Content, "Failed to join") {
		t.Errorf("follow-up = %+v, want failure notice", fu)
	}
}

func TestLeave(t *testing.T) {
	t.Parallel()

	fs := &fakeSessions{leaveResult: true}
	c := &ChannelCommands{sessions: fs}
	m := &mock.InteractionResponder{}

	c.leave(m, commandInteraction("leave", "g1", "c1", "u1"))

	if fs.leftGuild != "g1" {
		t.Errorf("Leave(%q), want g1", fs.leftGuild)
	}
	if content := responseContent(m.LastResponse()); !strings.Contains(content, "Left") {
		t.Errorf("response = %q, want leave confirmation", content)
	}
}

func TestLeave_NoSession(t *testing.T) {
	t.Parallel()

	c := &ChannelCommands{sessions: &fakeSessions{leaveResult: false}}
	m := &mock.InteractionResponder{}

	c.leave(m, commandInteraction("leave", "g1", "c1", "u1"))

	if content := responseContent(m.LastResponse()); !strings.Contains(content, "not in a voice channel") {
		t.Errorf("response = %q, want no-session notice", content)
	}
}

func TestMuteUnmute(t *testing.T) {
	t.Parallel()

	fs := &fakeSessions{}
	c := &ChannelCommands{sessions: fs}
	m := &mock.InteractionResponder{}

	c.setMute(m, commandInteraction("mute", "g1", "c1", "u1"), true)
	if fs.lastMute == nil || !*fs.lastMute {
		t.Fatal("SetMute(true) not forwarded")
	}
	if content := responseContent(m.LastResponse()); !strings.Contains(content, "Muted") {
		t.Errorf("response = %q", content)
	}

	c.setMute(m, commandInteraction("unmute", "g1", "c1", "u1"), false)
	if fs.lastMute == nil || *fs.lastMute {
		t.Fatal("SetMute(false) not forwarded")
	}
}

func TestDeafen_NoSession(t *testing.T) {
	t.Parallel()

	c := &ChannelCommands{sessions: &fakeSessions{toggleErr: voice.ErrNoSession}}
	m := &mock.InteractionResponder{}

	c.setDeaf(m, commandInteraction("deafen", "g1", "c1", "u1"), true)

	if content := responseContent(m.LastResponse()); !strings.Contains(content, "not in a voice channel") {
		t.Errorf("response = %q, want no-session notice", content)
	}
}

func TestJoin_RejectsDM(t *testing.T) {
	t.Parallel()

	fs := &fakeSessions{}
	c := &ChannelCommands{sessions: fs}
	m := &mock.InteractionResponder{}

	c.join(m, dmInteraction("join", "u1"), "vc1")

	if content := responseContent(m.LastResponse()); !strings.Contains(content, "server") {
		t.Errorf("response = %q, want guild-only notice", content)
	}
	if fs.joinedGuild != "" {
		t.Error("Join must not be attempted from a DM")
	}
}
