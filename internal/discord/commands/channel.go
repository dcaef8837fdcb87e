package commands

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/sayso/internal/discord"
	"github.com/MrWong99/sayso/pkg/voice"
)

// VoiceSessions is the slice of the voice session registry used by the
// channel commands.
type VoiceSessions interface {
	Join(guildID, channelID string) (*voice.Session, error)
	Leave(guildID string) bool
	SetMute(guildID string, mute bool) error
	SetDeaf(guildID string, deaf bool) error
}

// ChannelCommands holds the dependencies for the voice channel lifecycle
// commands: /join, /leave, /mute, /unmute, /deafen and /undeafen.
type ChannelCommands struct {
	sessions VoiceSessions

	// voiceChannelOf resolves the voice channel a user currently occupies.
	// Overridden in tests.
	voiceChannelOf func(s *discordgo.Session, guildID, userID string) string
}

// NewChannelCommands creates a ChannelCommands and registers its handlers
// with the bot's router.
func NewChannelCommands(bot *discord.Bot, sessions VoiceSessions) *ChannelCommands {
	c := &ChannelCommands{
		sessions:       sessions,
		voiceChannelOf: stateVoiceChannel,
	}
	c.Register(bot.Router())
	return c
}

// Register registers the channel lifecycle commands with the router.
func (c *ChannelCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("join", command("join", "Join your current voice channel"), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.join(s, i, c.voiceChannelOf(s, i.GuildID, discord.InteractionUserID(i)))
	})
	router.RegisterCommand("leave", command("leave", "Leave the voice channel"), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.leave(s, i)
	})
	router.RegisterCommand("mute", command("mute", "Mute the bot in the voice channel"), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.setMute(s, i, true)
	})
	router.RegisterCommand("unmute", command("unmute", "Unmute the bot in the voice channel"), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.setMute(s, i, false)
	})
	router.RegisterCommand("deafen", command("deafen", "Deafen the bot in the voice channel"), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.setDeaf(s, i, true)
	})
	router.RegisterCommand("undeafen", command("undeafen", "Undeafen the bot in the voice channel"), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.setDeaf(s, i, false)
	})
}

// command builds a plain top-level command definition.
func command(name, description string) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: name, Description: description}
}

// stateVoiceChannel looks up a user's current voice channel in the session
// state cache. Returns empty when the user is not in voice.
func stateVoiceChannel(s *discordgo.Session, guildID, userID string) string {
	if s == nil || s.State == nil {
		return ""
	}
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

// join handles /join. channelID is the invoker's current voice channel,
// already resolved by the caller.
func (c *ChannelCommands) join(r discord.Responder, i *discordgo.InteractionCreate, channelID string) {
	if !discord.InteractionInGuild(i) {
		discord.RespondEphemeral(r, i, "This command only works in a server.")
		return
	}
	if channelID == "" {
		discord.RespondEphemeral(r, i, "You must be in a voice channel to use /join.")
		return
	}

	// Connecting involves a voice gateway handshake, so answer deferred.
	discord.DeferReply(r, i)

	_, err := c.sessions.Join(i.GuildID, channelID)
	switch {
	case errors.Is(err, voice.ErrAlreadyConnected):
		discord.FollowUp(r, i, "I'm already in another voice channel on this server. Use /leave first.")
	case err != nil:
		discord.FollowUp(r, i, fmt.Sprintf("Failed to join the voice channel: %v", err))
	default:
		discord.FollowUp(r, i, fmt.Sprintf("Joined <#%s>.", channelID))
	}
}

// leave handles /leave.
func (c *ChannelCommands) leave(r discord.Responder, i *discordgo.InteractionCreate) {
	if !discord.InteractionInGuild(i) {
		discord.RespondEphemeral(r, i, "This command only works in a server.")
		return
	}

	if !c.sessions.Leave(i.GuildID) {
		discord.RespondEphemeral(r, i, "I'm not in a voice channel on this server.")
		return
	}
	discord.RespondEphemeral(r, i, "Left the voice channel.")
}

// setMute handles /mute and /unmute.
func (c *ChannelCommands) setMute(r discord.Responder, i *discordgo.InteractionCreate, mute bool) {
	if !discord.InteractionInGuild(i) {
		discord.RespondEphemeral(r, i, "This command only works in a server.")
		return
	}

	err := c.sessions.SetMute(i.GuildID, mute)
	switch {
	case errors.Is(err, voice.ErrNoSession):
		discord.RespondEphemeral(r, i, "I'm not in a voice channel on this server.")
	case err != nil:
		discord.RespondError(r, i, err)
	case mute:
		discord.RespondEphemeral(r, i, "Muted.")
	default:
		discord.RespondEphemeral(r, i, "Unmuted.")
	}
}

// setDeaf handles /deafen and /undeafen.
func (c *ChannelCommands) setDeaf(r discord.Responder, i *discordgo.InteractionCreate, deaf bool) {
	if !discord.InteractionInGuild(i) {
		discord.RespondEphemeral(r, i, "This command only works in a server.")
		return
	}

	err := c.sessions.SetDeaf(i.GuildID, deaf)
	switch {
	case errors.Is(err, voice.ErrNoSession):
		discord.RespondEphemeral(r, i, "I'm not in a voice channel on this server.")
	case err != nil:
		discord.RespondError(r, i, err)
	case deaf:
		discord.RespondEphemeral(r, i, "Deafened.")
	default:
		discord.RespondEphemeral(r, i, "Undeafened.")
	}
}
