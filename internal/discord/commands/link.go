// Package commands implements Discord slash command handlers for Sayso.
package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/sayso/internal/binding"
	"github.com/MrWong99/sayso/internal/discord"
)

// LinkCommands holds the dependencies for the /link and /unlink commands.
type LinkCommands struct {
	bindings *binding.Store
}

// NewLinkCommands creates a LinkCommands and registers its handlers with the
// bot's router.
func NewLinkCommands(bot *discord.Bot, bindings *binding.Store) *LinkCommands {
	c := &LinkCommands{bindings: bindings}
	c.Register(bot.Router())
	return c
}

// Register registers the /link and /unlink commands with the router.
func (c *LinkCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("link", c.linkDefinition(), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.link(s, i)
	})
	router.RegisterCommand("unlink", c.unlinkDefinition(), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.unlink(s, i)
	})
}

func (c *LinkCommands) linkDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "link",
		Description: "Read messages from a text channel aloud in voice",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "Text channel to read (defaults to this one)",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
			},
		},
	}
}

func (c *LinkCommands) unlinkDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "unlink",
		Description: "Stop reading messages aloud on this server",
	}
}

// link handles /link.
func (c *LinkCommands) link(r discord.Responder, i *discordgo.InteractionCreate) {
	if !discord.InteractionInGuild(i) {
		discord.RespondEphemeral(r, i, "This command only works in a server.")
		return
	}

	target := i.ChannelID
	if opt, ok := optionMap(i.ApplicationCommandData())["channel"]; ok {
		target = opt.StringValue()
	}

	prev, replaced := c.bindings.Bind(i.GuildID, target)

	msg := fmt.Sprintf("Linked <#%s>. Messages there will now be read aloud.", target)
	if replaced && prev != target {
		msg += fmt.Sprintf(" The previous link to <#%s> was replaced.", prev)
	}
	discord.RespondEphemeral(r, i, msg)
}

// unlink handles /unlink.
func (c *LinkCommands) unlink(r discord.Responder, i *discordgo.InteractionCreate) {
	if !discord.InteractionInGuild(i) {
		discord.RespondEphemeral(r, i, "This command only works in a server.")
		return
	}

	if !c.bindings.Unbind(i.GuildID) {
		discord.RespondEphemeral(r, i, "No channel is linked on this server.")
		return
	}
	discord.RespondEphemeral(r, i, "Unlinked. Messages will no longer be read aloud.")
}
