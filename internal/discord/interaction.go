package discord

import "github.com/bwmarrin/discordgo"

// InteractionUserID extracts the invoking user's ID, handling both guild
// (Member) and DM (User) contexts. Returns empty when neither is set.
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// InteractionInGuild reports whether the interaction was invoked from a
// guild. Every Sayso command is guild-scoped; handlers reject DM invocations
// up front.
func InteractionInGuild(i *discordgo.InteractionCreate) bool {
	return i.GuildID != ""
}
