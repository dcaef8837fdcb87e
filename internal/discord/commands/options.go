package commands

import "github.com/bwmarrin/discordgo"

// optionMap indexes an interaction's options by name.
func optionMap(data discordgo.ApplicationCommandInteractionData) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		opts[opt.Name] = opt
	}
	return opts
}

// stringOption returns the named option's string value, or empty when the
// option is absent.
func stringOption(data discordgo.ApplicationCommandInteractionData, name string) string {
	if opt, ok := optionMap(data)[name]; ok {
		return opt.StringValue()
	}
	return ""
}

// focusedOption returns the string value of the option currently being
// typed in an autocomplete interaction.
func focusedOption(data discordgo.ApplicationCommandInteractionData) string {
	for _, opt := range data.Options {
		if opt.Focused {
			return opt.StringValue()
		}
	}
	return ""
}
