package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; changes to the
// Discord token or the synthesis gateways require a restart and are reported
// through RestartRequired instead.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	PrefixChanged bool
	NewPrefix     string

	DenylistChanged bool
	NewDenylist     []string

	// RestartRequired is set when a non-reloadable field changed.
	RestartRequired bool
}

// Changed reports whether any hot-reloadable field differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PrefixChanged || d.DenylistChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Discord.CommandPrefix != new.Discord.CommandPrefix {
		d.PrefixChanged = true
		d.NewPrefix = new.Discord.CommandPrefix
	}

	if !slices.Equal(old.Discord.Denylist, new.Discord.Denylist) {
		d.DenylistChanged = true
		d.NewDenylist = slices.Clone(new.Discord.Denylist)
	}

	if old.Discord.Token != new.Discord.Token ||
		old.Discord.GuildID != new.Discord.GuildID ||
		old.Server.ListenAddr != new.Server.ListenAddr ||
		!synthesisEqual(old.Synthesis, new.Synthesis) {
		d.RestartRequired = true
	}

	return d
}

func synthesisEqual(a, b SynthesisConfig) bool {
	if a.Timeout != b.Timeout || len(a.Fallbacks) != len(b.Fallbacks) {
		return false
	}
	if !entryEqual(a.Primary, b.Primary) {
		return false
	}
	for i := range a.Fallbacks {
		if !entryEqual(a.Fallbacks[i], b.Fallbacks[i]) {
			return false
		}
	}
	return true
}

// entryEqual compares the fields that feed gateway construction. Options
// maps are not compared; treat option edits as a name/key change and restart.
func entryEqual(a, b GatewayEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}
