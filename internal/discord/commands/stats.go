package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/sayso/internal/discord"
	"github.com/MrWong99/sayso/internal/orchestrator"
)

// SessionCounter reports the number of live voice sessions. Implemented by
// the voice session registry.
type SessionCounter interface {
	Len() int
}

// StatsCommands holds the dependencies for the /ping and /stats commands.
type StatsCommands struct {
	pipeline *orchestrator.Stats
	sessions SessionCounter
	started  time.Time
}

// NewStatsCommands creates a StatsCommands and registers its handlers with
// the bot's router.
func NewStatsCommands(bot *discord.Bot, pipeline *orchestrator.Stats, sessions SessionCounter) *StatsCommands {
	c := &StatsCommands{
		pipeline: pipeline,
		sessions: sessions,
		started:  time.Now(),
	}
	c.Register(bot.Router())
	return c
}

// Register registers the /ping and /stats commands with the router.
func (c *StatsCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("ping", command("ping", "Check that the bot is alive"), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.ping(s, i, s.HeartbeatLatency())
	})
	router.RegisterCommand("stats", command("stats", "Show pipeline statistics"), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.stats(s, i)
	})
}

// ping handles /ping.
func (c *StatsCommands) ping(r discord.Responder, i *discordgo.InteractionCreate, latency time.Duration) {
	discord.RespondEphemeral(r, i, fmt.Sprintf("Pong! Gateway heartbeat: %s.", latency.Round(time.Millisecond)))
}

// stats handles /stats.
func (c *StatsCommands) stats(r discord.Responder, i *discordgo.InteractionCreate) {
	discord.RespondEmbed(r, i, c.statsEmbed())
}

// statsEmbed renders a snapshot of the pipeline statistics.
func (c *StatsCommands) statsEmbed() *discordgo.MessageEmbed {
	snap := c.pipeline.Snapshot()

	embed := &discordgo.MessageEmbed{
		Title: "Sayso statistics",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Messages", Value: formatOutcomes(snap.Outcomes), Inline: false},
			{Name: "Synthesis latency", Value: formatPercentiles(snap.Synthesis), Inline: true},
			{Name: "Playback duration", Value: formatPercentiles(snap.Playback), Inline: true},
			{Name: "Voice sessions", Value: fmt.Sprintf("%d", c.sessions.Len()), Inline: true},
			{Name: "Uptime", Value: time.Since(c.started).Round(time.Second).String(), Inline: true},
		},
	}
	return embed
}

// formatOutcomes renders per-outcome counters, one line each, stable order.
func formatOutcomes(outcomes map[orchestrator.Outcome]int64) string {
	keys := make([]orchestrator.Outcome, 0, len(outcomes))
	var total int64
	for o, n := range outcomes {
		keys = append(keys, o)
		total += n
	}
	if total == 0 {
		return "no messages processed yet"
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	lines := make([]string, 0, len(keys)+1)
	lines = append(lines, fmt.Sprintf("total: %d", total))
	for _, o := range keys {
		if outcomes[o] == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %d", o, outcomes[o]))
	}
	return strings.Join(lines, "\n")
}

// formatPercentiles renders a latency stage's p50/p95 pair.
func formatPercentiles(p orchestrator.LatencyPercentiles) string {
	if p.P50 == 0 && p.P95 == 0 {
		return "no samples yet"
	}
	return fmt.Sprintf("p50 %s / p95 %s", p.P50.Round(time.Millisecond), p.P95.Round(time.Millisecond))
}
