package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"
	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/sayso/internal/discord"
	"github.com/MrWong99/sayso/internal/profile"
	"github.com/MrWong99/sayso/pkg/tts"
)

const (
	// catalogueTTL bounds how long a fetched voice catalogue is reused
	// before the gateway is asked again.
	catalogueTTL = 15 * time.Minute

	// commandTimeout bounds gateway calls made from command handlers.
	commandTimeout = 10 * time.Second

	// maxSuggestions is the number of "did you mean" entries offered on a
	// failed voice lookup.
	maxSuggestions = 3

	// maxChoices is Discord's cap on autocomplete choices per response.
	maxChoices = 25

	// suggestionFloor is the minimum Jaro-Winkler similarity for a
	// catalogue entry to count as a plausible typo of the input.
	suggestionFloor = 0.7
)

// VoiceCommands holds the dependencies for the /register, /unregister and
// /voices commands.
type VoiceCommands struct {
	profiles  *profile.Store
	catalogue *catalogueCache
}

// NewVoiceCommands creates a VoiceCommands and registers its handlers with
// the bot's router.
func NewVoiceCommands(bot *discord.Bot, profiles *profile.Store, gateway tts.Gateway) *VoiceCommands {
	c := &VoiceCommands{
		profiles:  profiles,
		catalogue: newCatalogueCache(gateway, catalogueTTL),
	}
	c.Register(bot.Router())
	return c
}

// Register registers the voice profile commands with the router.
func (c *VoiceCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("register", c.registerDefinition(), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		c.register(ctx, s, i)
	})
	router.RegisterAutocomplete("register", func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		c.autocomplete(ctx, s, i)
	})
	router.RegisterCommand("unregister", c.unregisterDefinition(), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		c.unregister(s, i)
	})
	router.RegisterCommand("voices", c.voicesDefinition(), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		c.voices(ctx, s, i)
	})
}

func (c *VoiceCommands) registerDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "register",
		Description: "Choose the voice your messages are spoken with",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "voice",
				Description:  "Voice name from the catalogue (e.g., en-US-Wavenet-I)",
				Required:     true,
				Autocomplete: true,
			},
		},
	}
}

func (c *VoiceCommands) unregisterDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "unregister",
		Description: "Remove your registered voice",
	}
}

func (c *VoiceCommands) voicesDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "voices",
		Description: "Browse the available voices",
	}
}

// register handles /register voice:<name>.
func (c *VoiceCommands) register(ctx context.Context, r discord.Responder, i *discordgo.InteractionCreate) {
	discord.DeferReply(r, i)

	catalogue, err := c.catalogue.Get(ctx)
	if err != nil {
		discord.FollowUp(r, i, "The voice catalogue is unavailable right now, please try again later.")
		return
	}

	name := stringOption(i.ApplicationCommandData(), "voice")
	v, ok := tts.MatchVoice(catalogue, name)
	if !ok {
		msg := fmt.Sprintf("Unknown voice %q.", name)
		if suggestions := closestVoices(catalogue, name, maxSuggestions); len(suggestions) > 0 {
			msg += " Did you mean: " + strings.Join(suggestions, ", ") + "?"
		}
		msg += " Use /voices to browse the catalogue."
		discord.FollowUp(r, i, msg)
		return
	}

	userID := discord.InteractionUserID(i)
	if !c.profiles.SetIfAbsent(userID, v) {
		discord.FollowUp(r, i, "You already have a registered voice. Use /unregister first to change it.")
		return
	}
	discord.FollowUp(r, i, fmt.Sprintf("Registered **%s** (%s). Your messages in the linked channel will be spoken with it.", v.Name, v.LanguageCode))
}

// autocomplete answers /register voice autocompletion from the cached
// catalogue.
func (c *VoiceCommands) autocomplete(ctx context.Context, r discord.Responder, i *discordgo.InteractionCreate) {
	catalogue, err := c.catalogue.Get(ctx)
	if err != nil {
		discord.RespondChoices(r, i, nil)
		return
	}

	typed := strings.ToLower(focusedOption(i.ApplicationCommandData()))
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, v := range catalogue {
		if typed != "" && !strings.Contains(strings.ToLower(v.Name), typed) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%s (%s)", v.Name, v.LanguageCode),
			Value: v.Name,
		})
		if len(choices) == maxChoices {
			break
		}
	}
	discord.RespondChoices(r, i, choices)
}

// unregister handles /unregister.
func (c *VoiceCommands) unregister(r discord.Responder, i *discordgo.InteractionCreate) {
	if !c.profiles.Clear(discord.InteractionUserID(i)) {
		discord.RespondEphemeral(r, i, "You have no registered voice.")
		return
	}
	discord.RespondEphemeral(r, i, "Your voice registration was removed.")
}

// voices handles /voices.
func (c *VoiceCommands) voices(ctx context.Context, r discord.Responder, i *discordgo.InteractionCreate) {
	discord.DeferReply(r, i)

	catalogue, err := c.catalogue.Get(ctx)
	if err != nil {
		discord.FollowUp(r, i, "The voice catalogue is unavailable right now, please try again later.")
		return
	}
	discord.FollowUpEmbed(r, i, voicesEmbed(catalogue))
}

// voicesEmbed renders the catalogue as one embed field per language.
func voicesEmbed(catalogue []tts.Voice) *discordgo.MessageEmbed {
	byLang := make(map[string][]string)
	for _, v := range catalogue {
		byLang[v.LanguageCode] = append(byLang[v.LanguageCode], v.Name)
	}
	langs := make([]string, 0, len(byLang))
	for lang := range byLang {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Available voices (%d)", len(catalogue)),
		Description: "Register one with /register.",
	}
	for _, lang := range langs {
		names := byLang[lang]
		sort.Strings(names)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  lang,
			Value: joinLimited(names, ", ", 1024),
		})
	}
	return embed
}

// joinLimited joins parts with sep, truncating with an ellipsis before the
// result would exceed limit. Discord caps embed field values at 1024 runes.
func joinLimited(parts []string, sep string, limit int) string {
	var b strings.Builder
	for n, p := range parts {
		add := len(p)
		if n > 0 {
			add += len(sep)
		}
		if b.Len()+add+1 > limit {
			b.WriteString("…")
			break
		}
		if n > 0 {
			b.WriteString(sep)
		}
		b.WriteString(p)
	}
	return b.String()
}

// closestVoices returns up to n catalogue voice names ranked by Jaro-Winkler
// similarity to name, skipping entries below the suggestion floor.
func closestVoices(catalogue []tts.Voice, name string, n int) []string {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return nil
	}

	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	for _, v := range catalogue {
		score := matchr.JaroWinkler(want, strings.ToLower(v.Name), false)
		if score >= suggestionFloor {
			candidates = append(candidates, scored{name: v.Name, score: score})
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	names := make([]string, len(candidates))
	for idx, c := range candidates {
		names[idx] = c.name
	}
	return names
}

// catalogueCache memoises the gateway's voice catalogue so autocomplete and
// repeated registrations do not hammer the synthesis backend.
type catalogueCache struct {
	gateway tts.Gateway
	ttl     time.Duration

	// fetchMu serialises refreshes; mu guards only the cached slice, so
	// readers never wait on an in-flight network call.
	fetchMu sync.Mutex
	mu      sync.Mutex
	voices  []tts.Voice
	fetched time.Time
}

func newCatalogueCache(gateway tts.Gateway, ttl time.Duration) *catalogueCache {
	return &catalogueCache{gateway: gateway, ttl: ttl}
}

// Get returns the cached catalogue, refreshing it from the gateway once the
// TTL has passed. At most one refresh is in flight at a time; callers that
// arrive during one pick up its result instead of fetching again. A refresh
// failure serves the stale catalogue when one exists.
func (c *catalogueCache) Get(ctx context.Context) ([]tts.Voice, error) {
	if voices, ok := c.cached(); ok {
		return voices, nil
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	// A concurrent caller may have refreshed while this one waited.
	if voices, ok := c.cached(); ok {
		return voices, nil
	}

	voices, err := c.gateway.ListVoices(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if len(c.voices) > 0 {
			return c.voices, nil
		}
		return nil, fmt.Errorf("commands: fetch voice catalogue: %w", err)
	}
	c.voices = voices
	c.fetched = time.Now()
	return c.voices, nil
}

// cached returns the catalogue when it is present and within its TTL.
func (c *catalogueCache) cached() ([]tts.Voice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.voices) > 0 && time.Since(c.fetched) < c.ttl {
		return c.voices, true
	}
	return nil, false
}
