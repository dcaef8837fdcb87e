// Package sanitize turns raw chat messages into text suitable for speech
// synthesis: URLs and channel references are removed, mention tokens are
// replaced by the mentioned user's display name. Sanitize is pure and
// idempotent; malformed tokens are left untouched.
package sanitize

import (
	"regexp"
	"strings"
)

// Mention pairs a user ID with the display name spoken in place of the
// mention token.
type Mention struct {
	ID   string
	Name string
}

var (
	// urlPattern matches scheme://rest tokens with a conservative scheme
	// class, so prose containing "://" garbage is left alone.
	urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s]+`)

	// channelPattern matches Discord channel reference tokens like <#123456>.
	channelPattern = regexp.MustCompile(`<#\d+>`)
)

// Sanitize produces speakable text from content. Processing order: URLs are
// stripped, channel references are stripped, then each supplied mention's
// token (both the <@!id> and <@id> forms) is replaced with the display name.
// Tokens are removed without collapsing surrounding whitespace.
func Sanitize(content string, mentions []Mention) string {
	out := urlPattern.ReplaceAllString(content, "")
	out = channelPattern.ReplaceAllString(out, "")
	for _, m := range mentions {
		if m.ID == "" {
			continue
		}
		out = strings.ReplaceAll(out, "<@!"+m.ID+">", m.Name)
		out = strings.ReplaceAll(out, "<@"+m.ID+">", m.Name)
	}
	return out
}
