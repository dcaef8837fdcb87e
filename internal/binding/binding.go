// Package binding tracks which text channel feeds speech synthesis for each
// guild. A guild without a binding has the bridge disabled; binding a new
// channel replaces the previous one in a single atomic step.
package binding

import "github.com/MrWong99/sayso/internal/store"

// Store maps guild IDs to their linked text channel. All methods are safe for
// concurrent use.
type Store struct {
	channels *store.Keyed[string, string]
}

// NewStore returns an empty binding [Store].
func NewStore() *Store {
	return &Store{channels: store.NewKeyed[string, string]()}
}

// Bind links channelID as the speech-input channel for guildID, replacing any
// existing binding. It returns the previously bound channel and whether one
// existed.
func (s *Store) Bind(guildID, channelID string) (prev string, replaced bool) {
	return s.channels.Upsert(guildID, channelID)
}

// Unbind removes the binding for guildID. It reports whether a binding
// existed; false means the guild was not bound, which is a normal outcome.
func (s *Store) Unbind(guildID string) bool {
	return s.channels.Remove(guildID)
}

// Lookup returns the bound channel for guildID, if any.
func (s *Store) Lookup(guildID string) (channelID string, ok bool) {
	return s.channels.Get(guildID)
}
