// Package profile tracks each user's chosen synthesis voice.
//
// Registration is first-wins: once a user has a profile, further registrations
// leave it untouched until the user clears it. Voice-name validation against
// the gateway catalogue happens in the command layer, before the store is
// called; the store itself accepts any [tts.Voice].
package profile

import (
	"github.com/MrWong99/sayso/internal/store"
	"github.com/MrWong99/sayso/pkg/tts"
)

// Store maps user IDs to their registered voice. All methods are safe for
// concurrent use.
type Store struct {
	voices *store.Keyed[string, tts.Voice]
}

// NewStore returns an empty profile [Store].
func NewStore() *Store {
	return &Store{voices: store.NewKeyed[string, tts.Voice]()}
}

// SetIfAbsent registers voice for userID unless a profile already exists.
// It reports whether the profile was stored; false means an existing profile
// was left in place.
func (s *Store) SetIfAbsent(userID string, voice tts.Voice) bool {
	return s.voices.SetIfAbsent(userID, voice)
}

// Clear removes userID's profile. Idempotent; clearing an absent profile
// reports false.
func (s *Store) Clear(userID string) bool {
	return s.voices.Remove(userID)
}

// Get returns userID's registered voice, if any.
func (s *Store) Get(userID string) (tts.Voice, bool) {
	return s.voices.Get(userID)
}

// Len returns the number of registered profiles.
func (s *Store) Len() int {
	return s.voices.Len()
}
