package profile_test

import (
	"testing"

	"github.com/MrWong99/sayso/internal/profile"
	"github.com/MrWong99/sayso/pkg/tts"
)

var (
	wavenet = tts.Voice{LanguageCode: "en-US", Name: "en-US-Wavenet-I", Gender: "MALE"}
	neural  = tts.Voice{LanguageCode: "en-GB", Name: "en-GB-Neural2-B", Gender: "FEMALE"}
)

func TestRegistrationIsFirstWins(t *testing.T) {
	t.Parallel()
	s := profile.NewStore()

	if !s.SetIfAbsent("u1", wavenet) {
		t.Fatal("first registration should store")
	}
	if s.SetIfAbsent("u1", neural) {
		t.Fatal("second registration should be rejected")
	}
	if v, _ := s.Get("u1"); v != wavenet {
		t.Fatalf("Get(u1) = %+v, want first-registered voice", v)
	}
}

func TestClearAllowsReRegistration(t *testing.T) {
	t.Parallel()
	s := profile.NewStore()
	s.SetIfAbsent("u1", wavenet)

	if !s.Clear("u1") {
		t.Fatal("Clear of registered user should report true")
	}
	if s.Clear("u1") {
		t.Fatal("Clear of unregistered user should report false")
	}
	if !s.SetIfAbsent("u1", neural) {
		t.Fatal("registration after Clear should store")
	}
	if v, _ := s.Get("u1"); v != neural {
		t.Fatalf("Get(u1) = %+v, want re-registered voice", v)
	}
}

func TestLen(t *testing.T) {
	t.Parallel()
	s := profile.NewStore()
	s.SetIfAbsent("u1", wavenet)
	s.SetIfAbsent("u2", neural)

	if got := s.Len(); got != 2 {
		t.Fatalf("Len = %d, want 2", got)
	}
	s.Clear("u1")
	if got := s.Len(); got != 1 {
		t.Fatalf("Len after Clear = %d, want 1", got)
	}
}
