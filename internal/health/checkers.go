package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/sayso/pkg/tts"
)

// Discord returns a [Probe] that reports ready while the chat gateway
// connection is up. connected is polled on every /readyz request.
func Discord(connected func() bool) Probe {
	return Probe{
		Name: "discord",
		Run: func(context.Context) error {
			if !connected() {
				return errors.New("gateway connection down")
			}
			return nil
		},
	}
}

// SynthesisGateway returns a [Probe] that checks the synthesis backend by
// fetching its voice catalogue.
func SynthesisGateway(gw tts.Gateway) Probe {
	return Probe{
		Name: "synthesis",
		Run: func(ctx context.Context) error {
			voices, err := gw.ListVoices(ctx)
			if err != nil {
				return fmt.Errorf("list voices: %w", err)
			}
			if len(voices) == 0 {
				return errors.New("empty voice catalogue")
			}
			return nil
		},
	}
}
