package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls until the cooldown elapses.
	StateOpen

	// StateHalfOpen admits a single probe call whose result decides whether
	// the breaker closes or re-opens.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes the failure detector guarding one synthesis backend.
type BreakerConfig struct {
	// Trip is the number of consecutive failures before the backend is
	// sidelined. Default: 3. Synthesis runs once per chat message, so a
	// struggling backend must stop costing per-message latency quickly.
	Trip int

	// Cooldown is how long a sidelined backend rests before one probe call
	// is let through. Default: 30s.
	Cooldown time.Duration
}

// Breaker sidelines a synthesis backend after consecutive failures. After the
// cooldown a single probe is admitted; synthesis calls are expensive enough
// that one result is all the evidence a recovery decision needs.
//
// Safe for concurrent use.
type Breaker struct {
	name     string
	trip     int
	cooldown time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a [Breaker] for the named backend. Zero-value config
// fields get defaults.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Trip <= 0 {
		cfg.Trip = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:     name,
		trip:     cfg.Trip,
		cooldown: cfg.Cooldown,
	}
}

// Allow reports whether a call to the backend may proceed. An allowed call
// must be followed by exactly one [Breaker.Record] with its result. Open
// breakers reject until the cooldown has elapsed, then admit one probe; while
// that probe is in flight all other callers are rejected.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		slog.Info("probing sidelined synthesis backend", "backend", b.name)
		return true
	default: // StateHalfOpen
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// Record feeds the result of an allowed call back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probing = false
		if err != nil {
			b.state = StateOpen
			b.openedAt = time.Now()
			slog.Warn("synthesis backend still failing, sidelined again", "backend", b.name)
			return
		}
		b.state = StateClosed
		b.failures = 0
		slog.Info("synthesis backend recovered", "backend", b.name)
		return
	}

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.trip {
		b.state = StateOpen
		b.openedAt = time.Now()
		slog.Warn("synthesis backend sidelined",
			"backend", b.name, "consecutive_failures", b.failures)
	}
}

// State returns the breaker's current [State]. An open breaker whose cooldown
// has elapsed still reports [StateOpen] until the next [Breaker.Allow] admits
// the probe.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
