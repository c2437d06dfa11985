// Package resilience keeps a tutoring session talking when a provider
// misbehaves. A [Breaker] stops calling a backend that keeps failing, and a
// [Group] fails over to the next configured backend of the same kind.
// [LLM], [STT] and [TTS] wrap groups behind the provider interfaces.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the position of a Breaker.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig configures a Breaker. Zero values take the defaults noted.
type BreakerConfig struct {
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default 3.
	MaxFailures int

	// Cooldown is how long an open breaker rejects calls before letting a
	// single probe through. Default 20s.
	Cooldown time.Duration
}

// Breaker is a consecutive-failure circuit breaker. While open it rejects
// calls; after the cooldown one probe call runs, and its outcome closes or
// re-opens the breaker. Errors caused by the caller's own context ending do
// not count as failures.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker returns a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	err = fn()
	b.settle(ctx, probe, err)
	return err
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, ErrCircuitOpen
		}
		b.state = HalfOpen
		fallthrough
	case HalfOpen:
		if b.probing {
			return false, ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

func (b *Breaker) settle(ctx context.Context, probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probing = false
	}

	if err != nil && ctx.Err() != nil {
		// The caller gave up; say nothing about the backend. A probe slot
		// reverts to half-open so the next call probes again.
		return
	}

	if err == nil {
		if b.state != Closed {
			slog.Info("circuit closed", "provider", b.name)
		}
		b.state = Closed
		b.failures = 0
		return
	}

	b.failures++
	if probe || b.failures >= b.maxFailures {
		if b.state != Open {
			slog.Warn("circuit opened", "provider", b.name, "failures", b.failures, "err", err)
		}
		b.state = Open
		b.openedAt = b.now()
	}
}

// State reports the breaker's position. An open breaker whose cooldown has
// elapsed reports HalfOpen.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}
