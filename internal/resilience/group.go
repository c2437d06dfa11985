package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no member of a Group could serve a call.
var ErrAllFailed = errors.New("resilience: all providers failed")

// AttemptFunc observes every call a Group makes. err is nil on success and
// ErrCircuitOpen for skipped members.
type AttemptFunc func(provider string, err error)

// GroupConfig configures a Group.
type GroupConfig struct {
	Breaker BreakerConfig

	// OnAttempt, if set, is called after each member call.
	OnAttempt AttemptFunc
}

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Group holds a primary backend and its fallbacks, each behind its own
// Breaker. Calls go to members in order until one succeeds.
type Group[T any] struct {
	members   []member[T]
	breaker   BreakerConfig
	onAttempt AttemptFunc
}

// NewGroup returns a Group whose first member is primary.
func NewGroup[T any](name string, primary T, cfg GroupConfig) *Group[T] {
	g := &Group[T]{breaker: cfg.Breaker, onAttempt: cfg.OnAttempt}
	g.Add(name, primary)
	return g
}

// Add appends a fallback member. Not safe to call concurrently with Do.
func (g *Group[T]) Add(name string, v T) {
	bc := g.breaker
	bc.Name = name
	g.members = append(g.members, member[T]{name: name, value: v, breaker: NewBreaker(bc)})
}

// Names lists the members in call order.
func (g *Group[T]) Names() []string {
	out := make([]string, len(g.members))
	for i, m := range g.members {
		out[i] = m.name
	}
	return out
}

// Primary returns the first member.
func (g *Group[T]) Primary() T { return g.members[0].value }

// Do calls fn on each member in order and returns the first success. It
// stops early when ctx ends.
func Do[T, R any](ctx context.Context, g *Group[T], fn func(T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for _, m := range g.members {
		var out R
		err := m.breaker.Do(ctx, func() error {
			var err error
			out, err = fn(m.value)
			return err
		})
		if g.onAttempt != nil {
			g.onAttempt(m.name, err)
		}
		if err == nil {
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider, circuit open", "provider", m.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", m.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
