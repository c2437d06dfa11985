package resilience

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
)

type attemptLog struct {
	mu   sync.Mutex
	seen []string
}

func (l *attemptLog) record(provider string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	status := "ok"
	if err != nil {
		status = "error"
	}
	l.seen = append(l.seen, provider+":"+status)
}

func TestDo_Failover(t *testing.T) {
	t.Parallel()

	log := &attemptLog{}
	g := NewGroup("primary", "a", GroupConfig{OnAttempt: log.record})
	g.Add("backup", "b")

	got, err := Do(context.Background(), g, func(v string) (string, error) {
		if v == "a" {
			return "", errBackend
		}
		return v + "!", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "b!" {
		t.Errorf("result = %q, want %q", got, "b!")
	}
	if want := []string{"primary:error", "backup:ok"}; !slices.Equal(log.seen, want) {
		t.Errorf("attempts = %v, want %v", log.seen, want)
	}
	if want := []string{"primary", "backup"}; !slices.Equal(g.Names(), want) {
		t.Errorf("Names = %v, want %v", g.Names(), want)
	}
}

func TestDo_AllFailed(t *testing.T) {
	t.Parallel()

	g := NewGroup("primary", 1, GroupConfig{})
	g.Add("backup", 2)

	_, err := Do(context.Background(), g, func(int) (int, error) { return 0, errBackend })
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errBackend) {
		t.Errorf("err = %v, want wrapping the member error", err)
	}
}

func TestDo_SkipsOpenCircuit(t *testing.T) {
	t.Parallel()

	g := NewGroup("primary", "a", GroupConfig{Breaker: BreakerConfig{MaxFailures: 1}})
	g.Add("backup", "b")

	calls := map[string]int{}
	fn := func(v string) (string, error) {
		calls[v]++
		if v == "a" {
			return "", errBackend
		}
		return v, nil
	}
	ctx := context.Background()
	for range 3 {
		if _, err := Do(ctx, g, fn); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	if calls["a"] != 1 {
		t.Errorf("primary calls = %d, want 1 (circuit should open)", calls["a"])
	}
	if calls["b"] != 3 {
		t.Errorf("backup calls = %d, want 3", calls["b"])
	}
}

func TestDo_StopsOnCancel(t *testing.T) {
	t.Parallel()

	g := NewGroup("primary", "a", GroupConfig{})
	g.Add("backup", "b")

	ctx, cancel := context.WithCancel(context.Background())
	var tried []string
	_, err := Do(ctx, g, func(v string) (string, error) {
		tried = append(tried, v)
		cancel()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if !slices.Equal(tried, []string{"a"}) {
		t.Errorf("tried = %v, want [a]", tried)
	}
}
