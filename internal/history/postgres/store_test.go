package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voicetutor/internal/history"
	"github.com/MrWong99/voicetutor/internal/history/postgres"
)

// testDSN skips the test unless VOICETUTOR_TEST_POSTGRES_DSN is set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("VOICETUTOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOICETUTOR_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS history_entries"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	pool.Close()

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestStore_RecordAndEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, e := range []history.Entry{
		{SessionID: "s1", Mode: "lecture", Turn: 0, Role: history.RoleTutor, Text: "What is gravity?"},
		{SessionID: "s1", Mode: "lecture", Turn: 0, Attempt: 0, Role: history.RoleLearner, Text: "a force", Verdict: "partially_correct"},
		{SessionID: "s2", Mode: "chat", Role: history.RoleTutor, Text: "Hello!"},
	} {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Entries(ctx, "s1")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[1].Role != history.RoleLearner || got[1].Verdict != "partially_correct" {
		t.Errorf("entry = %+v, want learner partially_correct", got[1])
	}
	if got[0].At.IsZero() {
		t.Error("recorded_at not stored")
	}
}

func TestStore_Search(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Record(ctx, history.Entry{SessionID: "s1", Role: history.RoleLearner, Text: "gravity pulls apples down"})
	_ = s.Record(ctx, history.Entry{SessionID: "s1", Role: history.RoleTutor, Text: "Great job!"})

	got, err := s.Search(ctx, "apples", history.SearchOpts{SessionID: "s1", Role: history.RoleLearner, Limit: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Text != "gravity pulls apples down" {
		t.Errorf("Search = %+v, want the learner line", got)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	newTestStore(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN(t))
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Errorf("second Migrate: %v", err)
	}
}
