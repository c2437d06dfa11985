// Package postgres stores session history in PostgreSQL.
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	_ = store.Record(ctx, history.Entry{SessionID: id, Role: history.RoleTutor, Text: "Hi!"})
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voicetutor/internal/history"
)

var (
	_ history.Recorder = (*Store)(nil)
	_ history.Reader   = (*Store)(nil)
	_ history.Searcher = (*Store)(nil)
)

// Store is a pgx-backed history.Recorder. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, pings the server and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable. It satisfies the health
// package's checker signature.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Record implements history.Recorder.
func (s *Store) Record(ctx context.Context, e history.Entry) error {
	const q = `
		INSERT INTO history_entries
		    (session_id, mode, turn, attempt, role, text, verdict, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := s.pool.Exec(ctx, q,
		e.SessionID, e.Mode, e.Turn, e.Attempt, string(e.Role), e.Text, e.Verdict, at,
	); err != nil {
		return fmt.Errorf("history store: record: %w", err)
	}
	return nil
}

// Entries implements history.Reader.
func (s *Store) Entries(ctx context.Context, sessionID string) ([]history.Entry, error) {
	const q = `
		SELECT session_id, mode, turn, attempt, role, text, verdict, recorded_at
		FROM   history_entries
		WHERE  session_id = $1
		ORDER  BY id`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("history store: entries: %w", err)
	}
	return collectEntries(rows)
}

// Search implements history.Searcher with a full-text query over the
// recorded text.
func (s *Store) Search(ctx context.Context, query string, opts history.SearchOpts) ([]history.Entry, error) {
	args := []any{query}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"to_tsvector('english', text) @@ plainto_tsquery('english', $1)"}
	if opts.SessionID != "" {
		conditions = append(conditions, "session_id = "+next(opts.SessionID))
	}
	if opts.Role != "" {
		conditions = append(conditions, "role = "+next(string(opts.Role)))
	}

	q := "SELECT session_id, mode, turn, attempt, role, text, verdict, recorded_at\n" +
		"FROM   history_entries\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY id"
	if opts.Limit > 0 {
		q += "\nLIMIT " + next(opts.Limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history store: search: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]history.Entry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (history.Entry, error) {
		var (
			e    history.Entry
			role string
		)
		if err := row.Scan(&e.SessionID, &e.Mode, &e.Turn, &e.Attempt, &role, &e.Text, &e.Verdict, &e.At); err != nil {
			return history.Entry{}, err
		}
		e.Role = history.Role(role)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("history store: scan rows: %w", err)
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return entries, nil
}
