package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlHistoryEntries = `
CREATE TABLE IF NOT EXISTS history_entries (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    mode        TEXT         NOT NULL DEFAULT '',
    turn        INTEGER      NOT NULL DEFAULT 0,
    attempt     INTEGER      NOT NULL DEFAULT 0,
    role        TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    verdict     TEXT         NOT NULL DEFAULT '',
    recorded_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_history_entries_session
    ON history_entries (session_id, id);

CREATE INDEX IF NOT EXISTS idx_history_entries_fts
    ON history_entries USING GIN (to_tsvector('english', text));
`

// Migrate creates the history table and its indexes if they do not exist.
// It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlHistoryEntries); err != nil {
		return fmt.Errorf("history migrate: %w", err)
	}
	return nil
}
