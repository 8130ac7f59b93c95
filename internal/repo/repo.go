package repo

import (
	"context"
	"database/sql"
)

// execer is satisfied by both *sql.DB and *sql.Tx so single-statement
// conditional updates can run standalone or join a caller's transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func node(db *sql.DB, tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return db
}
