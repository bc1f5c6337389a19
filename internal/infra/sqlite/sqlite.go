// Package sqlite implements the wallet store on an embedded SQLite database.
// Every mutating operation is a single immediate transaction with guarded
// UPDATEs, so concurrent writers against the same account or session cannot
// both observe pre-mutation state and both succeed.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle and implements domain.Store.
type DB struct {
	db *sql.DB
}

// Open opens (creating if necessary) the wallet database at path and applies
// migrations. The connection uses WAL mode, a busy timeout, and immediate
// transaction locking so read-modify-write transactions serialize.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path,
	)
	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db := &DB{db: handle}
	if err := db.migrate(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// Close releases the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Customer accounts. Balance is integer cents and can never go
		// negative: the CHECK backs up the guarded debit UPDATE.
		`CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			document      TEXT NOT NULL,
			names         TEXT NOT NULL,
			email         TEXT NOT NULL,
			phone         TEXT NOT NULL,
			balance_cents INTEGER NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,
			UNIQUE (document, phone),
			UNIQUE (email)
		)`,

		// Payment sessions. expires_at is unix milliseconds so deadline
		// comparisons are exact integer comparisons. Rows are never
		// deleted — terminal sessions stay as an audit trail.
		`CREATE TABLE IF NOT EXISTS payment_sessions (
			id           TEXT PRIMARY KEY,
			account_id   TEXT NOT NULL REFERENCES accounts(id),
			amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
			token_hash   TEXT NOT NULL,
			expires_at   INTEGER NOT NULL,
			status       TEXT NOT NULL DEFAULT 'PENDING'
			             CHECK (status IN ('PENDING', 'CONFIRMED', 'EXPIRED')),
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_account ON payment_sessions(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_pending ON payment_sessions(status, expires_at)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── Time Encoding ──────────────────────────────────────────────────────────
// created_at/updated_at are RFC3339 text (human-readable in the file);
// expires_at is unix milliseconds (compared in SQL).

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// nowUTC stamps store-maintained updated_at columns.
func nowUTC() time.Time { return time.Now().UTC() }

// begin starts an immediate write transaction.
func (db *DB) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}
