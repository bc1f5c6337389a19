package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/walletnet/walletd/internal/domain"
)

// ─── Payment Session Operations ─────────────────────────────────────────────

// CreateSession inserts a new PENDING payment session.
func (db *DB) CreateSession(ctx context.Context, sess *domain.PaymentSession) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO payment_sessions (id, account_id, amount_cents, token_hash, expires_at, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.AccountID, sess.Amount.Cents(), sess.TokenHash,
		sess.ExpiresAt.UnixMilli(), string(sess.Status),
		encodeTime(sess.CreatedAt), encodeTime(sess.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SessionByID retrieves a payment session.
func (db *DB) SessionByID(ctx context.Context, id string) (*domain.PaymentSession, error) {
	var (
		sess                 domain.PaymentSession
		cents, expiresMilli  int64
		status               string
		createdAt, updatedAt string
	)
	err := db.db.QueryRowContext(ctx, `
		SELECT id, account_id, amount_cents, token_hash, expires_at, status, created_at, updated_at
		FROM payment_sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.AccountID, &cents, &sess.TokenHash,
		&expiresMilli, &status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.Amount = domain.MoneyFromCents(cents)
	sess.ExpiresAt = time.UnixMilli(expiresMilli).UTC()
	sess.Status = domain.SessionStatus(status)
	sess.CreatedAt = decodeTime(createdAt)
	sess.UpdatedAt = decodeTime(updatedAt)
	return &sess, nil
}

// ExpireSession performs the one-way PENDING→EXPIRED transition. The status
// guard makes it idempotent and keeps terminal sessions terminal.
func (db *DB) ExpireSession(ctx context.Context, id string) (bool, error) {
	res, err := db.db.ExecContext(ctx, `
		UPDATE payment_sessions
		SET status = 'EXPIRED', updated_at = ?
		WHERE id = ? AND status = 'PENDING'
	`, encodeTime(nowUTC()), id)
	if err != nil {
		return false, fmt.Errorf("expire session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("expire session: %w", err)
	}
	return affected > 0, nil
}

// ConfirmSession debits the account and flips the session to CONFIRMED in
// one transaction. The balance read is stable for the duration of the
// immediate transaction; the guarded UPDATEs re-assert both invariants at
// write time, so neither a double-spend nor a double-confirm can commit.
// On ErrInsufficientFunds the session stays PENDING and may be retried
// until it expires.
func (db *DB) ConfirmSession(ctx context.Context, sessionID, accountID string, amount domain.Money) (domain.Money, error) {
	tx, err := db.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance_cents FROM accounts WHERE id = ?`, accountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	if balance < amount.Cents() {
		return 0, domain.ErrInsufficientFunds
	}

	now := encodeTime(nowUTC())
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents = balance_cents - ?, updated_at = ?
		WHERE id = ? AND balance_cents >= ?
	`, amount.Cents(), now, accountID, amount.Cents())
	if err != nil {
		return 0, fmt.Errorf("debit account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, domain.ErrInsufficientFunds
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE payment_sessions
		SET status = 'CONFIRMED', updated_at = ?
		WHERE id = ? AND status = 'PENDING'
	`, now, sessionID)
	if err != nil {
		return 0, fmt.Errorf("confirm session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Session raced into a terminal state; the rollback undoes the debit.
		return 0, domain.ErrInvalidSessionState
	}

	err = tx.QueryRowContext(ctx, `SELECT balance_cents FROM accounts WHERE id = ?`, accountID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit confirmation: %w", err)
	}
	return domain.MoneyFromCents(balance), nil
}

// ExpirePendingBefore sweeps every PENDING session whose deadline is at or
// before now into EXPIRED. Safe to run concurrently with confirmations: it
// performs only the idempotent PENDING→EXPIRED transition.
func (db *DB) ExpirePendingBefore(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.db.ExecContext(ctx, `
		UPDATE payment_sessions
		SET status = 'EXPIRED', updated_at = ?
		WHERE status = 'PENDING' AND expires_at < ?
	`, encodeTime(nowUTC()), now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("expire pending sessions: %w", err)
	}
	return res.RowsAffected()
}
