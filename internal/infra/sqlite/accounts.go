package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/walletnet/walletd/internal/domain"
)

// ─── Account Operations ─────────────────────────────────────────────────────

// CreateAccount inserts a new account. The duplicate check runs inside the
// same immediate transaction as the insert, so two racing registrations for
// the same identity cannot both pass it; the UNIQUE constraints are the
// final backstop.
func (db *DB) CreateAccount(ctx context.Context, acct *domain.Account) error {
	tx, err := db.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var taken int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM accounts
		WHERE (document = ? AND phone = ?) OR email = ?
	`, acct.Document, acct.Phone, acct.Email).Scan(&taken)
	if err != nil {
		return fmt.Errorf("check duplicate account: %w", err)
	}
	if taken > 0 {
		return domain.ErrDuplicateAccount
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, document, names, email, phone, balance_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, acct.ID, acct.Document, acct.Names, acct.Email, acct.Phone,
		acct.Balance.Cents(), encodeTime(acct.CreatedAt), encodeTime(acct.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit account: %w", err)
	}
	return nil
}

// AccountByIdentity retrieves an account by its (document, phone) pair.
func (db *DB) AccountByIdentity(ctx context.Context, document, phone string) (*domain.Account, error) {
	return db.scanAccount(db.db.QueryRowContext(ctx, `
		SELECT id, document, names, email, phone, balance_cents, created_at, updated_at
		FROM accounts WHERE document = ? AND phone = ?
	`, document, phone))
}

// AccountByID retrieves an account by its opaque identity.
func (db *DB) AccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return db.scanAccount(db.db.QueryRowContext(ctx, `
		SELECT id, document, names, email, phone, balance_cents, created_at, updated_at
		FROM accounts WHERE id = ?
	`, id))
}

func (db *DB) scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		acct                 domain.Account
		cents                int64
		createdAt, updatedAt string
	)
	err := row.Scan(&acct.ID, &acct.Document, &acct.Names, &acct.Email, &acct.Phone,
		&cents, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	acct.Balance = domain.MoneyFromCents(cents)
	acct.CreatedAt = decodeTime(createdAt)
	acct.UpdatedAt = decodeTime(updatedAt)
	return &acct, nil
}

// Credit atomically increments an account's balance and returns the result.
func (db *DB) Credit(ctx context.Context, accountID string, amount domain.Money) (domain.Money, error) {
	tx, err := db.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents = balance_cents + ?, updated_at = ?
		WHERE id = ?
	`, amount.Cents(), encodeTime(nowUTC()), accountID)
	if err != nil {
		return 0, fmt.Errorf("credit account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("credit account: %w", err)
	}
	if affected == 0 {
		return 0, domain.ErrAccountNotFound
	}

	var cents int64
	err = tx.QueryRowContext(ctx, `SELECT balance_cents FROM accounts WHERE id = ?`, accountID).Scan(&cents)
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit credit: %w", err)
	}
	return domain.MoneyFromCents(cents), nil
}
