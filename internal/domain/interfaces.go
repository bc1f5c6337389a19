package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the application layer depends on them.

// Store abstracts durable, transactional persistence of accounts and payment
// sessions. Every mutating method is a single atomic transaction: two
// concurrent calls against the same account or session cannot both observe
// the pre-mutation state and both succeed.
type Store interface {
	// CreateAccount persists a new account. Returns ErrDuplicateAccount if
	// the (document, phone) pair or the email is already taken.
	CreateAccount(ctx context.Context, acct *Account) error

	// AccountByIdentity looks up an account by its (document, phone) pair.
	// Returns ErrAccountNotFound if no row matches.
	AccountByIdentity(ctx context.Context, document, phone string) (*Account, error)

	// AccountByID looks up an account by its opaque identity.
	AccountByID(ctx context.Context, id string) (*Account, error)

	// Credit atomically increments an account's balance and returns the
	// resulting balance.
	Credit(ctx context.Context, accountID string, amount Money) (Money, error)

	// CreateSession persists a new PENDING payment session.
	CreateSession(ctx context.Context, sess *PaymentSession) error

	// SessionByID looks up a payment session. Returns ErrSessionNotFound if
	// no row matches.
	SessionByID(ctx context.Context, id string) (*PaymentSession, error)

	// ExpireSession transitions a session PENDING→EXPIRED. It reports
	// whether this call performed the transition; a session already in a
	// terminal state is left untouched.
	ExpireSession(ctx context.Context, id string) (bool, error)

	// ConfirmSession atomically debits the account and transitions the
	// session PENDING→CONFIRMED; both mutations commit together or not at
	// all. Returns ErrInsufficientFunds (session left PENDING) or
	// ErrInvalidSessionState (session no longer PENDING).
	ConfirmSession(ctx context.Context, sessionID, accountID string, amount Money) (Money, error)

	// ExpirePendingBefore transitions every PENDING session whose deadline
	// has passed at the given instant to EXPIRED, idempotently, and
	// returns how many rows changed.
	ExpirePendingBefore(ctx context.Context, now time.Time) (int64, error)
}

// Notifier delivers a one-time code out-of-band. Delivery is best-effort:
// the ledger never rolls back a committed session because a send failed.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Clock allows deterministic time behavior in tests.
type Clock interface {
	Now() time.Time
}
