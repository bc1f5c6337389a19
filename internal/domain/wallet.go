package domain

import "time"

// ─── Account ────────────────────────────────────────────────────────────────

// Account is a customer's balance-holding record. Identity is the
// (document, phone) pair; email is independently unique.
type Account struct {
	ID        string    `json:"id"`
	Document  string    `json:"document"`
	Names     string    `json:"names"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Balance   Money     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ─── Payment Session ────────────────────────────────────────────────────────

// SessionStatus is the lifecycle state of a payment session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionConfirmed SessionStatus = "CONFIRMED"
	SessionExpired   SessionStatus = "EXPIRED"
)

// Terminal reports whether no further transition exists out of the status.
func (s SessionStatus) Terminal() bool {
	return s == SessionConfirmed || s == SessionExpired
}

// PaymentSession ties a one-time token to a specific amount and account for
// a bounded validity window. The amount is fixed at creation; the status
// moves PENDING→CONFIRMED or PENDING→EXPIRED exactly once and never back.
// Only the token's hash is ever stored.
type PaymentSession struct {
	ID        string        `json:"session_id"`
	AccountID string        `json:"account_id"`
	Amount    Money         `json:"amount"`
	TokenHash string        `json:"-"`
	ExpiresAt time.Time     `json:"expires_at"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ExpiredBy reports whether the session's deadline has passed at the given
// instant. The deadline itself is still confirmable.
func (p *PaymentSession) ExpiredBy(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
