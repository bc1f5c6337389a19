package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Every ledger
// operation resolves to one of these (or to a wrapped infrastructure error,
// which the transport maps to a generic failure).

var (
	// Input and registration errors
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateAccount = errors.New("account already exists")
	ErrAccountNotFound  = errors.New("account not found")

	// Payment session errors
	ErrSessionNotFound     = errors.New("payment session not found")
	ErrInvalidSessionState = errors.New("payment session is not pending")
	ErrSessionExpired      = errors.New("payment session expired")
	ErrInvalidToken        = errors.New("invalid confirmation token")
	ErrInsufficientFunds   = errors.New("insufficient funds")

	// Gate errors
	ErrUnauthorized = errors.New("unauthorized")
)

// ─── Wire Codes ─────────────────────────────────────────────────────────────
// Stable codes carried in the response envelope's cod_error field.
// "00" marks success; INTERNAL covers infrastructure failures.

const (
	CodeOK                  = "00"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeDuplicateAccount    = "DUPLICATE_ACCOUNT"
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeInvalidSessionState = "INVALID_SESSION_STATE"
	CodeSessionExpired      = "SESSION_EXPIRED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternal            = "INTERNAL"
)

// CodeOf maps an error to its wire code. Unrecognized errors are
// infrastructure failures and map to INTERNAL.
func CodeOf(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrDuplicateAccount):
		return CodeDuplicateAccount
	case errors.Is(err, ErrAccountNotFound):
		return CodeAccountNotFound
	case errors.Is(err, ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, ErrInvalidSessionState):
		return CodeInvalidSessionState
	case errors.Is(err, ErrSessionExpired):
		return CodeSessionExpired
	case errors.Is(err, ErrInvalidToken):
		return CodeInvalidToken
	case errors.Is(err, ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	default:
		return CodeInternal
	}
}
