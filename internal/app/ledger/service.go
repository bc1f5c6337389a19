// Package ledger orchestrates the wallet's five operations: register,
// top-up, initiate-payment, confirm-payment, and get-balance. All invariant
// enforcement lives here and in the store's transactions; transports stay
// thin.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/walletnet/walletd/internal/domain"
	"github.com/walletnet/walletd/internal/infra/observability"
	"github.com/walletnet/walletd/internal/infra/token"
)

// DefaultSessionTTL is the payment session validity window when the config
// does not override it.
const DefaultSessionTTL = 10 * time.Minute

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Service implements the wallet ledger.
type Service struct {
	store    domain.Store
	issuer   *token.Issuer
	notifier domain.Notifier
	clock    domain.Clock
	ttl      time.Duration
	log      *slog.Logger
}

// New creates a ledger service. A zero ttl selects DefaultSessionTTL.
func New(store domain.Store, issuer *token.Issuer, notifier domain.Notifier, clock domain.Clock, ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    store,
		issuer:   issuer,
		notifier: notifier,
		clock:    clock,
		ttl:      ttl,
		log:      log,
	}
}

// ─── Requests ───────────────────────────────────────────────────────────────
// Each operation's input is an explicit structure validated up front; a
// request that fails validation never reaches the store.

// RegisterRequest creates a new customer account.
type RegisterRequest struct {
	Document string `json:"document"`
	Names    string `json:"names"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (r RegisterRequest) validate() error {
	for _, f := range []struct{ name, value string }{
		{"document", r.Document},
		{"names", r.Names},
		{"email", r.Email},
		{"phone", r.Phone},
	} {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, f.name)
		}
	}
	return nil
}

// TopUpRequest credits an account.
type TopUpRequest struct {
	Document string       `json:"document"`
	Phone    string       `json:"phone"`
	Amount   domain.Money `json:"amount"`
}

func (r TopUpRequest) validate() error {
	if r.Document == "" || r.Phone == "" {
		return fmt.Errorf("%w: document and phone are required", domain.ErrInvalidInput)
	}
	if !r.Amount.Positive() {
		return fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidInput)
	}
	return nil
}

// InitiateRequest opens a payment session.
type InitiateRequest struct {
	Document    string       `json:"document"`
	Phone       string       `json:"phone"`
	Amount      domain.Money `json:"amount"`
	Description string       `json:"description,omitempty"`
}

func (r InitiateRequest) validate() error {
	if r.Document == "" || r.Phone == "" {
		return fmt.Errorf("%w: document and phone are required", domain.ErrInvalidInput)
	}
	if !r.Amount.Positive() {
		return fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidInput)
	}
	return nil
}

// ConfirmRequest redeems a payment session with its one-time code.
type ConfirmRequest struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

func (r ConfirmRequest) validate() error {
	if r.SessionID == "" || r.Token == "" {
		return fmt.Errorf("%w: session_id and token are required", domain.ErrInvalidInput)
	}
	return nil
}

// InitiateResult is the outcome of a successful initiation. The plaintext
// code never appears here; it travels only through the notifier.
type InitiateResult struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ─── Operations ─────────────────────────────────────────────────────────────

// Register creates an account with a zero balance and returns its identity.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (accountID string, err error) {
	defer func() { s.observe("register", err) }()

	if err = req.validate(); err != nil {
		return "", err
	}
	now := s.clock.Now()
	acct := &domain.Account{
		ID:        uuid.NewString(),
		Document:  req.Document,
		Names:     req.Names,
		Email:     req.Email,
		Phone:     req.Phone,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.store.CreateAccount(ctx, acct); err != nil {
		return "", err
	}
	s.log.Info("account registered", "account_id", acct.ID)
	return acct.ID, nil
}

// TopUp atomically credits the account and returns the new balance.
func (s *Service) TopUp(ctx context.Context, req TopUpRequest) (balance domain.Money, err error) {
	defer func() { s.observe("topup", err) }()

	if err = req.validate(); err != nil {
		return 0, err
	}
	acct, err := s.store.AccountByIdentity(ctx, req.Document, req.Phone)
	if err != nil {
		return 0, err
	}
	balance, err = s.store.Credit(ctx, acct.ID, req.Amount)
	if err != nil {
		return 0, err
	}
	s.log.Info("top-up", "account_id", acct.ID, "amount", req.Amount, "balance", balance)
	return balance, nil
}

// InitiatePayment opens a PENDING session and sends the customer a one-time
// code. The balance check here is advisory fail-fast; the authoritative
// check happens again inside the confirmation transaction.
func (s *Service) InitiatePayment(ctx context.Context, req InitiateRequest) (res InitiateResult, err error) {
	defer func() { s.observe("initiate", err) }()

	if err = req.validate(); err != nil {
		return InitiateResult{}, err
	}
	acct, err := s.store.AccountByIdentity(ctx, req.Document, req.Phone)
	if err != nil {
		return InitiateResult{}, err
	}
	if acct.Balance < req.Amount {
		return InitiateResult{}, domain.ErrInsufficientFunds
	}

	code, hash, err := s.issuer.Issue()
	if err != nil {
		return InitiateResult{}, err
	}

	now := s.clock.Now()
	sess := &domain.PaymentSession{
		ID:        uuid.NewString(),
		AccountID: acct.ID,
		Amount:    req.Amount,
		TokenHash: hash,
		ExpiresAt: now.Add(s.ttl),
		Status:    domain.SessionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.store.CreateSession(ctx, sess); err != nil {
		return InitiateResult{}, err
	}
	observability.SessionsOpened.Inc()
	s.log.Info("payment initiated",
		"session_id", sess.ID, "account_id", acct.ID,
		"amount", req.Amount, "expires_at", sess.ExpiresAt)

	// The session is durable at this point. Delivery is best-effort and
	// never unwinds it.
	s.deliverCode(ctx, acct.Email, sess, code)

	return InitiateResult{
		SessionID: sess.ID,
		Message:   fmt.Sprintf("A confirmation code was sent to %s. It expires in %s.", acct.Email, s.ttl),
	}, nil
}

// ConfirmPayment redeems a session. Checks run in a fixed order: existence,
// pending status, expiry, token, funds. Expiry beats a correct token, so an
// expired session always reports SessionExpired.
func (s *Service) ConfirmPayment(ctx context.Context, req ConfirmRequest) (balance domain.Money, err error) {
	defer func() { s.observe("confirm", err) }()

	if err = req.validate(); err != nil {
		return 0, err
	}
	sess, err := s.store.SessionByID(ctx, req.SessionID)
	if err != nil {
		return 0, err
	}
	if sess.Status.Terminal() {
		return 0, domain.ErrInvalidSessionState
	}
	if sess.ExpiredBy(s.clock.Now()) {
		if changed, expErr := s.store.ExpireSession(ctx, sess.ID); expErr != nil {
			return 0, expErr
		} else if changed {
			observability.SessionsExpired.WithLabelValues("confirm").Inc()
		}
		return 0, domain.ErrSessionExpired
	}
	if !token.Matches(req.Token, sess.TokenHash) {
		return 0, domain.ErrInvalidToken
	}

	balance, err = s.store.ConfirmSession(ctx, sess.ID, sess.AccountID, sess.Amount)
	if err != nil {
		return 0, err
	}
	observability.SessionsConfirmed.Inc()
	s.log.Info("payment confirmed",
		"session_id", sess.ID, "account_id", sess.AccountID,
		"amount", sess.Amount, "balance", balance)
	return balance, nil
}

// Balance returns the current balance. Read-only.
func (s *Service) Balance(ctx context.Context, document, phone string) (balance domain.Money, err error) {
	defer func() { s.observe("balance", err) }()

	if document == "" || phone == "" {
		return 0, fmt.Errorf("%w: document and phone are required", domain.ErrInvalidInput)
	}
	acct, err := s.store.AccountByIdentity(ctx, document, phone)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// ─── Side Effects ───────────────────────────────────────────────────────────

func (s *Service) deliverCode(ctx context.Context, email string, sess *domain.PaymentSession, code string) {
	subject := "Your payment confirmation code"
	body := fmt.Sprintf(
		"Your confirmation code for payment of %s is %s.\nIt expires at %s.",
		sess.Amount, code, sess.ExpiresAt.Format(time.RFC1123),
	)
	if err := s.notifier.Send(ctx, email, subject, body); err != nil {
		observability.NotificationFailures.Inc()
		s.log.Error("confirmation code delivery failed", "session_id", sess.ID, "error", err)
	}
}

func (s *Service) observe(op string, err error) {
	code := domain.CodeOf(err)
	observability.LedgerOperations.WithLabelValues(op, code).Inc()
	if code == domain.CodeInternal && err != nil {
		s.log.Error("operation failed", "operation", op, "error", err)
	}
}

// ─── Expiry Sweeper ─────────────────────────────────────────────────────────

// RunSweeper expires overdue PENDING sessions on a fixed interval until the
// context is canceled. Expiry is also evaluated lazily at confirmation, so
// the sweeper is an optimization: it bounds how long a dead session lingers
// and it only ever performs the idempotent PENDING→EXPIRED transition.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("session sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("session sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.store.ExpirePendingBefore(ctx, s.clock.Now())
			if err != nil {
				s.log.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				observability.SessionsExpired.WithLabelValues("sweep").Add(float64(n))
				s.log.Info("sessions expired", "count", n)
			}
		}
	}
}
