package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/walletnet/walletd/internal/domain"
	"github.com/walletnet/walletd/internal/infra/sqlite"
	"github.com/walletnet/walletd/internal/infra/token"
)

// fakeClock is a settable clock for deterministic expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureNotifier records sends and extracts the six-digit code from the
// message body.
type captureNotifier struct {
	mu    sync.Mutex
	codes []string
	fail  bool
}

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

func (n *captureNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("smtp down")
	}
	if m := codePattern.FindStringSubmatch(body); m != nil {
		n.codes = append(n.codes, m[1])
	}
	return nil
}

func (n *captureNotifier) lastCode(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.codes) == 0 {
		t.Fatal("no code was delivered")
	}
	return n.codes[len(n.codes)-1]
}

func newTestService(t *testing.T) (*Service, *fakeClock, *captureNotifier) {
	t.Helper()
	svc, clock, notifier, _ := newTestServiceStore(t)
	return svc, clock, notifier
}

func newTestServiceStore(t *testing.T) (*Service, *fakeClock, *captureNotifier, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "wallet.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
	notifier := &captureNotifier{}
	svc := New(db, token.NewIssuer(), notifier, clock, 10*time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, clock, notifier, db
}

func register(t *testing.T, svc *Service, document, phone string) string {
	t.Helper()
	id, err := svc.Register(context.Background(), RegisterRequest{
		Document: document,
		Names:    "Ada Lovelace",
		Email:    document + "@example.com",
		Phone:    phone,
	})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return id
}

func mustMoney(t *testing.T, s string) domain.Money {
	t.Helper()
	m, err := domain.ParseMoney(s)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// ─── Register ───────────────────────────────────────────────────────────────

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing document", RegisterRequest{Names: "A", Email: "a@b.c", Phone: "1"}},
		{"missing names", RegisterRequest{Document: "d", Email: "a@b.c", Phone: "1"}},
		{"missing email", RegisterRequest{Document: "d", Names: "A", Phone: "1"}},
		{"missing phone", RegisterRequest{Document: "d", Names: "A", Email: "a@b.c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tt.req); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "cc-1", "300111")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Document: "cc-1", Names: "B", Email: "other@example.com", Phone: "300111",
	})
	if !errors.Is(err, domain.ErrDuplicateAccount) {
		t.Errorf("same (document, phone): error = %v, want ErrDuplicateAccount", err)
	}

	_, err = svc.Register(context.Background(), RegisterRequest{
		Document: "cc-2", Names: "B", Email: "cc-1@example.com", Phone: "300222",
	})
	if !errors.Is(err, domain.ErrDuplicateAccount) {
		t.Errorf("same email: error = %v, want ErrDuplicateAccount", err)
	}
}

func TestRegisterStartsAtZero(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "cc-1", "300111")

	balance, err := svc.Balance(context.Background(), "cc-1", "300111")
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	if balance.Cents() != 0 {
		t.Errorf("balance = %v, want 0.00", balance)
	}
}

// ─── TopUp ──────────────────────────────────────────────────────────────────

func TestTopUp(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "cc-1", "300111")

	balance, err := svc.TopUp(context.Background(), TopUpRequest{
		Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "100.00"),
	})
	if err != nil {
		t.Fatalf("TopUp() error: %v", err)
	}
	if balance.String() != "100.00" {
		t.Errorf("balance = %v, want 100.00", balance)
	}
}

func TestTopUpRejectsNonPositiveAmount(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "cc-1", "300111")

	for _, amount := range []string{"0", "-5.00"} {
		_, err := svc.TopUp(context.Background(), TopUpRequest{
			Document: "cc-1", Phone: "300111", Amount: mustMoney(t, amount),
		})
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("amount %s: error = %v, want ErrInvalidInput", amount, err)
		}
	}
}

func TestTopUpUnknownAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.TopUp(context.Background(), TopUpRequest{
		Document: "nobody", Phone: "0", Amount: mustMoney(t, "10.00"),
	})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}

// ─── Initiate ───────────────────────────────────────────────────────────────

func TestInitiateDeliversCode(t *testing.T) {
	svc, _, notifier := newTestService(t)
	register(t, svc, "cc-1", "300111")
	svc.TopUp(context.Background(), TopUpRequest{Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "100.00")})

	res, err := svc.InitiatePayment(context.Background(), InitiateRequest{
		Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "40.00"),
	})
	if err != nil {
		t.Fatalf("InitiatePayment() error: %v", err)
	}
	if res.SessionID == "" {
		t.Error("SessionID is empty")
	}
	if res.Message == "" {
		t.Error("Message is empty")
	}
	if code := notifier.lastCode(t); len(code) != 6 {
		t.Errorf("delivered code %q, want six digits", code)
	}
}

func TestInitiateInsufficientFundsFailsFast(t *testing.T) {
	svc, _, notifier := newTestService(t)
	register(t, svc, "cc-1", "300111")
	svc.TopUp(context.Background(), TopUpRequest{Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "10.00")})

	_, err := svc.InitiatePayment(context.Background(), InitiateRequest{
		Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "50.00"),
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}
	if len(notifier.codes) != 0 {
		t.Error("no code should be issued when initiation fails")
	}
}

func TestInitiateSurvivesNotifierFailure(t *testing.T) {
	svc, _, notifier := newTestService(t)
	register(t, svc, "cc-1", "300111")
	svc.TopUp(context.Background(), TopUpRequest{Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "100.00")})

	notifier.fail = true
	res, err := svc.InitiatePayment(context.Background(), InitiateRequest{
		Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "40.00"),
	})
	if err != nil {
		t.Fatalf("InitiatePayment() error: %v (delivery failure must not fail initiation)", err)
	}
	if res.SessionID == "" {
		t.Error("session must exist despite delivery failure")
	}
}

// ─── Confirm ────────────────────────────────────────────────────────────────

func initiatedSession(t *testing.T, svc *Service, notifier *captureNotifier, amount string) (sessionID, code string) {
	t.Helper()
	res, err := svc.InitiatePayment(context.Background(), InitiateRequest{
		Document: "cc-1", Phone: "300111", Amount: mustMoney(t, amount),
	})
	if err != nil {
		t.Fatalf("InitiatePayment() error: %v", err)
	}
	return res.SessionID, notifier.lastCode(t)
}

func TestConfirmTwoSessionsThenReplay(t *testing.T) {
	svc, _, notifier := newTestService(t)
	register(t, svc, "cc-1", "300111")
	svc.TopUp(context.Background(), TopUpRequest{Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "100.00")})

	s1, code1 := initiatedSession(t, svc, notifier, "40.00")
	s2, code2 := initiatedSession(t, svc, notifier, "40.00")

	balance, err := svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: s1, Token: code1})
	if err != nil {
		t.Fatalf("confirm S1 error: %v", err)
	}
	if balance.String() != "60.00" {
		t.Errorf("balance after S1 = %v, want 60.00", balance)
	}

	balance, err = svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: s2, Token: code2})
	if err != nil {
		t.Fatalf("confirm S2 error: %v", err)
	}
	if balance.String() != "20.00" {
		t.Errorf("balance after S2 = %v, want 20.00", balance)
	}

	_, err = svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: s1, Token: code1})
	if !errors.Is(err, domain.ErrInvalidSessionState) {
		t.Errorf("replaying S1: error = %v, want ErrInvalidSessionState", err)
	}
}

func TestConfirmWrongToken(t *testing.T) {
	svc, _, notifier := newTestService(t)
	register(t, svc, "cc-1", "300111")
	svc.TopUp(context.Background(), TopUpRequest{Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "100.00")})
	sessionID, code := initiatedSession(t, svc, notifier, "40.00")

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err := svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: sessionID, Token: wrong})
	if !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("error = %v, want ErrInvalidToken", err)
	}

	// The session stays PENDING, so the right code still works.
	if _, err := svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: sessionID, Token: code}); err != nil {
		t.Errorf("retry with correct token: %v", err)
	}
}

func TestConfirmExpiredBeatsCorrectToken(t *testing.T) {
	svc, clock, notifier := newTestService(t)
	register(t, svc, "cc-1", "300111")
	svc.TopUp(context.Background(), TopUpRequest{Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "100.00")})
	sessionID, code := initiatedSession(t, svc, notifier, "40.00")

	clock.Advance(10*time.Minute + time.Second)

	_, err := svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: sessionID, Token: code})
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("first late confirm: error = %v, want ErrSessionExpired", err)
	}

	// The expiry transition is terminal: the second attempt sees EXPIRED.
	_, err = svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: sessionID, Token: code})
	if !errors.Is(err, domain.ErrInvalidSessionState) {
		t.Errorf("second late confirm: error = %v, want ErrInvalidSessionState", err)
	}

	balance, _ := svc.Balance(context.Background(), "cc-1", "300111")
	if balance.String() != "100.00" {
		t.Errorf("balance = %v, want 100.00 (expired session must not debit)", balance)
	}
}

func TestConfirmAtDeadlineStillValid(t *testing.T) {
	svc, clock, notifier := newTestService(t)
	register(t, svc, "cc-1", "300111")
	svc.TopUp(context.Background(), TopUpRequest{Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "100.00")})
	sessionID, code := initiatedSession(t, svc, notifier, "40.00")

	clock.Advance(10 * time.Minute) // exactly expires_at

	if _, err := svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: sessionID, Token: code}); err != nil {
		t.Errorf("confirm at the deadline: %v, want success", err)
	}
}

func TestConfirmInsufficientFundsIsRetryable(t *testing.T) {
	svc, _, notifier := newTestService(t)
	register(t, svc, "cc-1", "300111")
	svc.TopUp(context.Background(), TopUpRequest{Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "100.00")})

	s1, code1 := initiatedSession(t, svc, notifier, "80.00")
	s2, code2 := initiatedSession(t, svc, notifier, "80.00")

	if _, err := svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: s1, Token: code1}); err != nil {
		t.Fatalf("confirm S1 error: %v", err)
	}

	// Balance is 20.00 now; S2 cannot be funded yet.
	_, err := svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: s2, Token: code2})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("confirm S2 error = %v, want ErrInsufficientFunds", err)
	}

	// Top up and retry the same session before it expires.
	svc.TopUp(context.Background(), TopUpRequest{Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "60.00")})
	balance, err := svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: s2, Token: code2})
	if err != nil {
		t.Fatalf("retry S2 error: %v", err)
	}
	if balance.String() != "0.00" {
		t.Errorf("balance = %v, want 0.00", balance)
	}
}

func TestConfirmUnknownSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.ConfirmPayment(context.Background(), ConfirmRequest{SessionID: "missing", Token: "123456"})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestConfirmValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	for _, req := range []ConfirmRequest{{SessionID: "s"}, {Token: "123456"}, {}} {
		if _, err := svc.ConfirmPayment(context.Background(), req); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("%+v: error = %v, want ErrInvalidInput", req, err)
		}
	}
}

// ─── Sweeper ────────────────────────────────────────────────────────────────

func TestSweeperExpiresOverdueSessions(t *testing.T) {
	svc, clock, notifier, db := newTestServiceStore(t)
	register(t, svc, "cc-1", "300111")
	svc.TopUp(context.Background(), TopUpRequest{Document: "cc-1", Phone: "300111", Amount: mustMoney(t, "100.00")})
	sessionID, _ := initiatedSession(t, svc, notifier, "40.00")

	clock.Advance(11 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		sess, err := db.SessionByID(context.Background(), sessionID)
		if err != nil {
			t.Fatal(err)
		}
		if sess.Status == domain.SessionExpired {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never expired; status = %q", sess.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	balance, _ := svc.Balance(context.Background(), "cc-1", "300111")
	if balance.String() != "100.00" {
		t.Errorf("balance = %v, want 100.00", balance)
	}
}
