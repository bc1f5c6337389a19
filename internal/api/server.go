// Package api provides the HTTP facade over the wallet ledger. Every
// business outcome travels in a uniform envelope; handlers stay thin and
// all invariant enforcement lives below, in the ledger service.
package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/walletnet/walletd/internal/app/ledger"
	"github.com/walletnet/walletd/internal/domain"
	"github.com/walletnet/walletd/internal/infra/observability"
)

// Version is the API version reported by /api/version.
const Version = "1.0.0"

// Server is the wallet HTTP API server.
type Server struct {
	ledger         *ledger.Service
	apiKey         string
	metricsEnabled bool
	log            *slog.Logger
}

// NewServer creates an API server. An empty apiKey leaves the gate open;
// set one in any deployment that is reachable from outside.
func NewServer(svc *ledger.Service, apiKey string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{ledger: svc, apiKey: apiKey, log: log}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": Version})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Ledger operations sit behind the access gate.
	r.Group(func(r chi.Router) {
		r.Use(s.gate)
		r.Method(http.MethodPost, "/clients/register", s.route("/clients/register", s.handleRegister))
		r.Method(http.MethodPost, "/wallet/topup", s.route("/wallet/topup", s.handleTopUp))
		r.Method(http.MethodGet, "/wallet/balance", s.route("/wallet/balance", s.handleBalance))
		r.Method(http.MethodPost, "/payments/initiate", s.route("/payments/initiate", s.handleInitiate))
		r.Method(http.MethodPost, "/payments/confirm", s.route("/payments/confirm", s.handleConfirm))
	})

	return r
}

func (s *Server) route(pattern string, h http.HandlerFunc) http.Handler {
	return observability.Middleware(pattern, h)
}

// ─── Access Gate ────────────────────────────────────────────────────────────

// gate rejects requests whose X-API-Key header does not match the
// configured secret. Hashing both sides first keeps the comparison
// constant-time regardless of key length. Rejection happens before any
// store access.
func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			want := sha256.Sum256([]byte(s.apiKey))
			got := sha256.Sum256([]byte(r.Header.Get("X-API-Key")))
			if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
				s.log.Warn("request rejected by gate", "path", r.URL.Path, "remote", r.RemoteAddr)
				writeEnvelopeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Response Envelope ──────────────────────────────────────────────────────

// envelope is the uniform response body. cod_error is "00" on success and
// a taxonomy code otherwise; data is empty when success is false.
type envelope struct {
	Success      bool   `json:"success"`
	CodError     string `json:"cod_error"`
	MessageError string `json:"message_error"`
	Data         any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeData writes a successful envelope.
func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{
		Success:  true,
		CodError: domain.CodeOK,
		Data:     data,
	})
}

// writeError maps a ledger error to its envelope. Business failures are
// HTTP 200 with success=false; only infrastructure failures surface as 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusOK
	if domain.CodeOf(err) == domain.CodeInternal {
		status = http.StatusInternalServerError
	}
	writeEnvelopeError(w, status, err)
}

func writeEnvelopeError(w http.ResponseWriter, status int, err error) {
	code := domain.CodeOf(err)
	msg := err.Error()
	if code == domain.CodeInternal {
		// Do not leak internals to the caller.
		msg = "internal error"
	}
	writeJSON(w, status, envelope{
		Success:      false,
		CodError:     code,
		MessageError: msg,
	})
}

// decode parses a JSON request body, mapping malformed payloads to
// InvalidInput.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return nil
}
