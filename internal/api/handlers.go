package api

import (
	"net/http"

	"github.com/walletnet/walletd/internal/app/ledger"
)

// ─── Ledger Handlers ────────────────────────────────────────────────────────
// Each handler decodes its request, delegates to the ledger, and wraps the
// outcome in the envelope. No business rules here.

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req ledger.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	accountID, err := s.ledger.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]string{"client_id": accountID})
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	var req ledger.TopUpRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	balance, err := s.ledger.TopUp(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]string{"balance": balance.String()})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	balance, err := s.ledger.Balance(r.Context(), q.Get("document"), q.Get("phone"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]string{"balance": balance.String()})
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req ledger.InitiateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.ledger.InitiatePayment(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, res)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req ledger.ConfirmRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	balance, err := s.ledger.ConfirmPayment(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]string{"balance": balance.String()})
}
