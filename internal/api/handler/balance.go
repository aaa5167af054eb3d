// internal/api/handler/balance.go
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"balance-ledger/internal/service"
	"balance-ledger/internal/util"
)

// BalanceHandler handles HTTP requests for user balances.
type BalanceHandler struct {
	responder
	ledger   service.LedgerService
	currency string
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(ledger service.LedgerService, currency string, logger *logrus.Logger) *BalanceHandler {
	return &BalanceHandler{
		responder: responder{logger: logger},
		ledger:    ledger,
		currency:  currency,
	}
}

// BalanceChangeRequest represents the request body for add and deduct.
type BalanceChangeRequest struct {
	UserID     string          `json:"userId"`
	Amount     json.RawMessage `json:"amount"`
	Reason     string          `json:"reason"`
	AdminEmail string          `json:"adminEmail"`
}

// GetUserBalance returns the user's balance, zero when no record exists.
// GET /api/balance/user/{userID}
func (h *BalanceHandler) GetUserBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	rec, err := h.ledger.GetBalance(r.Context(), userID)
	if util.IsError(err, util.ErrUserNotFound) {
		h.respondOK(w, http.StatusOK, "", map[string]interface{}{
			"userId":   userID,
			"balance":  decimal.Zero,
			"currency": h.currency,
		})
		return
	}
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondOK(w, http.StatusOK, "", map[string]interface{}{
		"userId":      rec.UserID,
		"balance":     rec.Balance,
		"currency":    rec.Currency,
		"lastUpdated": rec.LastUpdated,
	})
}

// EnsureInitialized creates the user's balance with the welcome bonus on first call.
// POST /api/balance/ensure-initialized/{userID} and /api/balance/init/{userID}
func (h *BalanceHandler) EnsureInitialized(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	rec, isNew, err := h.ledger.EnsureInitialized(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	message := "User balance already initialized"
	if isNew {
		message = "User balance ensured with welcome bonus"
		if rec.Bonus != nil {
			message = fmt.Sprintf("User balance ensured with GH%s welcome bonus", rec.Bonus.StringFixed(2))
		}
	}
	h.respondOK(w, http.StatusOK, message, map[string]interface{}{
		"userId":  rec.UserID,
		"balance": rec.Balance,
		"isNew":   isNew,
	})
}

func (h *BalanceHandler) readChange(w http.ResponseWriter, r *http.Request) (BalanceChangeRequest, decimal.Decimal, error) {
	var req BalanceChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return req, decimal.Zero, err
	}
	if strings.TrimSpace(req.UserID) == "" {
		return req, decimal.Zero, &util.ValidationError{Fields: map[string]string{"userId": "is required"}}
	}
	amount, err := parseAmountField(req.Amount)
	return req, amount, err
}

// AddBalance credits a user.
// POST /api/balance/add
func (h *BalanceHandler) AddBalance(w http.ResponseWriter, r *http.Request) {
	req, amount, err := h.readChange(w, r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	change, err := h.ledger.Credit(r.Context(), req.UserID, amount, req.Reason, req.AdminEmail)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondOK(w, http.StatusOK, fmt.Sprintf("Added GH%s to user account", amount.StringFixed(2)), changeFields(change, amount))
}

// DeductBalance debits a user.
// POST /api/balance/deduct
func (h *BalanceHandler) DeductBalance(w http.ResponseWriter, r *http.Request) {
	req, amount, err := h.readChange(w, r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	change, err := h.ledger.Debit(r.Context(), req.UserID, amount, req.Reason, req.AdminEmail)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondOK(w, http.StatusOK, fmt.Sprintf("Deducted GH%s from user account", amount.StringFixed(2)), changeFields(change, amount))
}

func changeFields(change *service.BalanceChange, amount decimal.Decimal) map[string]interface{} {
	return map[string]interface{}{
		"userId":          change.UserID,
		"amount":          amount,
		"previousBalance": change.PreviousBalance,
		"newBalance":      change.NewBalance,
		"currency":        change.Currency,
		"transaction":     change.Entry,
	}
}

// ListBalances returns every balance without history.
// GET /api/balance/all
func (h *BalanceHandler) ListBalances(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.ListBalances(r.Context())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "", map[string]interface{}{
		"balances":     summary.Balances,
		"totalUsers":   summary.TotalUsers,
		"totalBalance": summary.TotalBalance,
	})
}

// GetHistory returns the user's audit trail.
// GET /api/balance/history/{userID}
func (h *BalanceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ledger.GetBalance(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "", map[string]interface{}{
		"userId":         rec.UserID,
		"currentBalance": rec.Balance,
		"createdAt":      rec.CreatedAt,
		"transactions":   rec.Transactions,
	})
}
