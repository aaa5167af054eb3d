// internal/api/handler/request.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/service"
	"balance-ledger/internal/util"
)

// multipartOverhead is the allowance for form fields on top of the upload itself.
const multipartOverhead = 1 << 20

// RequestHandler handles HTTP requests for withdraw and cashout requests.
type RequestHandler struct {
	responder
	requests       service.RequestService
	maxUploadBytes int64
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(requests service.RequestService, maxUploadBytes int64, logger *logrus.Logger) *RequestHandler {
	return &RequestHandler{
		responder:      responder{logger: logger},
		requests:       requests,
		maxUploadBytes: maxUploadBytes,
	}
}

// WithdrawRequestBody represents the request body for a withdraw submission.
type WithdrawRequestBody struct {
	UserID        string          `json:"userId"`
	UserEmail     string          `json:"userEmail"`
	Amount        json.RawMessage `json:"amount"`
	WalletID      string          `json:"walletId"`
	WalletIDName  string          `json:"walletIdName"`
	WalletNetwork string          `json:"walletNetwork"`
}

// StatusUpdateBody represents the request body for a status change.
type StatusUpdateBody struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ActivityItem is one entry of a user's recent activity.
type ActivityItem struct {
	ID        string                 `json:"id"`
	Type      domain.RequestKind     `json:"type"`
	Amount    decimal.Decimal        `json:"amount"`
	Status    domain.RequestStatus   `json:"status"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt *time.Time             `json:"updatedAt,omitempty"`
	Details   map[string]interface{} `json:"details"`
}

func newActivityItem(req domain.Request) ActivityItem {
	details := map[string]interface{}{"walletId": req.WalletID}
	switch req.Kind {
	case domain.RequestKindWithdraw:
		details["walletNetwork"] = req.WalletNetwork
		details["walletIdName"] = req.WalletIDName
	case domain.RequestKindCashout:
		details["tokenId"] = req.TokenID
	}
	return ActivityItem{
		ID:        req.ID,
		Type:      req.Kind,
		Amount:    req.Amount,
		Status:    req.Status,
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.UpdatedAt,
		Details:   details,
	}
}

// SubmitWithdraw records a withdraw request.
// POST /api/withdraw/request
func (h *RequestHandler) SubmitWithdraw(w http.ResponseWriter, r *http.Request) {
	var body WithdrawRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	amount, err := parseAmountField(body.Amount)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	req, err := h.requests.SubmitWithdraw(r.Context(), service.WithdrawInput{
		UserID:        body.UserID,
		UserEmail:     body.UserEmail,
		Amount:        amount,
		WalletID:      body.WalletID,
		WalletIDName:  body.WalletIDName,
		WalletNetwork: body.WalletNetwork,
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondOK(w, http.StatusCreated, "Withdraw request submitted successfully", map[string]interface{}{
		"requestId": req.ID,
		"request":   req,
	})
}

// SubmitCashout records a cashout request with its proof-of-payment upload.
// POST /api/cashout/request (multipart/form-data, file field "screenshot")
func (h *RequestHandler) SubmitCashout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondWithError(w, r, fmt.Errorf("upload exceeds %d bytes: %w", h.maxUploadBytes, util.ErrInvalidInput))
			return
		}
		h.respondWithError(w, r, fmt.Errorf("malformed multipart form: %w", util.ErrInvalidInput))
		return
	}
	defer r.MultipartForm.RemoveAll()

	amount, err := domain.ParseAmount(r.FormValue("amount"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	in := service.CashoutInput{
		UserID:     r.FormValue("userId"),
		UserEmail:  r.FormValue("userEmail"),
		Amount:     amount,
		TokenID:    r.FormValue("tokenId"),
		SecretCode: r.FormValue("secretCode"),
		WalletID:   r.FormValue("walletId"),
	}

	file, header, err := r.FormFile("screenshot")
	switch {
	case err == nil:
		defer file.Close()
		in.Screenshot = file
		in.ScreenshotName = header.Filename
	case errors.Is(err, http.ErrMissingFile):
	default:
		h.respondWithError(w, r, fmt.Errorf("unreadable screenshot: %w", util.ErrInvalidInput))
		return
	}

	req, err := h.requests.SubmitCashout(r.Context(), in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	h.respondOK(w, http.StatusCreated, "Cashout request submitted successfully", map[string]interface{}{
		"requestId": req.ID,
		"request":   req,
	})
}

// ListByKind returns the requests of one kind, newest first.
// GET /api/withdraw/requests and /api/cashout/requests
func (h *RequestHandler) ListByKind(kind domain.RequestKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqs, err := h.requests.ListRequests(r.Context(), kind)
		if err != nil {
			h.respondWithError(w, r, err)
			return
		}
		h.respondOK(w, http.StatusOK, "", map[string]interface{}{
			"requests": reqs,
			"count":    len(reqs),
		})
	}
}

// DeleteByKind removes one request of the given kind.
// DELETE /api/withdraw/{requestID} and /api/cashout/{requestID}
func (h *RequestHandler) DeleteByKind(kind domain.RequestKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.requests.DeleteRequest(r.Context(), kind, chi.URLParam(r, "requestID")); err != nil {
			h.respondWithError(w, r, err)
			return
		}
		h.respondOK(w, http.StatusOK, fmt.Sprintf("%s request deleted", kindTitle(kind)), nil)
	}
}

func kindTitle(kind domain.RequestKind) string {
	if kind == domain.RequestKindCashout {
		return "Cashout"
	}
	return "Withdraw"
}

// UserActivity returns the user's most recent requests.
// GET /api/transactions/user/{userID}?limit=N
func (h *RequestHandler) UserActivity(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondWithError(w, r, &util.ValidationError{Fields: map[string]string{"limit": "must be a positive integer"}})
			return
		}
		limit = n
	}

	reqs, err := h.requests.UserActivity(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	items := make([]ActivityItem, 0, len(reqs))
	for _, req := range reqs {
		items = append(items, newActivityItem(req))
	}
	h.respondOK(w, http.StatusOK, "", map[string]interface{}{"transactions": items})
}

// UpdateStatus changes a request's status from a JSON body naming the request.
// POST /api/transactions/update-status
func (h *RequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body StatusUpdateBody
	if err := decodeJSON(w, r, &body); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.updateStatus(w, r, body.Type, body.ID, body.Status)
}

// UpdateStatusByPath changes a request's status named by the URL.
// PUT /api/admin/{kind}/{requestID}/status
func (h *RequestHandler) UpdateStatusByPath(w http.ResponseWriter, r *http.Request) {
	var body StatusUpdateBody
	if err := decodeJSON(w, r, &body); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.updateStatus(w, r, chi.URLParam(r, "kind"), chi.URLParam(r, "requestID"), body.Status)
}

func (h *RequestHandler) updateStatus(w http.ResponseWriter, r *http.Request, rawKind, id, rawStatus string) {
	fields := map[string]string{}
	kind, err := domain.ParseRequestKind(rawKind)
	if err != nil {
		fields["type"] = "must be one of: withdraw, cashout"
	}
	status, err := domain.ParseRequestStatus(rawStatus)
	if err != nil {
		fields["status"] = "must be one of: pending, approved, rejected, completed, failed"
	}
	if id == "" {
		fields["id"] = "is required"
	}
	if len(fields) > 0 {
		h.respondWithError(w, r, &util.ValidationError{Fields: fields})
		return
	}

	req, err := h.requests.UpdateStatus(r.Context(), kind, id, status)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, fmt.Sprintf("%s status updated to %s", kindTitle(kind), status), map[string]interface{}{
		"request": req,
	})
}

// ListAll returns both request logs merged, newest first.
// GET /api/admin/transactions
func (h *RequestHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ListRequests(r.Context(), "")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "", map[string]interface{}{"transactions": reqs})
}

// Stats returns request counts by kind and status.
// GET /api/admin/stats
func (h *RequestHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.requests.Stats(r.Context())
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondOK(w, http.StatusOK, "", map[string]interface{}{"stats": stats})
}
