// internal/api/handler/response.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/util"
)

// DefaultTimeout bounds how long a request may run.
const DefaultTimeout = 30 * time.Second

// responder writes the JSON envelope shared by all handlers.
type responder struct {
	logger *logrus.Logger
}

// Helper function to send JSON responses.
func (h responder) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondOK sends a success envelope with message and the extra fields.
func (h responder) respondOK(w http.ResponseWriter, code int, message string, fields map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	h.respondWithJSON(w, code, body)
}

// Helper function to send error responses. Internal details are logged, never returned.
func (h responder) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"
	body := map[string]interface{}{"success": false}

	var (
		validationErr   *util.ValidationError
		insufficientErr *util.InsufficientBalanceError
	)
	switch {
	case errors.As(err, &validationErr):
		statusCode = http.StatusBadRequest
		message = validationErr.Error()
		body["errors"] = validationErr.Fields
	case errors.As(err, &insufficientErr):
		statusCode = http.StatusBadRequest
		message = fmt.Sprintf("Insufficient balance. Current: GH%s, Required: GH%s",
			insufficientErr.Current.StringFixed(2), insufficientErr.Required.StringFixed(2))
	case util.IsError(err, util.ErrInvalidAmount):
		statusCode = http.StatusBadRequest
		message = "Amount must be a positive number"
	case util.IsError(err, util.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrUserNotFound):
		statusCode = http.StatusNotFound
		message = "User not found"
	case util.IsError(err, util.ErrRequestNotFound):
		statusCode = http.StatusNotFound
		message = "Request not found"
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case util.IsError(err, util.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		message = "Unauthorized"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		statusCode = http.StatusServiceUnavailable
		message = "Service busy, please retry"
		h.entry(r).WithError(err).Warn("Request abandoned before completion")
	case util.IsError(err, util.ErrCorruptStore):
		h.entry(r).WithError(err).WithField("alert", "corrupt_store").Error("Persisted store is corrupt; operator action required")
	default:
		h.entry(r).WithError(err).Error("Unhandled service error")
	}

	body["message"] = message
	h.respondWithJSON(w, statusCode, body)
}

func (h responder) entry(r *http.Request) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	})
}

// MaxJSONBodyBytes bounds every JSON request body.
const MaxJSONBodyBytes = 64 << 10

// decodeJSON reads at most MaxJSONBodyBytes of the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes: %w", MaxJSONBodyBytes, util.ErrInvalidInput)
		}
		return fmt.Errorf("malformed JSON body: %w", util.ErrInvalidInput)
	}
	return nil
}

// parseAmountField accepts an amount sent either as a JSON number or a string.
func parseAmountField(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, util.ErrInvalidAmount
	}
	return domain.ParseAmount(strings.Trim(s, `"`))
}
