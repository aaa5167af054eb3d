// internal/domain/request.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestKind distinguishes the two payout request logs.
type RequestKind string

const (
	RequestKindWithdraw RequestKind = "withdraw"
	RequestKindCashout  RequestKind = "cashout"
)

// ParseRequestKind validates a kind received from a client.
func ParseRequestKind(s string) (RequestKind, error) {
	switch RequestKind(strings.ToLower(strings.TrimSpace(s))) {
	case RequestKindWithdraw:
		return RequestKindWithdraw, nil
	case RequestKindCashout:
		return RequestKindCashout, nil
	}
	return "", fmt.Errorf("unknown request type %q", s)
}

// RequestStatus is the admin-controlled lifecycle state of a payout request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusFailed    RequestStatus = "failed"
)

// RequestStatuses lists every valid status in display order.
var RequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusApproved,
	RequestStatusRejected,
	RequestStatusCompleted,
	RequestStatusFailed,
}

// ParseRequestStatus validates a status. The legacy value "success" maps to completed.
func ParseRequestStatus(s string) (RequestStatus, error) {
	v := RequestStatus(strings.ToLower(strings.TrimSpace(s)))
	if v == "success" {
		return RequestStatusCompleted, nil
	}
	for _, st := range RequestStatuses {
		if v == st {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// WalletNetworks are the payout networks a withdraw may target.
var WalletNetworks = []string{"mtn", "vodafone", "airtel", "bank", "other"}

// Request is a withdraw or cashout request. Kind-specific fields are empty for the other kind.
type Request struct {
	ID        string          `db:"id" json:"id"`
	Kind      RequestKind     `db:"kind" json:"type"`
	UserID    string          `db:"user_id" json:"userId"`
	UserEmail string          `db:"user_email" json:"userEmail"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    RequestStatus   `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt *time.Time      `db:"updated_at" json:"updatedAt,omitempty"`

	// Shared by both kinds.
	WalletID string `db:"wallet_id" json:"walletId"`

	// Withdraw only.
	WalletIDName  string `db:"wallet_id_name" json:"walletIdName,omitempty"`
	WalletNetwork string `db:"wallet_network" json:"walletNetwork,omitempty"`

	// Cashout only.
	TokenID        string `db:"token_id" json:"tokenId,omitempty"`
	SecretCode     string `db:"secret_code" json:"secretCode,omitempty"`
	ScreenshotPath string `db:"screenshot_path" json:"screenshotPath,omitempty"`
}

// NewRequest creates a pending request with a generated ID.
func NewRequest(kind RequestKind, userID, userEmail string, amount decimal.Decimal) *Request {
	return &Request{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    userID,
		UserEmail: userEmail,
		Amount:    amount,
		Status:    RequestStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a copy that does not share the UpdatedAt pointer.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	if r.UpdatedAt != nil {
		t := *r.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}
