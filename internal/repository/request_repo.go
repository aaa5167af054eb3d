// internal/repository/request_repo.go
package repository

import (
	"context"

	"balance-ledger/internal/domain"
)

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	Kind   domain.RequestKind
	UserID string
}

// RequestRepository defines the interface for the withdraw/cashout request log.
type RequestRepository interface {
	// CreateRequest appends a new request to the log for its kind.
	CreateRequest(ctx context.Context, req *domain.Request) error
	// GetRequest returns the request or util.ErrNotFound.
	GetRequest(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error)
	// ListRequests returns matching requests in insertion order.
	ListRequests(ctx context.Context, filter RequestFilter) ([]domain.Request, error)
	// UpdateRequest replaces a stored request; util.ErrNotFound if it does not exist.
	UpdateRequest(ctx context.Context, req *domain.Request) error
	// DeleteRequest removes a request; util.ErrNotFound if it does not exist.
	DeleteRequest(ctx context.Context, kind domain.RequestKind, id string) error
}
