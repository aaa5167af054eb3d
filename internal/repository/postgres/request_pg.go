// internal/repository/postgres/request_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"
)

const requestColumns = `id, kind, user_id, user_email, amount, status, created_at, updated_at,
	wallet_id, wallet_id_name, wallet_network, token_id, secret_code, screenshot_path`

// RequestRepository implements repository.RequestRepository for PostgreSQL.
// Both kinds share the payout_requests table.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

var _ repository.RequestRepository = (*RequestRepository)(nil)

// CreateRequest inserts a new request.
func (r *RequestRepository) CreateRequest(ctx context.Context, req *domain.Request) error {
	query := `INSERT INTO payout_requests (` + requestColumns + `)
              VALUES (:id, :kind, :user_id, :user_email, :amount, :status, :created_at, :updated_at,
                      :wallet_id, :wallet_id_name, :wallet_network, :token_id, :secret_code, :screenshot_path)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("failed to create %s request: %w", req.Kind, err)
	}
	return nil
}

// GetRequest retrieves a request by kind and ID.
func (r *RequestRepository) GetRequest(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error) {
	var req domain.Request
	query := `SELECT ` + requestColumns + ` FROM payout_requests WHERE kind = $1 AND id::text = $2`
	if err := r.db.GetContext(ctx, &req, query, kind, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s request %s: %w", kind, id, err)
	}
	return &req, nil
}

// ListRequests returns matching requests, withdraws before cashouts, oldest first within a kind.
func (r *RequestRepository) ListRequests(ctx context.Context, filter repository.RequestFilter) ([]domain.Request, error) {
	out := []domain.Request{}
	query := `SELECT ` + requestColumns + ` FROM payout_requests
              WHERE ($1 = '' OR kind = $1) AND ($2 = '' OR user_id = $2)
              ORDER BY kind DESC, created_at, id`
	if err := r.db.SelectContext(ctx, &out, query, string(filter.Kind), filter.UserID); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return out, nil
}

// UpdateRequest overwrites the mutable fields of an existing request.
func (r *RequestRepository) UpdateRequest(ctx context.Context, req *domain.Request) error {
	query := `UPDATE payout_requests
              SET status = :status, updated_at = :updated_at, screenshot_path = :screenshot_path
              WHERE kind = :kind AND CAST(id AS text) = :id`
	result, err := r.db.NamedExecContext(ctx, query, req)
	if err != nil {
		return fmt.Errorf("failed to update %s request %s: %w", req.Kind, req.ID, err)
	}
	return expectOneRow(result, util.ErrNotFound)
}

// DeleteRequest removes a request.
func (r *RequestRepository) DeleteRequest(ctx context.Context, kind domain.RequestKind, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM payout_requests WHERE kind = $1 AND id::text = $2`, kind, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s request %s: %w", kind, id, err)
	}
	return expectOneRow(result, util.ErrNotFound)
}

func expectOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
