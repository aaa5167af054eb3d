// internal/repository/balance_repo.go
package repository

import (
	"context"

	"balance-ledger/internal/domain"
)

// BalanceRepository defines the interface for ledger store operations.
// Implementations persist every SaveBalance atomically; a failed save leaves
// the previously stored state visible to subsequent reads.
type BalanceRepository interface {
	// GetBalance returns the record for userID or util.ErrNotFound.
	GetBalance(ctx context.Context, userID string) (*domain.BalanceRecord, error)
	// SaveBalance inserts or replaces the record keyed by its UserID.
	SaveBalance(ctx context.Context, record *domain.BalanceRecord) error
	// ListBalances returns every record ordered by creation time.
	ListBalances(ctx context.Context) ([]domain.BalanceRecord, error)
}
