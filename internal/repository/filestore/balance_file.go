// internal/repository/filestore/balance_file.go
package filestore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"
)

// BalancesFileName is the ledger file inside the data directory.
const BalancesFileName = "user_balances.json"

// BalanceRepository implements repository.BalanceRepository on a single JSON file.
// The decoded ledger is held in memory; every save writes a full snapshot and
// only replaces the in-memory state once the snapshot is durable.
type BalanceRepository struct {
	mu      sync.RWMutex
	file    *jsonFile
	records []domain.BalanceRecord
	index   map[string]int
}

// NewBalanceRepository loads (or initializes) the ledger file under dataDir.
func NewBalanceRepository(dataDir string) (*BalanceRepository, error) {
	r := &BalanceRepository{
		file:  newJSONFile(filepath.Join(dataDir, BalancesFileName)),
		index: make(map[string]int),
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

var _ repository.BalanceRepository = (*BalanceRepository)(nil)

func (r *BalanceRepository) reload() error {
	var records []domain.BalanceRecord
	if err := r.file.load(&records); err != nil {
		return err
	}

	index := make(map[string]int, len(records))
	for i := range records {
		if records[i].Transactions == nil {
			records[i].Transactions = []domain.TransactionEntry{}
		}
		if records[i].Currency == "" {
			records[i].Currency = domain.DefaultCurrency
		}
		if _, dup := index[records[i].UserID]; dup {
			return &util.CorruptStoreError{
				Path: BalancesFileName,
				Err:  fmt.Errorf("duplicate record for user %q", records[i].UserID),
			}
		}
		index[records[i].UserID] = i
	}

	r.records = records
	r.index = index
	return nil
}

// GetBalance returns a copy of the user's record.
func (r *BalanceRepository) GetBalance(ctx context.Context, userID string) (*domain.BalanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[userID]
	if !ok {
		return nil, util.ErrNotFound
	}
	return r.records[i].Clone(), nil
}

// SaveBalance replaces or appends the record and persists the whole ledger.
func (r *BalanceRepository) SaveBalance(ctx context.Context, record *domain.BalanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]domain.BalanceRecord, len(r.records), len(r.records)+1)
	copy(next, r.records)

	stored := record.Clone()
	i, exists := r.index[record.UserID]
	if exists {
		next[i] = *stored
	} else {
		next = append(next, *stored)
	}

	if err := r.file.write(next); err != nil {
		return fmt.Errorf("failed to save balance for user %s: %w", record.UserID, err)
	}

	r.records = next
	if !exists {
		r.index[record.UserID] = len(next) - 1
	}
	return nil
}

// ListBalances returns copies of all records in file order.
func (r *BalanceRepository) ListBalances(ctx context.Context) ([]domain.BalanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.BalanceRecord, 0, len(r.records))
	for i := range r.records {
		out = append(out, *r.records[i].Clone())
	}
	return out, nil
}
