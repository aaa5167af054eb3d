// internal/repository/filestore/request_file.go
package filestore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"
)

// Request log file names inside the data directory.
const (
	WithdrawRequestsFileName = "withdraw_requests.json"
	CashoutRequestsFileName  = "cashout_requests.json"
)

// legacyRequestNamespace derives stable IDs for records written before requests carried one.
var legacyRequestNamespace = uuid.MustParse("6f1f6a52-9d3c-4c7e-8f0e-2f1d8a7c5b10")

type requestLog struct {
	file  *jsonFile
	items []domain.Request
}

// RequestRepository implements repository.RequestRepository with one JSON file per request kind.
type RequestRepository struct {
	mu   sync.RWMutex
	logs map[domain.RequestKind]*requestLog
}

// NewRequestRepository loads (or initializes) both request logs under dataDir.
func NewRequestRepository(dataDir string) (*RequestRepository, error) {
	r := &RequestRepository{
		logs: map[domain.RequestKind]*requestLog{
			domain.RequestKindWithdraw: {file: newJSONFile(filepath.Join(dataDir, WithdrawRequestsFileName))},
			domain.RequestKindCashout:  {file: newJSONFile(filepath.Join(dataDir, CashoutRequestsFileName))},
		},
	}
	for kind, l := range r.logs {
		var items []domain.Request
		if err := l.file.load(&items); err != nil {
			return nil, err
		}
		for i := range items {
			items[i].Kind = kind
			if items[i].ID == "" {
				key := items[i].UserID + "|" + items[i].CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
				items[i].ID = uuid.NewSHA1(legacyRequestNamespace, []byte(key)).String()
			}
			if items[i].Status == "" {
				items[i].Status = domain.RequestStatusPending
			}
		}
		l.items = items
	}
	return r, nil
}

var _ repository.RequestRepository = (*RequestRepository)(nil)

func (r *RequestRepository) log(kind domain.RequestKind) (*requestLog, error) {
	l, ok := r.logs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown request kind %q: %w", kind, util.ErrInvalidInput)
	}
	return l, nil
}

// commit persists next as the new content of l and swaps it in on success.
func (r *RequestRepository) commit(l *requestLog, next []domain.Request) error {
	if err := l.file.write(next); err != nil {
		return err
	}
	l.items = next
	return nil
}

func (r *RequestRepository) find(l *requestLog, id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

// CreateRequest appends req to the log of its kind.
func (r *RequestRepository) CreateRequest(ctx context.Context, req *domain.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.log(req.Kind)
	if err != nil {
		return err
	}
	next := make([]domain.Request, len(l.items), len(l.items)+1)
	copy(next, l.items)
	next = append(next, *req.Clone())

	if err := r.commit(l, next); err != nil {
		return fmt.Errorf("failed to create %s request: %w", req.Kind, err)
	}
	return nil
}

// GetRequest returns a copy of the request.
func (r *RequestRepository) GetRequest(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, err := r.log(kind)
	if err != nil {
		return nil, err
	}
	i := r.find(l, id)
	if i < 0 {
		return nil, util.ErrNotFound
	}
	return l.items[i].Clone(), nil
}

// ListRequests returns matching requests, withdraws before cashouts when no kind is given.
func (r *RequestRepository) ListRequests(ctx context.Context, filter repository.RequestFilter) ([]domain.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := []domain.RequestKind{domain.RequestKindWithdraw, domain.RequestKindCashout}
	if filter.Kind != "" {
		kinds = []domain.RequestKind{filter.Kind}
	}

	out := []domain.Request{}
	for _, kind := range kinds {
		l, err := r.log(kind)
		if err != nil {
			return nil, err
		}
		for i := range l.items {
			if filter.UserID != "" && l.items[i].UserID != filter.UserID {
				continue
			}
			out = append(out, *l.items[i].Clone())
		}
	}
	return out, nil
}

// UpdateRequest replaces the stored copy of req.
func (r *RequestRepository) UpdateRequest(ctx context.Context, req *domain.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.log(req.Kind)
	if err != nil {
		return err
	}
	i := r.find(l, req.ID)
	if i < 0 {
		return util.ErrNotFound
	}
	next := make([]domain.Request, len(l.items))
	copy(next, l.items)
	next[i] = *req.Clone()

	if err := r.commit(l, next); err != nil {
		return fmt.Errorf("failed to update %s request %s: %w", req.Kind, req.ID, err)
	}
	return nil
}

// DeleteRequest removes the request from its log.
func (r *RequestRepository) DeleteRequest(ctx context.Context, kind domain.RequestKind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.log(kind)
	if err != nil {
		return err
	}
	i := r.find(l, id)
	if i < 0 {
		return util.ErrNotFound
	}
	next := make([]domain.Request, 0, len(l.items)-1)
	next = append(next, l.items[:i]...)
	next = append(next, l.items[i+1:]...)

	if err := r.commit(l, next); err != nil {
		return fmt.Errorf("failed to delete %s request %s: %w", kind, id, err)
	}
	return nil
}
