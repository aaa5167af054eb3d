// internal/service/request_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"
	"balance-ledger/pkg/lock"
)

// DefaultActivityLimit is how many requests UserActivity returns when no limit is given.
const DefaultActivityLimit = 5

// ArtifactStore persists proof-of-payment uploads.
type ArtifactStore interface {
	Save(ctx context.Context, userID, originalName string, src io.Reader, maxBytes int64) (string, error)
	Delete(ctx context.Context, publicPath string) error
}

// RequestConfig holds the request log settings that come from configuration.
type RequestConfig struct {
	CashoutAmounts  []decimal.Decimal
	WithdrawAmounts []decimal.Decimal // empty allows any positive amount
	MaxUploadBytes  int64
}

// WithdrawInput is a withdraw submission.
type WithdrawInput struct {
	UserID        string          `json:"userId" validate:"required"`
	UserEmail     string          `json:"userEmail" validate:"required,email"`
	Amount        decimal.Decimal `json:"amount" validate:"-"`
	WalletID      string          `json:"walletId" validate:"required"`
	WalletIDName  string          `json:"walletIdName" validate:"required"`
	WalletNetwork string          `json:"walletNetwork" validate:"required,oneof=mtn vodafone airtel bank other"`
}

// CashoutInput is a cashout submission. Screenshot is the uploaded proof of payment.
type CashoutInput struct {
	UserID         string          `json:"userId" validate:"required"`
	UserEmail      string          `json:"userEmail" validate:"required,email"`
	Amount         decimal.Decimal `json:"amount" validate:"-"`
	TokenID        string          `json:"tokenId" validate:"required"`
	SecretCode     string          `json:"secretCode" validate:"required,len=4,number"`
	WalletID       string          `json:"walletId" validate:"required"`
	Screenshot     io.Reader       `json:"-" validate:"-"`
	ScreenshotName string          `json:"-" validate:"-"`
}

// KindStats counts the requests of one kind by status.
type KindStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

func (k *KindStats) add(status domain.RequestStatus) {
	k.Total++
	switch status {
	case domain.RequestStatusPending:
		k.Pending++
	case domain.RequestStatusApproved:
		k.Approved++
	case domain.RequestStatusRejected:
		k.Rejected++
	case domain.RequestStatusCompleted:
		k.Completed++
	case domain.RequestStatusFailed:
		k.Failed++
	}
}

// RequestStats summarizes both request logs.
type RequestStats struct {
	Withdrawals KindStats `json:"withdrawals"`
	Cashouts    KindStats `json:"cashouts"`
}

// RequestService defines the withdraw and cashout request operations.
type RequestService interface {
	SubmitWithdraw(ctx context.Context, in WithdrawInput) (*domain.Request, error)
	SubmitCashout(ctx context.Context, in CashoutInput) (*domain.Request, error)
	UpdateStatus(ctx context.Context, kind domain.RequestKind, id string, status domain.RequestStatus) (*domain.Request, error)
	DeleteRequest(ctx context.Context, kind domain.RequestKind, id string) error
	GetRequest(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error)
	ListRequests(ctx context.Context, kind domain.RequestKind) ([]domain.Request, error)
	UserActivity(ctx context.Context, userID string, limit int) ([]domain.Request, error)
	Stats(ctx context.Context) (*RequestStats, error)
}

// requestService implements the RequestService interface.
type requestService struct {
	repo      repository.RequestRepository
	artifacts ArtifactStore
	locker    lock.Locker
	validate  *validator.Validate
	cfg       RequestConfig
	logger    *logrus.Logger
	now       func() time.Time
}

// NewRequestService creates a new instance of RequestService.
func NewRequestService(
	repo repository.RequestRepository,
	artifacts ArtifactStore,
	locker lock.Locker,
	validate *validator.Validate,
	cfg RequestConfig,
	logger *logrus.Logger,
) RequestService {
	return &requestService{
		repo:      repo,
		artifacts: artifacts,
		locker:    locker,
		validate:  validate,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func requestLockKey(kind domain.RequestKind, id string) string {
	return "request:" + string(kind) + ":" + id
}

func checkAllowed(amount decimal.Decimal, allowed []decimal.Decimal) error {
	if len(allowed) == 0 {
		return nil
	}
	names := make([]string, 0, len(allowed))
	for _, a := range allowed {
		if amount.Equal(a) {
			return nil
		}
		names = append(names, a.String())
	}
	return &util.ValidationError{Fields: map[string]string{
		"amount": "must be one of: " + strings.Join(names, ", "),
	}}
}

// SubmitWithdraw validates and records a pending withdraw request.
func (s *requestService) SubmitWithdraw(ctx context.Context, in WithdrawInput) (*domain.Request, error) {
	in.WalletNetwork = strings.ToLower(strings.TrimSpace(in.WalletNetwork))
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if err := checkAllowed(in.Amount, s.cfg.WithdrawAmounts); err != nil {
		return nil, err
	}

	req := domain.NewRequest(domain.RequestKindWithdraw, in.UserID, in.UserEmail, in.Amount)
	req.CreatedAt = s.now()
	req.WalletID = in.WalletID
	req.WalletIDName = in.WalletIDName
	req.WalletNetwork = in.WalletNetwork

	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("submit withdraw: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"amount":     req.Amount.String(),
		"network":    req.WalletNetwork,
	}).Info("Withdraw request submitted")
	return req, nil
}

// SubmitCashout stores the proof of payment, then records a pending cashout
// request referencing it.
func (s *requestService) SubmitCashout(ctx context.Context, in CashoutInput) (*domain.Request, error) {
	in.SecretCode = strings.TrimSpace(in.SecretCode)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if err := checkAllowed(in.Amount, s.cfg.CashoutAmounts); err != nil {
		return nil, err
	}
	if in.Screenshot == nil {
		return nil, &util.ValidationError{Fields: map[string]string{"screenshot": "is required"}}
	}

	path, err := s.artifacts.Save(ctx, in.UserID, in.ScreenshotName, in.Screenshot, s.cfg.MaxUploadBytes)
	if err != nil {
		return nil, fmt.Errorf("submit cashout: %w", err)
	}

	req := domain.NewRequest(domain.RequestKindCashout, in.UserID, in.UserEmail, in.Amount)
	req.CreatedAt = s.now()
	req.TokenID = in.TokenID
	req.SecretCode = in.SecretCode
	req.WalletID = in.WalletID
	req.ScreenshotPath = path

	if err := s.repo.CreateRequest(ctx, req); err != nil {
		s.discardArtifact(path)
		return nil, fmt.Errorf("submit cashout: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"amount":     req.Amount.String(),
	}).Info("Cashout request submitted")
	return req, nil
}

// discardArtifact removes an upload whose request was never recorded.
// Failures leave an orphan for the sweeper.
func (s *requestService) discardArtifact(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.artifacts.Delete(ctx, path); err != nil {
		s.logger.WithError(err).WithField("path", path).Warn("Failed to discard upload of unrecorded cashout")
	}
}

// UpdateStatus moves a request to status and stamps updatedAt.
func (s *requestService) UpdateStatus(ctx context.Context, kind domain.RequestKind, id string, status domain.RequestStatus) (*domain.Request, error) {
	unlock, err := s.locker.Lock(ctx, requestLockKey(kind, id))
	if err != nil {
		return nil, fmt.Errorf("update status: failed to lock %s request %s: %w", kind, id, err)
	}
	defer unlock()

	req, err := s.GetRequest(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	previous := req.Status
	now := s.now()
	req.Status = status
	req.UpdatedAt = &now

	if err := s.repo.UpdateRequest(ctx, req); err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrRequestNotFound
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": id,
		"kind":       kind,
		"from":       previous,
		"to":         status,
	}).Info("Request status updated")
	return req, nil
}

// DeleteRequest removes a request. A cashout's upload is deleted best effort.
func (s *requestService) DeleteRequest(ctx context.Context, kind domain.RequestKind, id string) error {
	unlock, err := s.locker.Lock(ctx, requestLockKey(kind, id))
	if err != nil {
		return fmt.Errorf("delete request: failed to lock %s request %s: %w", kind, id, err)
	}
	defer unlock()

	req, err := s.GetRequest(ctx, kind, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteRequest(ctx, kind, id); err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return util.ErrRequestNotFound
		}
		return fmt.Errorf("delete request: %w", err)
	}

	if kind == domain.RequestKindCashout && req.ScreenshotPath != "" {
		if err := s.artifacts.Delete(ctx, req.ScreenshotPath); err != nil {
			s.logger.WithError(errors.Join(util.ErrArtifactDelete, err)).
				WithFields(logrus.Fields{"request_id": id, "path": req.ScreenshotPath}).
				Warn("Request deleted but its upload could not be removed")
		}
	}

	s.logger.WithFields(logrus.Fields{"request_id": id, "kind": kind}).Info("Request deleted")
	return nil
}

// GetRequest returns one request or util.ErrRequestNotFound.
func (s *requestService) GetRequest(ctx context.Context, kind domain.RequestKind, id string) (*domain.Request, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("request ID is required: %w", util.ErrInvalidInput)
	}
	req, err := s.repo.GetRequest(ctx, kind, id)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrRequestNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// ListRequests returns requests of kind (both kinds when empty), newest first.
func (s *requestService) ListRequests(ctx context.Context, kind domain.RequestKind) ([]domain.Request, error) {
	reqs, err := s.repo.ListRequests(ctx, repository.RequestFilter{Kind: kind})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	sortNewestFirst(reqs)
	return reqs, nil
}

// UserActivity returns the user's most recent requests across both kinds.
func (s *requestService) UserActivity(ctx context.Context, userID string, limit int) ([]domain.Request, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	reqs, err := s.repo.ListRequests(ctx, repository.RequestFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("user activity: %w", err)
	}
	sortNewestFirst(reqs)
	if len(reqs) > limit {
		reqs = reqs[:limit]
	}
	return reqs, nil
}

// Stats counts requests per kind and status.
func (s *requestService) Stats(ctx context.Context) (*RequestStats, error) {
	reqs, err := s.repo.ListRequests(ctx, repository.RequestFilter{})
	if err != nil {
		return nil, fmt.Errorf("request stats: %w", err)
	}
	stats := &RequestStats{}
	for _, r := range reqs {
		switch r.Kind {
		case domain.RequestKindWithdraw:
			stats.Withdrawals.add(r.Status)
		case domain.RequestKindCashout:
			stats.Cashouts.add(r.Status)
		}
	}
	return stats, nil
}

func sortNewestFirst(reqs []domain.Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
}
