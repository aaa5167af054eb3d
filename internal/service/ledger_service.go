// internal/service/ledger_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"
	"balance-ledger/pkg/lock"
)

// Defaults applied when a caller leaves reason or actor empty.
const (
	DefaultCreditReason = "Admin credit"
	DefaultDebitReason  = "Admin debit"
	DefaultActor        = "system"
	WelcomeBonusReason  = "Welcome bonus"
)

// LedgerConfig holds the ledger settings that come from configuration.
type LedgerConfig struct {
	Currency    string
	BonusAmount decimal.Decimal
}

// BalanceChange is the outcome of a credit or debit.
type BalanceChange struct {
	UserID          string                  `json:"userId"`
	PreviousBalance decimal.Decimal         `json:"previousBalance"`
	NewBalance      decimal.Decimal         `json:"newBalance"`
	Currency        string                  `json:"currency"`
	Entry           domain.TransactionEntry `json:"transaction"`
}

// BalanceOverview is a BalanceRecord without its history.
type BalanceOverview struct {
	UserID       string           `json:"userId"`
	Balance      decimal.Decimal  `json:"balance"`
	Currency     string           `json:"currency"`
	CreatedAt    time.Time        `json:"createdAt"`
	LastUpdated  time.Time        `json:"lastUpdated"`
	Bonus        *decimal.Decimal `json:"bonus,omitempty"`
	BonusGivenAt *time.Time       `json:"bonusGivenAt,omitempty"`
}

// BalanceSummary lists every balance together with totals.
type BalanceSummary struct {
	Balances     []BalanceOverview `json:"balances"`
	TotalUsers   int               `json:"totalUsers"`
	TotalBalance decimal.Decimal   `json:"totalBalance"`
}

// LedgerService defines the balance operations.
type LedgerService interface {
	Credit(ctx context.Context, userID string, amount decimal.Decimal, reason, actor string) (*BalanceChange, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal, reason, actor string) (*BalanceChange, error)
	EnsureInitialized(ctx context.Context, userID string) (*domain.BalanceRecord, bool, error)
	GetBalance(ctx context.Context, userID string) (*domain.BalanceRecord, error)
	ListBalances(ctx context.Context) (*BalanceSummary, error)
	GetHistory(ctx context.Context, userID string) ([]domain.TransactionEntry, error)
}

// ledgerService implements the LedgerService interface.
// Every read-modify-write on one user runs under that user's lock.
type ledgerService struct {
	repo   repository.BalanceRepository
	locker lock.Locker
	cfg    LedgerConfig
	logger *logrus.Logger
	now    func() time.Time
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(repo repository.BalanceRepository, locker lock.Locker, cfg LedgerConfig, logger *logrus.Logger) LedgerService {
	if cfg.Currency == "" {
		cfg.Currency = domain.DefaultCurrency
	}
	return &ledgerService{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func balanceLockKey(userID string) string {
	return "balance:" + userID
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user ID is required: %w", util.ErrInvalidInput)
	}
	return nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// Credit adds amount to the user's balance, creating the record if needed.
func (s *ledgerService) Credit(ctx context.Context, userID string, amount decimal.Decimal, reason, actor string) (*BalanceChange, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, balanceLockKey(userID))
	if err != nil {
		return nil, fmt.Errorf("credit: failed to lock user %s: %w", userID, err)
	}
	defer unlock()

	rec, err := s.repo.GetBalance(ctx, userID)
	if errors.Is(err, util.ErrNotFound) {
		rec = domain.NewBalanceRecord(userID, s.cfg.Currency)
	} else if err != nil {
		return nil, fmt.Errorf("credit: failed to load balance for user %s: %w", userID, err)
	}

	previous := rec.Balance
	entry := rec.Apply(domain.EntryTypeAdd, amount, orDefault(reason, DefaultCreditReason), orDefault(actor, DefaultActor), s.now())
	if err := s.repo.SaveBalance(ctx, rec); err != nil {
		return nil, fmt.Errorf("credit: failed to save balance for user %s: %w", userID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"amount":      amount.String(),
		"new_balance": rec.Balance.String(),
		"actor":       entry.AdminEmail,
	}).Info("Balance credited")

	return &BalanceChange{
		UserID:          userID,
		PreviousBalance: previous,
		NewBalance:      rec.Balance,
		Currency:        rec.Currency,
		Entry:           entry,
	}, nil
}

// Debit subtracts amount from an existing balance. The balance never goes negative.
func (s *ledgerService) Debit(ctx context.Context, userID string, amount decimal.Decimal, reason, actor string) (*BalanceChange, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, balanceLockKey(userID))
	if err != nil {
		return nil, fmt.Errorf("debit: failed to lock user %s: %w", userID, err)
	}
	defer unlock()

	rec, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("debit: failed to load balance for user %s: %w", userID, err)
	}

	if rec.Balance.LessThan(amount) {
		return nil, &util.InsufficientBalanceError{Current: rec.Balance, Required: amount}
	}

	previous := rec.Balance
	entry := rec.Apply(domain.EntryTypeDeduct, amount, orDefault(reason, DefaultDebitReason), orDefault(actor, DefaultActor), s.now())
	if err := s.repo.SaveBalance(ctx, rec); err != nil {
		return nil, fmt.Errorf("debit: failed to save balance for user %s: %w", userID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"amount":      amount.String(),
		"new_balance": rec.Balance.String(),
		"actor":       entry.AdminEmail,
	}).Info("Balance debited")

	return &BalanceChange{
		UserID:          userID,
		PreviousBalance: previous,
		NewBalance:      rec.Balance,
		Currency:        rec.Currency,
		Entry:           entry,
	}, nil
}

// EnsureInitialized returns the user's record, creating it with the welcome
// bonus on first call. The bool reports whether the record was created.
func (s *ledgerService) EnsureInitialized(ctx context.Context, userID string) (*domain.BalanceRecord, bool, error) {
	if err := validateUserID(userID); err != nil {
		return nil, false, err
	}

	unlock, err := s.locker.Lock(ctx, balanceLockKey(userID))
	if err != nil {
		return nil, false, fmt.Errorf("ensure initialized: failed to lock user %s: %w", userID, err)
	}
	defer unlock()

	rec, err := s.repo.GetBalance(ctx, userID)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, false, fmt.Errorf("ensure initialized: failed to load balance for user %s: %w", userID, err)
	}

	rec = domain.NewBalanceRecord(userID, s.cfg.Currency)
	if s.cfg.BonusAmount.IsPositive() {
		at := s.now()
		bonus := s.cfg.BonusAmount
		rec.Bonus = &bonus
		rec.BonusGivenAt = &at
		rec.Apply(domain.EntryTypeAdd, bonus, WelcomeBonusReason, DefaultActor, at)
	}

	if err := s.repo.SaveBalance(ctx, rec); err != nil {
		return nil, false, fmt.Errorf("ensure initialized: failed to save balance for user %s: %w", userID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"bonus":   s.cfg.BonusAmount.String(),
	}).Info("Balance initialized with welcome bonus")

	return rec, true, nil
}

// GetBalance returns the user's record or util.ErrUserNotFound.
func (s *ledgerService) GetBalance(ctx context.Context, userID string) (*domain.BalanceRecord, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	rec, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("get balance: failed to load balance for user %s: %w", userID, err)
	}
	return rec, nil
}

// ListBalances returns every balance without history, plus totals.
func (s *ledgerService) ListBalances(ctx context.Context) (*BalanceSummary, error) {
	records, err := s.repo.ListBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}

	summary := &BalanceSummary{
		Balances:     make([]BalanceOverview, 0, len(records)),
		TotalUsers:   len(records),
		TotalBalance: decimal.Zero,
	}
	for _, rec := range records {
		summary.TotalBalance = summary.TotalBalance.Add(rec.Balance)
		summary.Balances = append(summary.Balances, BalanceOverview{
			UserID:       rec.UserID,
			Balance:      rec.Balance,
			Currency:     rec.Currency,
			CreatedAt:    rec.CreatedAt,
			LastUpdated:  rec.LastUpdated,
			Bonus:        rec.Bonus,
			BonusGivenAt: rec.BonusGivenAt,
		})
	}
	return summary, nil
}

// GetHistory returns the user's audit trail, oldest first.
func (s *ledgerService) GetHistory(ctx context.Context, userID string) ([]domain.TransactionEntry, error) {
	rec, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rec.Transactions, nil
}
