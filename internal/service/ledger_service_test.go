// internal/service/ledger_service_test.go
package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository/filestore"
	"balance-ledger/internal/util"
	"balance-ledger/pkg/lock"
)

var testBonus = decimal.RequireFromString("10.00")

func newFileLedger(t *testing.T) LedgerService {
	t.Helper()
	repo, err := filestore.NewBalanceRepository(t.TempDir())
	require.NoError(t, err)
	return NewLedgerService(repo, lock.NewKeyedMutex(), LedgerConfig{Currency: "GHS", BonusAmount: testBonus}, newTestLogger())
}

// assertAuditConsistent checks that every entry chains from the previous one
// and that the last entry ends at the record balance.
func assertAuditConsistent(t *testing.T, rec *domain.BalanceRecord) {
	t.Helper()
	for i, e := range rec.Transactions {
		switch e.Type {
		case domain.EntryTypeAdd:
			assert.True(t, e.NewBalance.Equal(e.PreviousBalance.Add(e.Amount)), "entry %d", i)
		case domain.EntryTypeDeduct:
			assert.True(t, e.NewBalance.Equal(e.PreviousBalance.Sub(e.Amount)), "entry %d", i)
		}
		if i > 0 {
			assert.True(t, e.PreviousBalance.Equal(rec.Transactions[i-1].NewBalance), "entry %d", i)
		}
	}
	if n := len(rec.Transactions); n > 0 {
		assert.True(t, rec.Transactions[n-1].NewBalance.Equal(rec.Balance))
	}
}

func TestCredit(t *testing.T) {
	t.Run("CreatesRecordWithDefaults", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockBalanceRepository)
		service := NewLedgerService(mockRepo, lock.NewKeyedMutex(), LedgerConfig{BonusAmount: testBonus}, newTestLogger())

		mockRepo.On("GetBalance", ctx, "u1").Return(nil, util.ErrNotFound).Once()
		mockRepo.On("SaveBalance", ctx, mock.MatchedBy(func(r *domain.BalanceRecord) bool {
			return r.UserID == "u1" && r.Balance.Equal(decimal.NewFromInt(5)) && len(r.Transactions) == 1
		})).Return(nil).Once()

		change, err := service.Credit(ctx, "u1", decimal.NewFromInt(5), "", "")

		require.NoError(t, err)
		assert.True(t, change.PreviousBalance.IsZero())
		assert.True(t, change.NewBalance.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, domain.DefaultCurrency, change.Currency)
		assert.Equal(t, DefaultCreditReason, change.Entry.Reason)
		assert.Equal(t, DefaultActor, change.Entry.AdminEmail)
		mockRepo.AssertExpectations(t)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockBalanceRepository)
		service := NewLedgerService(mockRepo, lock.NewKeyedMutex(), LedgerConfig{}, newTestLogger())

		amounts := []decimal.Decimal{
			decimal.Zero,
			decimal.NewFromInt(-3),
			decimal.RequireFromString("0.004"),
			decimal.RequireFromString("12.345"),
		}
		for _, amt := range amounts {
			_, err := service.Credit(ctx, "u1", amt, "", "")
			assert.ErrorIs(t, err, util.ErrInvalidAmount, amt.String())
			_, err = service.Debit(ctx, "u1", amt, "", "")
			assert.ErrorIs(t, err, util.ErrInvalidAmount, amt.String())
		}
		mockRepo.AssertNotCalled(t, "GetBalance", mock.Anything, mock.Anything)
		mockRepo.AssertNotCalled(t, "SaveBalance", mock.Anything, mock.Anything)
	})

	t.Run("MissingUserID", func(t *testing.T) {
		service := NewLedgerService(new(MockBalanceRepository), lock.NewKeyedMutex(), LedgerConfig{}, newTestLogger())
		_, err := service.Credit(context.Background(), " ", decimal.NewFromInt(1), "", "")
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})

	t.Run("SaveFailure", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockBalanceRepository)
		service := NewLedgerService(mockRepo, lock.NewKeyedMutex(), LedgerConfig{}, newTestLogger())
		diskErr := errors.New("disk full")

		mockRepo.On("GetBalance", ctx, "u1").Return(domain.NewBalanceRecord("u1", "GHS"), nil).Once()
		mockRepo.On("SaveBalance", ctx, mock.Anything).Return(diskErr).Once()

		_, err := service.Credit(ctx, "u1", decimal.NewFromInt(1), "", "")
		assert.ErrorIs(t, err, diskErr)
		mockRepo.AssertExpectations(t)
	})

	t.Run("CorruptStoreIsNotTreatedAsEmpty", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockBalanceRepository)
		service := NewLedgerService(mockRepo, lock.NewKeyedMutex(), LedgerConfig{}, newTestLogger())

		mockRepo.On("GetBalance", ctx, "u1").Return(nil, &util.CorruptStoreError{Path: "user_balances.json", Err: errors.New("bad")}).Once()

		_, err := service.Credit(ctx, "u1", decimal.NewFromInt(1), "", "")
		assert.ErrorIs(t, err, util.ErrCorruptStore)
		mockRepo.AssertNotCalled(t, "SaveBalance", mock.Anything, mock.Anything)
	})

	t.Run("ConcurrentCreditsAreNotLost", func(t *testing.T) {
		service := newFileLedger(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := service.Credit(ctx, "u1", decimal.NewFromInt(5), "", "")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		rec, err := service.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, rec.Balance.Equal(decimal.NewFromInt(10)), rec.Balance.String())
		assert.Len(t, rec.Transactions, 2)
		assertAuditConsistent(t, rec)
	})

	t.Run("ManyUsersInParallel", func(t *testing.T) {
		service := newFileLedger(t)
		ctx := context.Background()
		users := []string{"a", "b", "c", "d"}

		var wg sync.WaitGroup
		for _, u := range users {
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(u string) {
					defer wg.Done()
					_, err := service.Credit(ctx, u, decimal.RequireFromString("1.25"), "", "")
					assert.NoError(t, err)
				}(u)
			}
		}
		wg.Wait()

		summary, err := service.ListBalances(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(users), summary.TotalUsers)
		assert.True(t, summary.TotalBalance.Equal(decimal.RequireFromString("50")), summary.TotalBalance.String())
	})

	t.Run("HistoryKeepsMostRecentHundred", func(t *testing.T) {
		service := newFileLedger(t)
		ctx := context.Background()

		for i := 1; i <= domain.MaxTransactionHistory+5; i++ {
			_, err := service.Credit(ctx, "u1", decimal.NewFromInt(int64(i)), "", "")
			require.NoError(t, err)
		}

		history, err := service.GetHistory(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, history, domain.MaxTransactionHistory)
		assert.True(t, history[0].Amount.Equal(decimal.NewFromInt(6)))
		assert.True(t, history[len(history)-1].Amount.Equal(decimal.NewFromInt(105)))
	})
}

func TestDebit(t *testing.T) {
	t.Run("UserNotFound", func(t *testing.T) {
		ctx := context.Background()
		mockRepo := new(MockBalanceRepository)
		service := NewLedgerService(mockRepo, lock.NewKeyedMutex(), LedgerConfig{}, newTestLogger())

		mockRepo.On("GetBalance", ctx, "ghost").Return(nil, util.ErrNotFound).Once()

		_, err := service.Debit(ctx, "ghost", decimal.NewFromInt(1), "", "")
		assert.ErrorIs(t, err, util.ErrUserNotFound)
		mockRepo.AssertNotCalled(t, "SaveBalance", mock.Anything, mock.Anything)
	})

	t.Run("InsufficientBalanceLeavesBalanceUnchanged", func(t *testing.T) {
		service := newFileLedger(t)
		ctx := context.Background()

		_, err := service.Credit(ctx, "u1", decimal.NewFromInt(10), "", "")
		require.NoError(t, err)

		_, err = service.Debit(ctx, "u1", decimal.NewFromInt(15), "", "")
		require.ErrorIs(t, err, util.ErrInsufficientFunds)

		var insufficient *util.InsufficientBalanceError
		require.ErrorAs(t, err, &insufficient)
		assert.True(t, insufficient.Current.Equal(decimal.NewFromInt(10)))
		assert.True(t, insufficient.Required.Equal(decimal.NewFromInt(15)))
		assert.Equal(t, "insufficient balance. Current: GH10.00, Required: GH15.00", err.Error())

		rec, err := service.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, rec.Balance.Equal(decimal.NewFromInt(10)))
		assert.Len(t, rec.Transactions, 1)
	})

	t.Run("ExactBalanceReachesZero", func(t *testing.T) {
		service := newFileLedger(t)
		ctx := context.Background()

		_, err := service.Credit(ctx, "u1", decimal.RequireFromString("7.35"), "", "")
		require.NoError(t, err)
		change, err := service.Debit(ctx, "u1", decimal.RequireFromString("7.35"), "payout", "admin@example.com")
		require.NoError(t, err)

		assert.True(t, change.NewBalance.IsZero())
		assert.Equal(t, domain.EntryTypeDeduct, change.Entry.Type)
		assert.Equal(t, "payout", change.Entry.Reason)
		assert.Equal(t, "admin@example.com", change.Entry.AdminEmail)

		rec, err := service.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assertAuditConsistent(t, rec)
	})

	t.Run("ConcurrentDebitsNeverOverdraw", func(t *testing.T) {
		service := newFileLedger(t)
		ctx := context.Background()

		_, err := service.Credit(ctx, "u1", decimal.NewFromInt(30), "", "")
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := service.Debit(ctx, "u1", decimal.NewFromInt(10), "", "")
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, util.ErrInsufficientFunds)
			}()
		}
		wg.Wait()

		assert.Equal(t, 3, succeeded)
		rec, err := service.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, rec.Balance.IsZero())
		assertAuditConsistent(t, rec)
	})
}

func TestEnsureInitialized(t *testing.T) {
	t.Run("GrantsBonusOnce", func(t *testing.T) {
		service := newFileLedger(t)
		ctx := context.Background()

		rec, isNew, err := service.EnsureInitialized(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, isNew)
		assert.True(t, rec.Balance.Equal(testBonus))
		require.NotNil(t, rec.Bonus)
		assert.True(t, rec.Bonus.Equal(testBonus))
		require.NotNil(t, rec.BonusGivenAt)
		require.Len(t, rec.Transactions, 1)
		assert.Equal(t, WelcomeBonusReason, rec.Transactions[0].Reason)
		assertAuditConsistent(t, rec)

		again, isNew, err := service.EnsureInitialized(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, isNew)
		assert.True(t, again.Balance.Equal(testBonus))
	})

	t.Run("ExistingRecordUnchanged", func(t *testing.T) {
		service := newFileLedger(t)
		ctx := context.Background()

		_, err := service.Credit(ctx, "u1", decimal.NewFromInt(3), "", "")
		require.NoError(t, err)

		rec, isNew, err := service.EnsureInitialized(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, isNew)
		assert.True(t, rec.Balance.Equal(decimal.NewFromInt(3)))
		assert.Nil(t, rec.Bonus)
	})

	t.Run("ConcurrentFirstLoginGrantsExactlyOnce", func(t *testing.T) {
		service := newFileLedger(t)
		ctx := context.Background()

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			grants int
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, isNew, err := service.EnsureInitialized(ctx, "racer")
				assert.NoError(t, err)
				if isNew {
					mu.Lock()
					grants++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, grants)
		rec, err := service.GetBalance(ctx, "racer")
		require.NoError(t, err)
		assert.True(t, rec.Balance.Equal(testBonus))
	})

	t.Run("LockTimeout", func(t *testing.T) {
		repo, err := filestore.NewBalanceRepository(t.TempDir())
		require.NoError(t, err)
		locker := lock.NewKeyedMutex()
		service := NewLedgerService(repo, locker, LedgerConfig{BonusAmount: testBonus}, newTestLogger())

		unlock, err := locker.Lock(context.Background(), balanceLockKey("busy"))
		require.NoError(t, err)
		defer unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, _, err = service.EnsureInitialized(ctx, "busy")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestBalanceQueries(t *testing.T) {
	service := newFileLedger(t)
	ctx := context.Background()

	_, err := service.GetBalance(ctx, "nobody")
	assert.ErrorIs(t, err, util.ErrUserNotFound)
	_, err = service.GetHistory(ctx, "nobody")
	assert.ErrorIs(t, err, util.ErrUserNotFound)

	_, _, err = service.EnsureInitialized(ctx, "a")
	require.NoError(t, err)
	_, err = service.Credit(ctx, "b", decimal.RequireFromString("2.50"), "", "")
	require.NoError(t, err)

	summary, err := service.ListBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalUsers)
	assert.True(t, summary.TotalBalance.Equal(decimal.RequireFromString("12.50")))
	assert.Len(t, summary.Balances, 2)
}
