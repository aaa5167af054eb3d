// internal/domain/balance_test.go
package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balance-ledger/internal/util"
)

func TestBalanceRecordApply(t *testing.T) {
	t.Run("CreditThenDebit", func(t *testing.T) {
		rec := NewBalanceRecord("u1", DefaultCurrency)
		now := time.Now().UTC()

		add := rec.Apply(EntryTypeAdd, decimal.NewFromInt(10), "bonus", "system", now)
		assert.True(t, add.PreviousBalance.IsZero())
		assert.True(t, add.NewBalance.Equal(decimal.NewFromInt(10)))

		deduct := rec.Apply(EntryTypeDeduct, decimal.RequireFromString("2.50"), "fee", "admin@example.com", now)
		assert.True(t, deduct.PreviousBalance.Equal(decimal.NewFromInt(10)))
		assert.True(t, deduct.NewBalance.Equal(decimal.RequireFromString("7.50")))
		assert.True(t, rec.Balance.Equal(deduct.NewBalance))
		assert.Len(t, rec.Transactions, 2)
	})

	t.Run("HistoryIsBounded", func(t *testing.T) {
		rec := NewBalanceRecord("u1", DefaultCurrency)
		start := time.Now().UTC()
		for i := 1; i <= MaxTransactionHistory+25; i++ {
			rec.Apply(EntryTypeAdd, decimal.NewFromInt(int64(i)), "", "", start.Add(time.Duration(i)*time.Second))
		}

		require.Len(t, rec.Transactions, MaxTransactionHistory)
		assert.True(t, rec.Transactions[0].Amount.Equal(decimal.NewFromInt(26)))
		assert.True(t, rec.Transactions[MaxTransactionHistory-1].Amount.Equal(decimal.NewFromInt(MaxTransactionHistory+25)))
		for i := 1; i < len(rec.Transactions); i++ {
			assert.True(t, rec.Transactions[i].Timestamp.After(rec.Transactions[i-1].Timestamp))
			assert.True(t, rec.Transactions[i].PreviousBalance.Equal(rec.Transactions[i-1].NewBalance))
		}
		assert.True(t, rec.Balance.Equal(rec.Transactions[MaxTransactionHistory-1].NewBalance))
	})

	t.Run("CloneDoesNotAlias", func(t *testing.T) {
		rec := NewBalanceRecord("u1", DefaultCurrency)
		rec.Apply(EntryTypeAdd, decimal.NewFromInt(5), "", "", time.Now().UTC())

		c := rec.Clone()
		c.Apply(EntryTypeAdd, decimal.NewFromInt(5), "", "", time.Now().UTC())

		assert.Len(t, rec.Transactions, 1)
		assert.True(t, rec.Balance.Equal(decimal.NewFromInt(5)))
	})
}

func TestParseAmount(t *testing.T) {
	valid := map[string]string{"10": "10", " 2.5 ": "2.5", "0.01": "0.01", "1.500": "1.5", "1000000000000": "1000000000000"}
	for in, want := range valid {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), in)
	}

	rejected := []string{
		"", "0", "-1", "abc", "NaN", "Infinity", "1e",
		"1e-10000000", "1e2000000000", "1E2", "0.001", "0.004", "10.555",
		"1000000000000.01", strings.Repeat("9", 40),
	}
	for _, in := range rejected {
		_, err := ParseAmount(in)
		assert.ErrorIs(t, err, util.ErrInvalidAmount, in)
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("0.01")))
	assert.NoError(t, ValidateAmount(decimal.New(150, -2)))

	for _, amount := range []decimal.Decimal{
		decimal.Zero,
		decimal.NewFromInt(-5),
		decimal.RequireFromString("0.004"),
		decimal.New(1, -10000000),
		decimal.New(1, 2000000000),
		MaxAmount.Add(decimal.NewFromInt(1)),
	} {
		assert.ErrorIs(t, ValidateAmount(amount), util.ErrInvalidAmount, amount.Exponent())
	}
}

func TestParseRequestStatus(t *testing.T) {
	st, err := ParseRequestStatus("Approved")
	require.NoError(t, err)
	assert.Equal(t, RequestStatusApproved, st)

	st, err = ParseRequestStatus("success")
	require.NoError(t, err)
	assert.Equal(t, RequestStatusCompleted, st)

	_, err = ParseRequestStatus("done")
	assert.Error(t, err)
}
