// internal/repository/postgres/postgres_test.go
package postgres

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"
	"balance-ledger/pkg/db"
)

// setupTestDB connects to the database named by TEST_DB_* and applies the schema.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set; skipping PostgreSQL repository tests")
	}
	port, _ := strconv.Atoi(os.Getenv("TEST_DB_PORT"))
	if port == 0 {
		port = 5432
	}
	cfg := db.Config{
		Host:     host,
		Port:     port,
		User:     envOr("TEST_DB_USER", "user"),
		Password: envOr("TEST_DB_PASSWORD", "password"),
		DBName:   envOr("TEST_DB_NAME", "ledgerdb_test"),
		SSLMode:  "disable",
	}

	ctx := context.Background()
	conn, err := db.NewPostgresDB(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, conn))

	_, err = conn.ExecContext(ctx, `TRUNCATE user_balances, payout_requests`)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestBalanceRepositoryPostgres(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	repo := NewBalanceRepository(conn)

	_, err := repo.GetBalance(ctx, "nobody")
	assert.ErrorIs(t, err, util.ErrNotFound)

	rec := domain.NewBalanceRecord("pg-user", domain.DefaultCurrency)
	bonus := decimal.RequireFromString("10.00")
	now := time.Now().UTC()
	rec.Bonus = &bonus
	rec.BonusGivenAt = &now
	rec.Apply(domain.EntryTypeAdd, bonus, "Welcome bonus", "system", now)
	require.NoError(t, repo.SaveBalance(ctx, rec))

	rec.Apply(domain.EntryTypeDeduct, decimal.RequireFromString("2.50"), "Admin debit", "admin@example.com", time.Now().UTC())
	require.NoError(t, repo.SaveBalance(ctx, rec))

	got, err := repo.GetBalance(ctx, "pg-user")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("7.50")))
	require.Len(t, got.Transactions, 2)
	assert.Equal(t, domain.EntryTypeDeduct, got.Transactions[1].Type)
	require.NotNil(t, got.Bonus)
	assert.True(t, got.Bonus.Equal(bonus))

	all, err := repo.ListBalances(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRequestRepositoryPostgres(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	repo := NewRequestRepository(conn)

	w := domain.NewRequest(domain.RequestKindWithdraw, "u1", "u1@example.com", decimal.NewFromInt(40))
	w.WalletNetwork = "mtn"
	c := domain.NewRequest(domain.RequestKindCashout, "u1", "u1@example.com", decimal.NewFromInt(100))
	require.NoError(t, repo.CreateRequest(ctx, w))
	require.NoError(t, repo.CreateRequest(ctx, c))

	all, err := repo.ListRequests(ctx, repository.RequestFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.RequestKindWithdraw, all[0].Kind)

	now := time.Now().UTC()
	c.Status = domain.RequestStatusApproved
	c.UpdatedAt = &now
	require.NoError(t, repo.UpdateRequest(ctx, c))

	got, err := repo.GetRequest(ctx, domain.RequestKindCashout, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, got.Status)
	assert.NotNil(t, got.UpdatedAt)

	_, err = repo.GetRequest(ctx, domain.RequestKindCashout, "not-a-uuid")
	assert.ErrorIs(t, err, util.ErrNotFound)

	require.NoError(t, repo.DeleteRequest(ctx, domain.RequestKindWithdraw, w.ID))
	assert.ErrorIs(t, repo.DeleteRequest(ctx, domain.RequestKindWithdraw, w.ID), util.ErrNotFound)
}

func TestQueryHelpersInsideTransaction(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	rec := domain.NewBalanceRecord("tx-user", domain.DefaultCurrency)
	rec.Apply(domain.EntryTypeAdd, decimal.RequireFromString("3.25"), "Admin credit", "system", time.Now().UTC())
	require.NoError(t, NewBalanceRepository(conn).SaveBalance(ctx, rec))

	err := db.WithTx(ctx, conn, func(tx *sqlx.Tx) error {
		require.NoError(t, applySchema(ctx, tx))

		got, err := getBalance(ctx, tx, "tx-user")
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.RequireFromString("3.25")))
		assert.True(t, got.Balance.Equal(got.Transactions[len(got.Transactions)-1].NewBalance))

		all, err := listBalances(ctx, tx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		return nil
	})
	require.NoError(t, err)
}
