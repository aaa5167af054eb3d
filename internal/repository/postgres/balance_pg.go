// internal/repository/postgres/balance_pg.go
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"
)

// transactionLog stores a record's audit trail as a JSONB array.
type transactionLog []domain.TransactionEntry

func (l transactionLog) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]domain.TransactionEntry(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *transactionLog) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = transactionLog{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported transactions column type %T", src)
	}
	var entries []domain.TransactionEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return &util.CorruptStoreError{Path: "user_balances.transactions", Err: err}
	}
	if entries == nil {
		entries = []domain.TransactionEntry{}
	}
	*l = entries
	return nil
}

type balanceRow struct {
	UserID       string              `db:"user_id"`
	Balance      decimal.Decimal     `db:"balance"`
	Currency     string              `db:"currency"`
	CreatedAt    time.Time           `db:"created_at"`
	LastUpdated  time.Time           `db:"last_updated"`
	Bonus        decimal.NullDecimal `db:"bonus"`
	BonusGivenAt sql.NullTime        `db:"bonus_given_at"`
	Transactions transactionLog      `db:"transactions"`
}

func (r balanceRow) toDomain() domain.BalanceRecord {
	rec := domain.BalanceRecord{
		UserID:       r.UserID,
		Balance:      r.Balance,
		Currency:     r.Currency,
		CreatedAt:    r.CreatedAt.UTC(),
		LastUpdated:  r.LastUpdated.UTC(),
		Transactions: []domain.TransactionEntry(r.Transactions),
	}
	if r.Bonus.Valid {
		b := r.Bonus.Decimal
		rec.Bonus = &b
	}
	if r.BonusGivenAt.Valid {
		t := r.BonusGivenAt.Time.UTC()
		rec.BonusGivenAt = &t
	}
	if rec.Transactions == nil {
		rec.Transactions = []domain.TransactionEntry{}
	}
	return rec
}

func newBalanceRow(rec *domain.BalanceRecord) balanceRow {
	row := balanceRow{
		UserID:       rec.UserID,
		Balance:      rec.Balance,
		Currency:     rec.Currency,
		CreatedAt:    rec.CreatedAt,
		LastUpdated:  rec.LastUpdated,
		Transactions: transactionLog(rec.Transactions),
	}
	if rec.Bonus != nil {
		row.Bonus = decimal.NullDecimal{Decimal: *rec.Bonus, Valid: true}
	}
	if rec.BonusGivenAt != nil {
		row.BonusGivenAt = sql.NullTime{Time: *rec.BonusGivenAt, Valid: true}
	}
	return row
}

const balanceColumns = `user_id, balance, currency, created_at, last_updated, bonus, bonus_given_at, transactions`

// BalanceRepository implements repository.BalanceRepository for PostgreSQL.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

var _ repository.BalanceRepository = (*BalanceRepository)(nil)

// GetBalance retrieves the user's record.
func (r *BalanceRepository) GetBalance(ctx context.Context, userID string) (*domain.BalanceRecord, error) {
	return getBalance(ctx, r.db, userID)
}

func getBalance(ctx context.Context, q repository.DBExecutor, userID string) (*domain.BalanceRecord, error) {
	var row balanceRow
	query := `SELECT ` + balanceColumns + ` FROM user_balances WHERE user_id = $1`
	if err := q.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get balance for user %s: %w", userID, err)
	}
	rec := row.toDomain()
	return &rec, nil
}

// SaveBalance inserts or replaces the user's record in a single statement.
func (r *BalanceRepository) SaveBalance(ctx context.Context, record *domain.BalanceRecord) error {
	query := `INSERT INTO user_balances (` + balanceColumns + `)
              VALUES (:user_id, :balance, :currency, :created_at, :last_updated, :bonus, :bonus_given_at, :transactions)
              ON CONFLICT (user_id) DO UPDATE SET
                  balance = EXCLUDED.balance,
                  currency = EXCLUDED.currency,
                  last_updated = EXCLUDED.last_updated,
                  bonus = EXCLUDED.bonus,
                  bonus_given_at = EXCLUDED.bonus_given_at,
                  transactions = EXCLUDED.transactions`
	if _, err := r.db.NamedExecContext(ctx, query, newBalanceRow(record)); err != nil {
		return fmt.Errorf("failed to save balance for user %s: %w", record.UserID, err)
	}
	return nil
}

// ListBalances returns every record ordered by creation time.
func (r *BalanceRepository) ListBalances(ctx context.Context) ([]domain.BalanceRecord, error) {
	return listBalances(ctx, r.db)
}

func listBalances(ctx context.Context, q repository.DBExecutor) ([]domain.BalanceRecord, error) {
	rows := []balanceRow{}
	query := `SELECT ` + balanceColumns + ` FROM user_balances ORDER BY created_at, user_id`
	if err := q.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	out := make([]domain.BalanceRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
