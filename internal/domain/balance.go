// internal/domain/balance.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// DefaultCurrency is the currency every balance is held in.
const DefaultCurrency = "GHS"

// MaxTransactionHistory bounds the audit trail kept on a BalanceRecord.
const MaxTransactionHistory = 100

// EntryType defines the direction of a balance change.
type EntryType string

const (
	EntryTypeAdd    EntryType = "add"
	EntryTypeDeduct EntryType = "deduct"
)

// TransactionEntry is one audited change to a balance.
type TransactionEntry struct {
	Type            EntryType       `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	AdminEmail      string          `json:"adminEmail"`
	Timestamp       time.Time       `json:"timestamp"`
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	NewBalance      decimal.Decimal `json:"newBalance"`
}

// BalanceRecord is a user's balance together with its recent history.
type BalanceRecord struct {
	UserID       string             `json:"userId"`
	Balance      decimal.Decimal    `json:"balance"`
	Currency     string             `json:"currency"`
	CreatedAt    time.Time          `json:"createdAt"`
	LastUpdated  time.Time          `json:"lastUpdated"`
	Bonus        *decimal.Decimal   `json:"bonus,omitempty"`
	BonusGivenAt *time.Time         `json:"bonusGivenAt,omitempty"`
	Transactions []TransactionEntry `json:"transactions"`
}

// NewBalanceRecord creates an empty record with a zero balance.
func NewBalanceRecord(userID, currency string) *BalanceRecord {
	now := time.Now().UTC()
	return &BalanceRecord{
		UserID:       userID,
		Balance:      decimal.Zero,
		Currency:     currency,
		CreatedAt:    now,
		LastUpdated:  now,
		Transactions: []TransactionEntry{},
	}
}

// Apply changes the balance by amount in the given direction and appends the
// matching audit entry, evicting the oldest entries beyond MaxTransactionHistory.
// Callers validate amount and available funds beforehand.
func (r *BalanceRecord) Apply(entryType EntryType, amount decimal.Decimal, reason, actor string, at time.Time) TransactionEntry {
	previous := r.Balance
	if entryType == EntryTypeDeduct {
		r.Balance = previous.Sub(amount)
	} else {
		r.Balance = previous.Add(amount)
	}
	r.LastUpdated = at

	entry := TransactionEntry{
		Type:            entryType,
		Amount:          amount,
		Reason:          reason,
		AdminEmail:      actor,
		Timestamp:       at,
		PreviousBalance: previous,
		NewBalance:      r.Balance,
	}
	r.Transactions = append(r.Transactions, entry)
	if n := len(r.Transactions); n > MaxTransactionHistory {
		trimmed := make([]TransactionEntry, MaxTransactionHistory)
		copy(trimmed, r.Transactions[n-MaxTransactionHistory:])
		r.Transactions = trimmed
	}
	return entry
}

// Clone returns a deep copy so stored records are never aliased by callers.
func (r *BalanceRecord) Clone() *BalanceRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Bonus != nil {
		b := *r.Bonus
		c.Bonus = &b
	}
	if r.BonusGivenAt != nil {
		t := *r.BonusGivenAt
		c.BonusGivenAt = &t
	}
	c.Transactions = make([]TransactionEntry, len(r.Transactions))
	copy(c.Transactions, r.Transactions)
	return &c
}
