// internal/util/errors.go
package util

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Common application-specific errors.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input provided")
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrUserNotFound      = errors.New("user not found")
	ErrRequestNotFound   = errors.New("request not found")
	ErrCorruptStore      = errors.New("persisted store is corrupt")
	ErrArtifactWrite     = errors.New("failed to store uploaded file")
	ErrArtifactDelete    = errors.New("failed to delete uploaded file")
	ErrUnauthorized      = errors.New("unauthorized")
)

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// InsufficientBalanceError carries the balance that was available and the amount a debit required.
type InsufficientBalanceError struct {
	Current  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance. Current: GH%s, Required: GH%s",
		e.Current.StringFixed(2), e.Required.StringFixed(2))
}

// Is makes errors.Is(err, ErrInsufficientFunds) hold.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// CorruptStoreError is returned when persisted data cannot be decoded.
// It must never be treated as an empty store.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt store %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCorruptStore) hold.
func (e *CorruptStoreError) Is(target error) bool {
	return target == ErrCorruptStore
}

// ValidationError lists the request fields that failed validation, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInvalidInput) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
