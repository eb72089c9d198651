package allowance

import (
	"errors"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/types"
)

// Payment and authorization errors. They are the same values the account
// package returns, so errors.Is works against either.
var (
	ErrNotDelegate        = account.ErrNotDelegate
	ErrNotOwner           = account.ErrNotOwner
	ErrExceedsSpendingCap = account.ErrExceedsSpendingCap
	ErrExceedsPerTxLimit  = account.ErrExceedsPerTxLimit
	ErrExceedsQuota       = account.ErrExceedsQuota
	ErrTransferFailed     = account.ErrTransferFailed
	ErrOverflow           = types.ErrOverflow
)

// Store and engine errors.
var (
	ErrAccountNotFound   = errors.New("allowance: account not found")
	ErrAlreadyExists     = errors.New("allowance: already exists")
	ErrConflict          = errors.New("allowance: concurrent update conflict")
	ErrReceiptBufferFull = errors.New("allowance: receipt buffer full")
	ErrStoreClosed       = errors.New("allowance: store is closed")
	ErrMigrationFailed   = errors.New("allowance: migration failed")
)

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// IsGuardError returns true if a spending guard rejected the payment.
func IsGuardError(err error) bool {
	return account.IsGuardError(err)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrReceiptBufferFull)
}
