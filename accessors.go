package allowance

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/receipt"
	"github.com/xraph/allowance/types"
)

// Read accessors. None require authentication and none mutate state.

// Account returns a copy of the stored account.
func (e *Engine) Account(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	return e.store.GetAccount(ctx, accountID)
}

func (e *Engine) Owner(ctx context.Context, accountID id.AccountID) (common.Address, error) {
	return project(ctx, e, accountID, func(a *account.Account) common.Address { return a.Owner })
}

func (e *Engine) Delegate(ctx context.Context, accountID id.AccountID) (common.Address, error) {
	return project(ctx, e, accountID, func(a *account.Account) common.Address { return a.Delegate })
}

func (e *Engine) TotalSpent(ctx context.Context, accountID id.AccountID) (types.Amount, error) {
	return project(ctx, e, accountID, func(a *account.Account) types.Amount { return a.TotalSpent })
}

func (e *Engine) SpendingCap(ctx context.Context, accountID id.AccountID) (types.Amount, error) {
	return project(ctx, e, accountID, func(a *account.Account) types.Amount { return a.SpendingCap })
}

func (e *Engine) PerTxLimit(ctx context.Context, accountID id.AccountID) (types.Amount, error) {
	return project(ctx, e, accountID, func(a *account.Account) types.Amount { return a.PerTxLimit })
}

func (e *Engine) Quota(ctx context.Context, accountID id.AccountID) (types.Amount, error) {
	return project(ctx, e, accountID, func(a *account.Account) types.Amount { return a.Quota })
}

// QuotaResetInterval is the window length in seconds.
func (e *Engine) QuotaResetInterval(ctx context.Context, accountID id.AccountID) (uint64, error) {
	return project(ctx, e, accountID, func(a *account.Account) uint64 { return a.QuotaResetInterval })
}

// QuotaSpent is the stored window counter. It does not anticipate a reset
// that the next payment would perform.
func (e *Engine) QuotaSpent(ctx context.Context, accountID id.AccountID) (types.Amount, error) {
	return project(ctx, e, accountID, func(a *account.Account) types.Amount { return a.QuotaSpent })
}

// LastReset is the start of the current window in unix milliseconds.
func (e *Engine) LastReset(ctx context.Context, accountID id.AccountID) (uint64, error) {
	return project(ctx, e, accountID, func(a *account.Account) uint64 { return a.LastReset })
}

// Remaining reports the headroom a payment made now would see, including a
// window reset that is due but not yet persisted.
func (e *Engine) Remaining(ctx context.Context, accountID id.AccountID) (account.Headroom, error) {
	a, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return account.Headroom{}, err
	}
	a.RollWindow(account.NowMillis(e.clock()))
	return a.Remaining(), nil
}

func (e *Engine) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	return e.store.ListAccounts(ctx, opts)
}

// ListReceipts returns flushed receipts. Call FlushReceipts first to include
// receipts still queued.
func (e *Engine) ListReceipts(ctx context.Context, accountID id.AccountID, opts receipt.QueryOpts) ([]*receipt.Receipt, error) {
	return e.store.QueryReceipts(ctx, accountID, opts)
}

func project[T any](ctx context.Context, e *Engine, accountID id.AccountID, field func(*account.Account) T) (T, error) {
	a, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		var zero T
		return zero, err
	}
	return field(a), nil
}
