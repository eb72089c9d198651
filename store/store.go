package store

import (
	"context"
	"time"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/receipt"
)

// Store is the unified storage interface for all allowance entities.
// Methods are declared explicitly because the entity stores share names.
type Store interface {
	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error)
	ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error)
	// UpdateAccount succeeds only when the stored Version equals a.Version
	// and then increments a.Version. Otherwise it returns ErrConflict.
	UpdateAccount(ctx context.Context, a *account.Account) error

	// Receipt methods
	IngestReceipts(ctx context.Context, receipts []*receipt.Receipt) error
	QueryReceipts(ctx context.Context, accountID id.AccountID, opts receipt.QueryOpts) ([]*receipt.Receipt, error)
	PurgeReceipts(ctx context.Context, before time.Time) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
