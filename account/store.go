package account

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/id"
)

// Store persists accounts. Update is a compare-and-swap on Version: it
// succeeds only if the stored version equals a.Version, and increments it.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, accountID id.AccountID) (*Account, error)
	List(ctx context.Context, opts ListOpts) ([]*Account, error)
	Update(ctx context.Context, a *Account) error
}

type ListOpts struct {
	Owner    common.Address
	Delegate common.Address
	Limit    int
	Offset   int
}
