package receipt

import (
	"context"
	"time"

	"github.com/xraph/allowance/id"
)

type Store interface {
	IngestBatch(ctx context.Context, receipts []*Receipt) error
	Query(ctx context.Context, accountID id.AccountID, opts QueryOpts) ([]*Receipt, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// QueryOpts filters receipts. Results are ordered oldest first.
type QueryOpts struct {
	Status Status
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}
