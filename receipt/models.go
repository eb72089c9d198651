package receipt

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/types"
)

type Status string

const (
	StatusSettled Status = "settled"
	StatusDenied  Status = "denied"
	StatusFailed  Status = "failed"
)

// Receipt records one payment attempt and the counters it left behind.
type Receipt struct {
	ID         id.ReceiptID      `json:"id"`
	AccountID  id.AccountID      `json:"account_id"`
	Caller     common.Address    `json:"caller"`
	Recipient  common.Address    `json:"recipient"`
	Amount     types.Amount      `json:"amount"`
	Status     Status            `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	QuotaReset bool              `json:"quota_reset"`
	TotalSpent types.Amount      `json:"total_spent"`
	QuotaSpent types.Amount      `json:"quota_spent"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
