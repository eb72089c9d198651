package sqlite

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/receipt"
	"github.com/xraph/allowance/types"
)

// SQLite has no 256-bit or unsigned 64-bit integer, so amounts and uint64
// counters are held as decimal text. Metadata is JSON text.

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:allowance_accounts"`

	ID                 string            `grove:"id,pk"`
	Owner              string            `grove:"owner"`
	Delegate           string            `grove:"delegate"`
	SpendingCap        types.Amount      `grove:"spending_cap"`
	TotalSpent         types.Amount      `grove:"total_spent"`
	PerTxLimit         types.Amount      `grove:"per_tx_limit"`
	Quota              types.Amount      `grove:"quota"`
	QuotaSpent         types.Amount      `grove:"quota_spent"`
	QuotaResetInterval string            `grove:"quota_reset_interval"`
	LastReset          string            `grove:"last_reset"`
	Guards             int               `grove:"guards"`
	Version            int64             `grove:"version"`
	Metadata           string            `grove:"metadata"`
	CreatedAt          time.Time         `grove:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:                 a.ID.String(),
		Owner:              a.Owner.Hex(),
		Delegate:           a.Delegate.Hex(),
		SpendingCap:        a.SpendingCap,
		TotalSpent:         a.TotalSpent,
		PerTxLimit:         a.PerTxLimit,
		Quota:              a.Quota,
		QuotaSpent:         a.QuotaSpent,
		QuotaResetInterval: strconv.FormatUint(a.QuotaResetInterval, 10),
		LastReset:          strconv.FormatUint(a.LastReset, 10),
		Guards:             int(a.Guards),
		Version:            a.Version,
		Metadata:           encodeMetadata(a.Metadata),
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}
	interval, err := strconv.ParseUint(m.QuotaResetInterval, 10, 64)
	if err != nil {
		return nil, err
	}
	lastReset, err := strconv.ParseUint(m.LastReset, 10, 64)
	if err != nil {
		return nil, err
	}

	return &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 accountID,
		Owner:              common.HexToAddress(m.Owner),
		Delegate:           common.HexToAddress(m.Delegate),
		SpendingCap:        m.SpendingCap,
		TotalSpent:         m.TotalSpent,
		PerTxLimit:         m.PerTxLimit,
		Quota:              m.Quota,
		QuotaSpent:         m.QuotaSpent,
		QuotaResetInterval: interval,
		LastReset:          lastReset,
		Guards:             account.GuardSet(m.Guards),
		Version:            m.Version,
		Metadata:           decodeMetadata(m.Metadata),
	}, nil
}

// ==================== Receipt models ====================

type receiptModel struct {
	grove.BaseModel `grove:"table:allowance_receipts"`

	ID         string            `grove:"id,pk"`
	AccountID  string            `grove:"account_id"`
	Caller     string            `grove:"caller"`
	Recipient  string            `grove:"recipient"`
	Amount     types.Amount      `grove:"amount"`
	Status     string            `grove:"status"`
	Reason     string            `grove:"reason"`
	QuotaReset bool              `grove:"quota_reset"`
	TotalSpent types.Amount      `grove:"total_spent"`
	QuotaSpent types.Amount      `grove:"quota_spent"`
	Timestamp  time.Time         `grove:"timestamp"`
	Metadata   string            `grove:"metadata"`
	CreatedAt  time.Time         `grove:"created_at"`
}

func toReceiptModel(r *receipt.Receipt) *receiptModel {
	return &receiptModel{
		ID:         r.ID.String(),
		AccountID:  r.AccountID.String(),
		Caller:     r.Caller.Hex(),
		Recipient:  r.Recipient.Hex(),
		Amount:     r.Amount,
		Status:     string(r.Status),
		Reason:     r.Reason,
		QuotaReset: r.QuotaReset,
		TotalSpent: r.TotalSpent,
		QuotaSpent: r.QuotaSpent,
		Timestamp:  r.Timestamp,
		Metadata:   encodeMetadata(r.Metadata),
		CreatedAt:  time.Now().UTC(),
	}
}

func fromReceiptModel(m *receiptModel) (*receipt.Receipt, error) {
	receiptID, err := id.ParseReceiptID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}

	return &receipt.Receipt{
		ID:         receiptID,
		AccountID:  accountID,
		Caller:     common.HexToAddress(m.Caller),
		Recipient:  common.HexToAddress(m.Recipient),
		Amount:     m.Amount,
		Status:     receipt.Status(m.Status),
		Reason:     m.Reason,
		QuotaReset: m.QuotaReset,
		TotalSpent: m.TotalSpent,
		QuotaSpent: m.QuotaSpent,
		Timestamp:  m.Timestamp,
		Metadata:   decodeMetadata(m.Metadata),
	}, nil
}

// ==================== Helpers ====================

func encodeMetadata(md map[string]string) string {
	if len(md) == 0 {
		return "{}"
	}
	data, _ := json.Marshal(md) //nolint:errcheck // map[string]string always marshals
	return string(data)
}

func decodeMetadata(s string) map[string]string {
	if s == "" || s == "{}" {
		return nil
	}
	var md map[string]string
	_ = json.Unmarshal([]byte(s), &md) //nolint:errcheck // best-effort
	return md
}
