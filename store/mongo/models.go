package mongo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/receipt"
	"github.com/xraph/allowance/types"
)

// BSON has no 256-bit integer and no unsigned 64-bit integer, so amounts and
// window counters are stored as decimal strings.

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:allowance_accounts"`

	ID                 string            `grove:"id,pk"                bson:"_id"`
	Owner              string            `grove:"owner"                bson:"owner"`
	Delegate           string            `grove:"delegate"             bson:"delegate"`
	SpendingCap        string            `grove:"spending_cap"         bson:"spending_cap"`
	TotalSpent         string            `grove:"total_spent"          bson:"total_spent"`
	PerTxLimit         string            `grove:"per_tx_limit"         bson:"per_tx_limit"`
	Quota              string            `grove:"quota"                bson:"quota"`
	QuotaSpent         string            `grove:"quota_spent"          bson:"quota_spent"`
	QuotaResetInterval string            `grove:"quota_reset_interval" bson:"quota_reset_interval"`
	LastReset          string            `grove:"last_reset"           bson:"last_reset"`
	Guards             int32             `grove:"guards"               bson:"guards"`
	Version            int64             `grove:"version"              bson:"version"`
	Metadata           map[string]string `grove:"metadata"             bson:"metadata,omitempty"`
	CreatedAt          time.Time         `grove:"created_at"           bson:"created_at"`
	UpdatedAt          time.Time         `grove:"updated_at"           bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:                 a.ID.String(),
		Owner:              a.Owner.Hex(),
		Delegate:           a.Delegate.Hex(),
		SpendingCap:        a.SpendingCap.String(),
		TotalSpent:         a.TotalSpent.String(),
		PerTxLimit:         a.PerTxLimit.String(),
		Quota:              a.Quota.String(),
		QuotaSpent:         a.QuotaSpent.String(),
		QuotaResetInterval: strconv.FormatUint(a.QuotaResetInterval, 10),
		LastReset:          strconv.FormatUint(a.LastReset, 10),
		Guards:             int32(a.Guards),
		Version:            a.Version,
		Metadata:           a.Metadata,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}

	var amounts [5]types.Amount
	for i, s := range []string{m.SpendingCap, m.TotalSpent, m.PerTxLimit, m.Quota, m.QuotaSpent} {
		if amounts[i], err = types.ParseAmount(s); err != nil {
			return nil, fmt.Errorf("account %s: %w", m.ID, err)
		}
	}
	interval, err := strconv.ParseUint(m.QuotaResetInterval, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", m.ID, err)
	}
	lastReset, err := strconv.ParseUint(m.LastReset, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", m.ID, err)
	}

	return &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 accountID,
		Owner:              common.HexToAddress(m.Owner),
		Delegate:           common.HexToAddress(m.Delegate),
		SpendingCap:        amounts[0],
		TotalSpent:         amounts[1],
		PerTxLimit:         amounts[2],
		Quota:              amounts[3],
		QuotaSpent:         amounts[4],
		QuotaResetInterval: interval,
		LastReset:          lastReset,
		Guards:             account.GuardSet(m.Guards),
		Version:            m.Version,
		Metadata:           m.Metadata,
	}, nil
}

// ==================== Receipt models ====================

type receiptModel struct {
	grove.BaseModel `grove:"table:allowance_receipts"`

	ID         string            `grove:"id,pk"       bson:"_id"`
	AccountID  string            `grove:"account_id"  bson:"account_id"`
	Caller     string            `grove:"caller"      bson:"caller"`
	Recipient  string            `grove:"recipient"   bson:"recipient"`
	Amount     string            `grove:"amount"      bson:"amount"`
	Status     string            `grove:"status"      bson:"status"`
	Reason     string            `grove:"reason"      bson:"reason,omitempty"`
	QuotaReset bool              `grove:"quota_reset" bson:"quota_reset"`
	TotalSpent string            `grove:"total_spent" bson:"total_spent"`
	QuotaSpent string            `grove:"quota_spent" bson:"quota_spent"`
	Timestamp  time.Time         `grove:"timestamp"   bson:"timestamp"`
	Metadata   map[string]string `grove:"metadata"    bson:"metadata,omitempty"`
}

func toReceiptModel(r *receipt.Receipt) *receiptModel {
	return &receiptModel{
		ID:         r.ID.String(),
		AccountID:  r.AccountID.String(),
		Caller:     r.Caller.Hex(),
		Recipient:  r.Recipient.Hex(),
		Amount:     r.Amount.String(),
		Status:     string(r.Status),
		Reason:     r.Reason,
		QuotaReset: r.QuotaReset,
		TotalSpent: r.TotalSpent.String(),
		QuotaSpent: r.QuotaSpent.String(),
		Timestamp:  r.Timestamp,
		Metadata:   r.Metadata,
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

	var amounts [3]types.Amount
	for i, s := range []string{m.Amount, m.TotalSpent, m.QuotaSpent} {
		if amounts[i], err = types.ParseAmount(s); err != nil {
			return nil, fmt.Errorf("receipt %s: %w", m.ID, err)
		}
	}

	return &receipt.Receipt{
		ID:         receiptID,
		AccountID:  accountID,
		Caller:     common.HexToAddress(m.Caller),
		Recipient:  common.HexToAddress(m.Recipient),
		Amount:     amounts[0],
		Status:     receipt.Status(m.Status),
		Reason:     m.Reason,
		QuotaReset: m.QuotaReset,
		TotalSpent: amounts[1],
		QuotaSpent: amounts[2],
		Timestamp:  m.Timestamp,
		Metadata:   m.Metadata,
	}, nil
}
