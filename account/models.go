package account

import (
	"maps"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/types"
)

// GuardSet selects which spending guards an account enforces.
type GuardSet uint8

const (
	GuardSpendingCap GuardSet = 1 << iota
	GuardPerTx
	GuardQuota

	GuardNone GuardSet = 0
	GuardAll           = GuardSpendingCap | GuardPerTx | GuardQuota
)

// Has reports whether every guard in g is enabled.
func (s GuardSet) Has(g GuardSet) bool { return s&g == g }

func (s GuardSet) String() string {
	if s == GuardNone {
		return "none"
	}
	out := ""
	for _, g := range []struct {
		bit  GuardSet
		name string
	}{
		{GuardSpendingCap, "spending_cap"},
		{GuardPerTx, "per_tx"},
		{GuardQuota, "quota"},
	} {
		if s.Has(g.bit) {
			if out != "" {
				out += "|"
			}
			out += g.name
		}
	}
	return out
}

// Limits are the constraints fixed when an account is opened. They are
// taken as given: zero and maximal values are both legal.
type Limits struct {
	SpendingCap        types.Amount `json:"spending_cap"`
	PerTxLimit         types.Amount `json:"per_tx_limit"`
	Quota              types.Amount `json:"quota"`
	QuotaResetInterval uint64       `json:"quota_reset_interval"`

	// Guards defaults to GuardAll when left zero.
	Guards GuardSet `json:"guards,omitempty"`
}

// Account is the authorization ledger of one owner/delegate pair.
type Account struct {
	types.Entity
	ID                 id.AccountID      `json:"id"`
	Owner              common.Address    `json:"owner"`
	Delegate           common.Address    `json:"delegate"`
	SpendingCap        types.Amount      `json:"spending_cap"`
	TotalSpent         types.Amount      `json:"total_spent"`
	PerTxLimit         types.Amount      `json:"per_tx_limit"`
	Quota              types.Amount      `json:"quota"`
	QuotaSpent         types.Amount      `json:"quota_spent"`
	QuotaResetInterval uint64            `json:"quota_reset_interval"`
	LastReset          uint64            `json:"last_reset"`
	Guards             GuardSet          `json:"guards"`
	Version            int64             `json:"version"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Headroom is how much more can be spent before each guard trips.
type Headroom struct {
	SpendingCap types.Amount `json:"spending_cap"`
	PerTx       types.Amount `json:"per_tx"`
	Quota       types.Amount `json:"quota"`
	// Spendable is the largest single payment every enabled guard accepts.
	Spendable types.Amount `json:"spendable"`
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	c.Metadata = maps.Clone(a.Metadata)
	return &c
}

// NowMillis converts t to unix milliseconds, the unit of LastReset.
func NowMillis(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}
