package allowance

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/types"
)

// Re-export common types so callers rarely need the sub-packages.

// Address identifies an owner, delegate or recipient.
type Address = common.Address

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Limits is re-exported from account package.
type Limits = account.Limits

// Re-export constructors
var (
	NewAmount       = types.NewAmount
	ParseAmount     = types.ParseAmount
	MustParseAmount = types.MustParseAmount
	Zero            = types.Zero
	MaxAmount       = types.MaxAmount
	HexToAddress    = common.HexToAddress
)

// Guard selections.
const (
	GuardSpendingCap = account.GuardSpendingCap
	GuardPerTx       = account.GuardPerTx
	GuardQuota       = account.GuardQuota
	GuardAll         = account.GuardAll
)
