package account

import (
	"errors"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/types"
)

// Authorization and guard errors. None of them are retryable.
var (
	ErrNotDelegate        = errors.New("allowance: caller is neither delegate nor owner")
	ErrNotOwner           = errors.New("allowance: caller is not the owner")
	ErrExceedsSpendingCap = errors.New("allowance: exceeds spending cap")
	ErrExceedsPerTxLimit  = errors.New("allowance: exceeds per-transaction limit")
	ErrExceedsQuota       = errors.New("allowance: exceeds quota")
	ErrTransferFailed     = errors.New("allowance: transfer failed")
)

// Receipt reason codes.
const (
	ReasonNotDelegate        = "not_delegate"
	ReasonExceedsSpendingCap = "exceeds_spending_cap"
	ReasonExceedsPerTxLimit  = "exceeds_per_tx_limit"
	ReasonExceedsQuota       = "exceeds_quota"
	ReasonTransferFailed     = "transfer_failed"
	ReasonOverflow           = "overflow"
	ReasonReserveFailed      = "reserve_failed"
)

// New initializes an account for caller. A zero delegate makes the caller
// both owner and delegate. Limits are stored unvalidated.
func New(caller, delegate common.Address, limits Limits, now time.Time) *Account {
	if delegate == (common.Address{}) {
		delegate = caller
	}
	guards := limits.Guards
	if guards == GuardNone {
		guards = GuardAll
	}

	return &Account{
		Entity:             types.NewEntity(now),
		ID:                 id.NewAccountID(),
		Owner:              caller,
		Delegate:           delegate,
		SpendingCap:        limits.SpendingCap,
		PerTxLimit:         limits.PerTxLimit,
		Quota:              limits.Quota,
		QuotaResetInterval: limits.QuotaResetInterval,
		LastReset:          NowMillis(now),
		Guards:             guards,
	}
}

// Authorize checks that caller may trigger payments.
func (a *Account) Authorize(caller common.Address) error {
	if caller != a.Delegate && caller != a.Owner {
		return ErrNotDelegate
	}
	return nil
}

// WindowDeadline is the unix millisecond at which the current quota window
// elapses. ok is false when the deadline does not fit in 64 bits, in which
// case the window never elapses.
func (a *Account) WindowDeadline() (deadline uint64, ok bool) {
	if a.QuotaResetInterval > (math.MaxUint64-a.LastReset)/1000 {
		return math.MaxUint64, false
	}
	return a.LastReset + a.QuotaResetInterval*1000, true
}

// RollWindow starts a new quota window when nowMs has reached the deadline
// and reports whether it did. LastReset never moves backwards.
func (a *Account) RollWindow(nowMs uint64) bool {
	deadline, ok := a.WindowDeadline()
	if !ok || nowMs < deadline {
		return false
	}
	a.QuotaSpent = types.Zero()
	a.LastReset = nowMs
	return true
}

// Check evaluates the enabled guards for amount in fixed order: spending cap,
// per-transaction limit, quota. It does not mutate the account.
func (a *Account) Check(amount types.Amount) error {
	if a.Guards.Has(GuardSpendingCap) {
		total, err := a.TotalSpent.Add(amount)
		if err != nil {
			return err
		}
		if total.GreaterThan(a.SpendingCap) {
			return ErrExceedsSpendingCap
		}
	}

	if a.Guards.Has(GuardPerTx) && amount.GreaterThan(a.PerTxLimit) {
		return ErrExceedsPerTxLimit
	}

	if a.Guards.Has(GuardQuota) {
		spent, err := a.QuotaSpent.Add(amount)
		if err != nil {
			return err
		}
		if spent.GreaterThan(a.Quota) {
			return ErrExceedsQuota
		}
	}

	return nil
}

// Commit adds amount to both running counters. On overflow the account is
// left unchanged.
func (a *Account) Commit(amount types.Amount) error {
	total, err := a.TotalSpent.Add(amount)
	if err != nil {
		return err
	}
	spent, err := a.QuotaSpent.Add(amount)
	if err != nil {
		return err
	}
	a.TotalSpent = total
	a.QuotaSpent = spent
	return nil
}

// SetDelegate replaces the delegate. Only the owner may call it; the new
// value is not otherwise validated.
func (a *Account) SetDelegate(caller, next common.Address) error {
	if caller != a.Owner {
		return ErrNotOwner
	}
	a.Delegate = next
	return nil
}

// Remaining reports the headroom left under each guard. Disabled guards
// report types.MaxAmount.
func (a *Account) Remaining() Headroom {
	h := Headroom{
		SpendingCap: types.MaxAmount(),
		PerTx:       types.MaxAmount(),
		Quota:       types.MaxAmount(),
	}
	if a.Guards.Has(GuardSpendingCap) {
		h.SpendingCap = a.SpendingCap.SaturatingSub(a.TotalSpent)
	}
	if a.Guards.Has(GuardPerTx) {
		h.PerTx = a.PerTxLimit
	}
	if a.Guards.Has(GuardQuota) {
		h.Quota = a.Quota.SaturatingSub(a.QuotaSpent)
	}
	h.Spendable = h.SpendingCap.Min(h.PerTx).Min(h.Quota)
	return h
}

// Reason maps an error returned by a payment to its receipt reason code.
// It returns "" for errors outside the payment taxonomy.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotDelegate):
		return ReasonNotDelegate
	case errors.Is(err, ErrExceedsSpendingCap):
		return ReasonExceedsSpendingCap
	case errors.Is(err, ErrExceedsPerTxLimit):
		return ReasonExceedsPerTxLimit
	case errors.Is(err, ErrExceedsQuota):
		return ReasonExceedsQuota
	case errors.Is(err, ErrTransferFailed):
		return ReasonTransferFailed
	case errors.Is(err, types.ErrOverflow):
		return ReasonOverflow
	default:
		return ""
	}
}

// IsGuardError reports whether err is one of the three spending guards.
func IsGuardError(err error) bool {
	return errors.Is(err, ErrExceedsSpendingCap) ||
		errors.Is(err, ErrExceedsPerTxLimit) ||
		errors.Is(err, ErrExceedsQuota)
}
