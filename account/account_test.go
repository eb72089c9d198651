package account_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/types"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	delegate = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	epoch    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func scenarioLimits() account.Limits {
	return account.Limits{
		SpendingCap:        types.NewAmount(1000),
		PerTxLimit:         types.NewAmount(400),
		Quota:              types.NewAmount(500),
		QuotaResetInterval: 60,
	}
}

// pay runs the same sequence as the engine against a bare account.
func pay(a *account.Account, caller common.Address, amount uint64, now time.Time) error {
	if err := a.Authorize(caller); err != nil {
		return err
	}
	a.RollWindow(account.NowMillis(now))
	if err := a.Check(types.NewAmount(amount)); err != nil {
		return err
	}
	return a.Commit(types.NewAmount(amount))
}

func TestNew(t *testing.T) {
	a := account.New(owner, delegate, scenarioLimits(), epoch)
	if a.Owner != owner || a.Delegate != delegate {
		t.Errorf("owner/delegate = %s/%s", a.Owner, a.Delegate)
	}
	if !a.TotalSpent.IsZero() || !a.QuotaSpent.IsZero() {
		t.Error("counters not zeroed")
	}
	if a.LastReset != uint64(epoch.UnixMilli()) {
		t.Errorf("LastReset = %d, want %d", a.LastReset, epoch.UnixMilli())
	}
	if a.Guards != account.GuardAll {
		t.Errorf("Guards = %s, want all", a.Guards)
	}
	if a.ID.IsNil() {
		t.Error("expected an ID")
	}
}

func TestNewZeroDelegate(t *testing.T) {
	a := account.New(owner, common.Address{}, scenarioLimits(), epoch)
	if a.Delegate != owner {
		t.Errorf("Delegate = %s, want owner", a.Delegate)
	}
}

func TestNewAcceptsExtremeLimits(t *testing.T) {
	a := account.New(owner, delegate, account.Limits{
		SpendingCap:        types.MaxAmount(),
		QuotaResetInterval: math.MaxUint64,
	}, epoch)
	if !a.SpendingCap.Equal(types.MaxAmount()) || !a.PerTxLimit.IsZero() {
		t.Error("limits were altered")
	}
	if err := pay(a, delegate, 1, epoch); !errors.Is(err, account.ErrExceedsPerTxLimit) {
		t.Errorf("zero per-tx limit: got %v", err)
	}
}

func TestScenario(t *testing.T) {
	a := account.New(owner, delegate, scenarioLimits(), epoch)

	steps := []struct {
		name       string
		at         time.Duration
		amount     uint64
		wantErr    error
		wantTotal  uint64
		wantWindow uint64
	}{
		{"first payment", 0, 300, nil, 300, 300},
		{"quota exceeded", time.Second, 300, account.ErrExceedsQuota, 300, 300},
		{"after reset", 61 * time.Second, 300, nil, 600, 300},
		// 600+500 also breaks the cap, and the cap is evaluated first.
		{"cap before per-tx", 62 * time.Second, 500, account.ErrExceedsSpendingCap, 600, 300},
	}

	for _, st := range steps {
		err := pay(a, delegate, st.amount, epoch.Add(st.at))
		if !errors.Is(err, st.wantErr) {
			t.Fatalf("%s: got %v, want %v", st.name, err, st.wantErr)
		}
		if !a.TotalSpent.Equal(types.NewAmount(st.wantTotal)) {
			t.Errorf("%s: total_spent = %s, want %d", st.name, a.TotalSpent, st.wantTotal)
		}
		if !a.QuotaSpent.Equal(types.NewAmount(st.wantWindow)) {
			t.Errorf("%s: quota_spent = %s, want %d", st.name, a.QuotaSpent, st.wantWindow)
		}
	}
}

func TestGuardOrder(t *testing.T) {
	// Every guard would trip; the cap is reported first.
	a := account.New(owner, delegate, account.Limits{
		SpendingCap: types.NewAmount(10),
		PerTxLimit:  types.NewAmount(10),
		Quota:       types.NewAmount(10),
	}, epoch)
	if err := a.Check(types.NewAmount(11)); !errors.Is(err, account.ErrExceedsSpendingCap) {
		t.Errorf("got %v, want ErrExceedsSpendingCap", err)
	}

	a.SpendingCap = types.NewAmount(100)
	if err := a.Check(types.NewAmount(11)); !errors.Is(err, account.ErrExceedsPerTxLimit) {
		t.Errorf("got %v, want ErrExceedsPerTxLimit", err)
	}

	// Scenario limits with 300 spent in the window: 500 trips per-tx
	// before the quota is consulted.
	b := account.New(owner, delegate, scenarioLimits(), epoch)
	if err := b.Commit(types.NewAmount(300)); err != nil {
		t.Fatal(err)
	}
	if err := b.Check(types.NewAmount(500)); !errors.Is(err, account.ErrExceedsPerTxLimit) {
		t.Errorf("got %v, want ErrExceedsPerTxLimit", err)
	}
}

func TestExactHeadroom(t *testing.T) {
	tests := []struct {
		name    string
		limits  account.Limits
		spent   uint64
		wantErr error
	}{
		{"cap", account.Limits{SpendingCap: types.NewAmount(500), PerTxLimit: types.NewAmount(1000), Quota: types.NewAmount(1000)}, 100, account.ErrExceedsSpendingCap},
		{"per tx", account.Limits{SpendingCap: types.NewAmount(1000), PerTxLimit: types.NewAmount(400), Quota: types.NewAmount(1000)}, 0, account.ErrExceedsPerTxLimit},
		{"quota", account.Limits{SpendingCap: types.NewAmount(1000), PerTxLimit: types.NewAmount(1000), Quota: types.NewAmount(500)}, 100, account.ErrExceedsQuota},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.limits.QuotaResetInterval = 3600
			a := account.New(owner, delegate, tt.limits, epoch)
			if tt.spent > 0 {
				if err := a.Commit(types.NewAmount(tt.spent)); err != nil {
					t.Fatal(err)
				}
			}

			headroom := a.Remaining().Spendable
			over, err := headroom.Add(types.NewAmount(1))
			if err != nil {
				t.Fatal(err)
			}
			if err := a.Check(over); !errors.Is(err, tt.wantErr) {
				t.Errorf("headroom+1: got %v, want %v", err, tt.wantErr)
			}
			if err := a.Check(headroom); err != nil {
				t.Errorf("exact headroom %s rejected: %v", headroom, err)
			}
		})
	}
}

func TestNotDelegateLeavesStateUnchanged(t *testing.T) {
	a := account.New(owner, delegate, scenarioLimits(), epoch)
	before := a.Clone()

	if err := pay(a, stranger, 1, epoch.Add(time.Hour)); !errors.Is(err, account.ErrNotDelegate) {
		t.Fatalf("got %v, want ErrNotDelegate", err)
	}
	if a.LastReset != before.LastReset || !a.TotalSpent.Equal(before.TotalSpent) {
		t.Error("state changed after failed authentication")
	}
}

func TestOwnerMayPay(t *testing.T) {
	a := account.New(owner, delegate, scenarioLimits(), epoch)
	if err := pay(a, owner, 100, epoch); err != nil {
		t.Fatalf("owner payment: %v", err)
	}
}

func TestRollWindow(t *testing.T) {
	start := account.NowMillis(epoch)
	tests := []struct {
		name      string
		interval  uint64
		lastReset uint64
		now       uint64
		wantRoll  bool
	}{
		{"before deadline", 60, start, start + 59_999, false},
		{"at deadline", 60, start, start + 60_000, true},
		{"after deadline", 60, start, start + 3_600_000, true},
		{"zero interval", 0, start, start, true},
		{"clock behind", 60, start, start - 1, false},
		{"saturated deadline", math.MaxUint64, start, math.MaxUint64, false},
		{"max reset", 1, math.MaxUint64, math.MaxUint64, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := account.New(owner, delegate, account.Limits{QuotaResetInterval: tt.interval}, epoch)
			a.LastReset = tt.lastReset
			a.QuotaSpent = types.NewAmount(7)

			rolled := a.RollWindow(tt.now)
			if rolled != tt.wantRoll {
				t.Fatalf("rolled = %v, want %v", rolled, tt.wantRoll)
			}
			if rolled {
				if !a.QuotaSpent.IsZero() || a.LastReset != tt.now {
					t.Errorf("after roll: quota_spent=%s last_reset=%d", a.QuotaSpent, a.LastReset)
				}
			} else if a.LastReset != tt.lastReset || !a.QuotaSpent.Equal(types.NewAmount(7)) {
				t.Error("window changed without rolling")
			}
		})
	}
}

func TestResetSurvivesGuardFailure(t *testing.T) {
	a := account.New(owner, delegate, scenarioLimits(), epoch)
	if err := pay(a, delegate, 300, epoch); err != nil {
		t.Fatal(err)
	}

	later := epoch.Add(2 * time.Minute)
	if err := pay(a, delegate, 401, later); !errors.Is(err, account.ErrExceedsPerTxLimit) {
		t.Fatalf("got %v", err)
	}
	if !a.QuotaSpent.IsZero() || a.LastReset != account.NowMillis(later) {
		t.Errorf("reset not kept: quota_spent=%s last_reset=%d", a.QuotaSpent, a.LastReset)
	}
}

func TestOverflow(t *testing.T) {
	a := account.New(owner, delegate, account.Limits{
		SpendingCap: types.MaxAmount(),
		PerTxLimit:  types.MaxAmount(),
		Quota:       types.MaxAmount(),
	}, epoch)
	if err := a.Commit(types.MaxAmount()); err != nil {
		t.Fatal(err)
	}

	if err := a.Check(types.NewAmount(1)); !errors.Is(err, types.ErrOverflow) {
		t.Errorf("Check: got %v, want ErrOverflow", err)
	}
	if err := a.Commit(types.NewAmount(1)); !errors.Is(err, types.ErrOverflow) {
		t.Errorf("Commit: got %v, want ErrOverflow", err)
	}
	if !a.TotalSpent.Equal(types.MaxAmount()) {
		t.Error("counter wrapped")
	}
}

func TestDisabledGuards(t *testing.T) {
	a := account.New(owner, delegate, account.Limits{
		SpendingCap: types.NewAmount(10),
		PerTxLimit:  types.NewAmount(10),
		Quota:       types.NewAmount(10),
		Guards:      account.GuardPerTx,
	}, epoch)

	for range 3 {
		if err := pay(a, delegate, 10, epoch); err != nil {
			t.Fatalf("unexpected error with cap and quota disabled: %v", err)
		}
	}
	if err := a.Check(types.NewAmount(11)); !errors.Is(err, account.ErrExceedsPerTxLimit) {
		t.Errorf("per-tx guard: got %v", err)
	}
	if !a.TotalSpent.Equal(types.NewAmount(30)) {
		t.Errorf("counters not committed: %s", a.TotalSpent)
	}
	if h := a.Remaining(); !h.SpendingCap.Equal(types.MaxAmount()) || !h.Spendable.Equal(types.NewAmount(10)) {
		t.Errorf("headroom = %+v", h)
	}
}

func TestSetDelegate(t *testing.T) {
	a := account.New(owner, delegate, scenarioLimits(), epoch)

	if err := a.SetDelegate(delegate, stranger); !errors.Is(err, account.ErrNotOwner) {
		t.Fatalf("delegate changed delegate: %v", err)
	}
	if a.Delegate != delegate {
		t.Error("delegate changed after ErrNotOwner")
	}

	// Owner may set any address, including itself or the current value.
	for _, next := range []common.Address{owner, owner, stranger} {
		if err := a.SetDelegate(owner, next); err != nil {
			t.Fatal(err)
		}
		if a.Delegate != next {
			t.Errorf("Delegate = %s, want %s", a.Delegate, next)
		}
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{account.ErrNotDelegate, account.ReasonNotDelegate},
		{account.ErrExceedsSpendingCap, account.ReasonExceedsSpendingCap},
		{account.ErrExceedsPerTxLimit, account.ReasonExceedsPerTxLimit},
		{account.ErrExceedsQuota, account.ReasonExceedsQuota},
		{errors.Join(account.ErrTransferFailed, errors.New("reverted")), account.ReasonTransferFailed},
		{types.ErrOverflow, account.ReasonOverflow},
		{errors.New("other"), ""},
	}

	for _, tt := range tests {
		if got := account.Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := account.New(owner, delegate, scenarioLimits(), epoch)
	a.Metadata = map[string]string{"k": "v"}

	c := a.Clone()
	c.Metadata["k"] = "changed"
	if err := c.Commit(types.NewAmount(5)); err != nil {
		t.Fatal(err)
	}

	if a.Metadata["k"] != "v" || !a.TotalSpent.IsZero() {
		t.Error("clone shares state with original")
	}
}

func TestGuardSetString(t *testing.T) {
	if got := account.GuardAll.String(); got != "spending_cap|per_tx|quota" {
		t.Errorf("got %q", got)
	}
	if got := account.GuardNone.String(); got != "none" {
		t.Errorf("got %q", got)
	}
}
