package sqlite_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/escrow"
	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/receipt"
	"github.com/xraph/allowance/store/sqlite"
	"github.com/xraph/allowance/types"
)

var (
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	delegate  = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	recipient = common.HexToAddress("0x00000000000000000000000000000000000e5c00")
	t0        = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

func openDB(t *testing.T) *grove.DB {
	t.Helper()
	drv := sqlitedriver.New()
	if err := drv.Open(context.Background(), filepath.Join(t.TempDir(), "allowance.db")); err != nil {
		t.Fatal(err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s := sqlite.New(openDB(t))
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newAccount(at time.Time) *account.Account {
	return account.New(owner, delegate, account.Limits{
		SpendingCap: types.NewAmount(1000),
		PerTxLimit:  types.NewAmount(400),
		Quota:       types.NewAmount(500),
	}, at)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestEngineScenario(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	escrows := escrow.NewRegistry()
	esc, err := escrows.Deploy(recipient, owner)
	if err != nil {
		t.Fatal(err)
	}

	s := sqlite.New(openDB(t))
	e := allowance.New(s, escrows,
		allowance.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		allowance.WithClock(func() time.Time { return now }),
	)
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Stop() //nolint:errcheck // closes the temp database

	a, err := e.Open(ctx, owner, delegate, account.Limits{
		SpendingCap:        types.MaxAmount(),
		PerTxLimit:         types.NewAmount(400),
		Quota:              types.NewAmount(500),
		QuotaResetInterval: 60,
	})
	if err != nil {
		t.Fatal(err)
	}

	pay := func(amount uint64) error {
		return e.Pay(ctx, a.ID, delegate, recipient, types.NewAmount(amount))
	}
	if err := pay(300); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if err := pay(300); !errors.Is(err, allowance.ErrExceedsQuota) {
		t.Fatalf("second payment: got %v, want ErrExceedsQuota", err)
	}
	now = now.Add(61 * time.Second)
	if err := pay(300); err != nil {
		t.Fatalf("payment after reset: %v", err)
	}

	got, err := e.Account(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.SpendingCap.Equal(types.MaxAmount()) {
		t.Errorf("spending_cap = %s, want 2^256-1", got.SpendingCap)
	}
	if !got.TotalSpent.Equal(types.NewAmount(600)) || !got.QuotaSpent.Equal(types.NewAmount(300)) {
		t.Errorf("counters = %s/%s, want 600/300", got.TotalSpent, got.QuotaSpent)
	}
	if got.LastReset != account.NowMillis(now) {
		t.Errorf("last_reset = %d, want %d", got.LastReset, account.NowMillis(now))
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
	if !esc.Balance().Equal(types.NewAmount(600)) {
		t.Errorf("escrow balance = %s", esc.Balance())
	}

	if err := e.FlushReceipts(ctx); err != nil {
		t.Fatal(err)
	}
	receipts, err := e.ListReceipts(ctx, a.ID, receipt.QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(receipts) != 3 {
		t.Fatalf("got %d receipts, want 3", len(receipts))
	}
	if receipts[1].Reason != account.ReasonExceedsQuota || !receipts[2].QuotaReset {
		t.Errorf("receipts = %+v", receipts)
	}
}

func TestAccountRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAccount(t0)
	a.SpendingCap = types.MaxAmount()
	a.QuotaResetInterval = ^uint64(0)
	a.LastReset = 1<<63 + 7
	a.Metadata = map[string]string{"team": "payments"}

	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateAccount(ctx, a); !errors.Is(err, allowance.ErrAlreadyExists) {
		t.Errorf("duplicate create: %v", err)
	}

	got, err := s.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.SpendingCap.Equal(types.MaxAmount()) {
		t.Errorf("spending_cap = %s", got.SpendingCap)
	}
	if got.QuotaResetInterval != ^uint64(0) || got.LastReset != 1<<63+7 {
		t.Errorf("uint64 fields = %d/%d", got.QuotaResetInterval, got.LastReset)
	}
	if got.Owner != owner || got.Delegate != delegate || got.Guards != a.Guards {
		t.Errorf("got %+v", got)
	}
	if got.Metadata["team"] != "payments" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, t0)
	}

	if _, err := s.GetAccount(ctx, id.NewAccountID()); !allowance.IsNotFound(err) {
		t.Errorf("missing account: %v", err)
	}
}

func TestUpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a := newAccount(t0)
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatal(err)
	}

	first, _ := s.GetAccount(ctx, a.ID)
	second, _ := s.GetAccount(ctx, a.ID)

	first.TotalSpent = types.NewAmount(100)
	if err := s.UpdateAccount(ctx, first); err != nil {
		t.Fatal(err)
	}
	if first.Version != 1 {
		t.Errorf("version = %d, want 1", first.Version)
	}

	second.TotalSpent = types.NewAmount(200)
	if err := s.UpdateAccount(ctx, second); !errors.Is(err, allowance.ErrConflict) {
		t.Fatalf("stale update: got %v, want ErrConflict", err)
	}

	got, _ := s.GetAccount(ctx, a.ID)
	if !got.TotalSpent.Equal(types.NewAmount(100)) || got.Version != 1 {
		t.Errorf("total = %s version = %d, want 100/1", got.TotalSpent, got.Version)
	}

	if err := s.UpdateAccount(ctx, newAccount(t0)); !errors.Is(err, allowance.ErrAccountNotFound) {
		t.Errorf("update of unknown account: %v", err)
	}
}

func TestListAccounts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for i := range 5 {
		if err := s.CreateAccount(ctx, newAccount(t0.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}
	other := account.New(delegate, common.Address{}, account.Limits{}, t0)
	if err := s.CreateAccount(ctx, other); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts account.ListOpts
		want int
	}{
		{"all", account.ListOpts{}, 6},
		{"by owner", account.ListOpts{Owner: owner}, 5},
		{"by delegate", account.ListOpts{Delegate: delegate}, 5},
		{"paged", account.ListOpts{Owner: owner, Offset: 1, Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListAccounts(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("listed %d accounts, want %d", len(got), tt.want)
			}
		})
	}

	page, _ := s.ListAccounts(ctx, account.ListOpts{Owner: owner, Offset: 1, Limit: 2})
	if len(page) == 2 && !page[0].CreatedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("page not ordered by creation: %v", page[0].CreatedAt)
	}
}

func TestReceipts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	acct := id.NewAccountID()

	batch := []*receipt.Receipt{
		{ID: id.NewReceiptID(), AccountID: acct, Status: receipt.StatusSettled, Amount: types.MaxAmount(), Timestamp: t0.Add(2 * time.Second)},
		{ID: id.NewReceiptID(), AccountID: acct, Status: receipt.StatusDenied, Reason: account.ReasonExceedsQuota, Timestamp: t0},
		{ID: id.NewReceiptID(), AccountID: acct, Status: receipt.StatusSettled, QuotaReset: true, Timestamp: t0.Add(time.Hour)},
		{ID: id.NewReceiptID(), AccountID: id.NewAccountID(), Status: receipt.StatusSettled, Timestamp: t0},
	}
	if err := s.IngestReceipts(ctx, batch); err != nil {
		t.Fatal(err)
	}
	if err := s.IngestReceipts(ctx, batch[:1]); err != nil {
		t.Fatalf("re-ingest: %v", err)
	}

	all, err := s.QueryReceipts(ctx, acct, receipt.QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("query = %d receipts, want 3", len(all))
	}
	if all[0].Reason != account.ReasonExceedsQuota || !all[1].Amount.Equal(types.MaxAmount()) || !all[2].QuotaReset {
		t.Errorf("receipts out of order or mangled: %+v", all)
	}

	settled, _ := s.QueryReceipts(ctx, acct, receipt.QueryOpts{Status: receipt.StatusSettled, End: t0.Add(time.Minute)})
	if len(settled) != 1 {
		t.Errorf("filtered = %d, want 1", len(settled))
	}

	n, err := s.PurgeReceipts(ctx, t0.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("purged %d, want 3", n)
	}
	rest, _ := s.QueryReceipts(ctx, acct, receipt.QueryOpts{})
	if len(rest) != 1 {
		t.Errorf("remaining = %d, want 1", len(rest))
	}
}
