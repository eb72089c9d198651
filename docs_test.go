package allowance_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/escrow"
	"github.com/xraph/allowance/store/memory"
	"github.com/xraph/allowance/types"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		owner := allowance.HexToAddress("0x00000000000000000000000000000000000000a1")
		delegate := allowance.HexToAddress("0x00000000000000000000000000000000000000d1")
		recipient := allowance.HexToAddress("0x00000000000000000000000000000000000e5c00")

		escrows := escrow.NewRegistry()
		if _, err := escrows.Deploy(recipient, owner); err != nil {
			t.Fatal(err)
		}

		e := allowance.New(memory.New(), escrows,
			allowance.WithLogger(slog.Default()),
			allowance.WithReceiptConfig(100, 5*time.Second),
		)

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		acct, err := e.Open(ctx, owner, delegate, allowance.Limits{
			SpendingCap:        allowance.NewAmount(1000),
			PerTxLimit:         allowance.NewAmount(400),
			Quota:              allowance.NewAmount(500),
			QuotaResetInterval: 60,
		})
		if err != nil {
			t.Fatal(err)
		}

		if err := e.Pay(ctx, acct.ID, delegate, recipient, allowance.NewAmount(300)); err != nil {
			t.Fatal(err)
		}

		err = e.Pay(ctx, acct.ID, delegate, recipient, allowance.NewAmount(300))
		switch {
		case allowance.IsGuardError(err):
			// over a limit; nothing was spent
		case errors.Is(err, allowance.ErrTransferFailed):
			t.Fatal("unexpected transfer failure")
		default:
			t.Fatalf("expected a guard error, got %v", err)
		}
	})

	t.Run("AmountExamples", func(t *testing.T) {
		fare := types.MustParseAmount("200000000000000000")
		if got := fare.FormatUnits(18); got != "0.2" {
			t.Errorf("FormatUnits = %q", got)
		}
		if _, err := types.MaxAmount().Add(types.NewAmount(1)); !errors.Is(err, allowance.ErrOverflow) {
			t.Errorf("expected ErrOverflow, got %v", err)
		}
	})
}
