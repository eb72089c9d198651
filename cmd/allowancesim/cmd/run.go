package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/account"
)

var (
	runCap      string
	runPerTx    string
	runQuota    string
	runInterval uint64
	runAmount   string
	runCount    int
	runPause    time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a series of delegate payments to an escrow",
	Long: `Open an account with the given limits and have the delegate pay the escrow
--count times, pausing --pause between attempts. Amounts are in base units
(wei); the default payment is 0.2 of an 18-decimal coin.`,
	Example: `  allowancesim run --count 10
  allowancesim run --quota 500000000000000000 --interval 5 --pause 2s -o yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limits, err := parseLimits(runCap, runPerTx, runQuota, runInterval)
		if err != nil {
			return err
		}
		amount, err := allowance.ParseAmount(runAmount)
		if err != nil {
			return fmt.Errorf("--amount: %w", err)
		}
		if runCount < 1 {
			return fmt.Errorf("--count must be positive")
		}

		ctx := cmd.Context()
		sim, err := newSimulation(ctx, limits, coinDecimals)
		if err != nil {
			return err
		}
		defer sim.close() //nolint:errcheck // memory store

		out := cmd.OutOrStdout()
		table := outputFormat == "table" || outputFormat == ""
		if table {
			fmt.Fprintf(out, "%s account %s, delegate %s paying escrow %s\n",
				stepFmt("=>"), sim.account.ID, delegateAddr.Hex(), escrowAddr.Hex())
		}

		attempts := make([]attempt, 0, runCount)
		for i := 1; i <= runCount; i++ {
			at, err := sim.pay(ctx, i, amount)
			if err != nil {
				return err
			}
			attempts = append(attempts, at)
			if table {
				printAttempt(out, at)
			}
			if i < runCount && runPause > 0 {
				select {
				case <-time.After(runPause):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}

		r, err := sim.report(ctx, attempts)
		if err != nil {
			return err
		}
		return printReport(out, r)
	},
}

func init() {
	runCmd.Flags().StringVar(&runCap, "cap", "1000000000000000000", "Lifetime spending cap (base units)")
	runCmd.Flags().StringVar(&runPerTx, "per-tx", "400000000000000000", "Per-payment limit (base units)")
	runCmd.Flags().StringVar(&runQuota, "quota", "500000000000000000", "Quota per window (base units)")
	runCmd.Flags().Uint64Var(&runInterval, "interval", 60, "Quota window length in seconds")
	runCmd.Flags().StringVar(&runAmount, "amount", "200000000000000000", "Amount of each payment (base units)")
	runCmd.Flags().IntVar(&runCount, "count", 5, "Number of payments to attempt")
	runCmd.Flags().DurationVar(&runPause, "pause", 0, "Pause between payments")
	rootCmd.AddCommand(runCmd)
}

func parseLimits(capStr, perTx, quota string, interval uint64) (account.Limits, error) {
	var limits account.Limits
	var err error
	if limits.SpendingCap, err = allowance.ParseAmount(capStr); err != nil {
		return limits, fmt.Errorf("--cap: %w", err)
	}
	if limits.PerTxLimit, err = allowance.ParseAmount(perTx); err != nil {
		return limits, fmt.Errorf("--per-tx: %w", err)
	}
	if limits.Quota, err = allowance.ParseAmount(quota); err != nil {
		return limits, fmt.Errorf("--quota: %w", err)
	}
	limits.QuotaResetInterval = interval
	return limits, nil
}
