package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/account"
)

// scenarioStep pays amount after advancing the clock by wait.
type scenarioStep struct {
	wait   time.Duration
	amount uint64
}

// The reference walk-through: cap 1000, per-payment 400, quota 500 per 60s.
var (
	scenarioLimits = account.Limits{
		SpendingCap:        allowance.NewAmount(1000),
		PerTxLimit:         allowance.NewAmount(400),
		Quota:              allowance.NewAmount(500),
		QuotaResetInterval: 60,
	}
	scenarioSteps = []scenarioStep{
		{0, 300},
		{0, 300},
		{61 * time.Second, 300},
		{0, 500},
	}
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Replay the reference walk-through with a simulated clock",
	Long: `Replay four payments against cap 1000, per-payment limit 400 and quota 500
per 60 seconds. The third payment is made 61 simulated seconds later, after
the quota window has elapsed. Amounts are in base units.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := runScenario(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outputFormat == "table" || outputFormat == "" {
			for _, at := range r.Attempts {
				printAttempt(out, at)
			}
		}
		return printReport(out, r)
	},
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
}

func runScenario(ctx context.Context) (*report, error) {
	sim, err := newSimulation(ctx, scenarioLimits, 0)
	if err != nil {
		return nil, err
	}
	defer sim.close() //nolint:errcheck // memory store

	attempts := make([]attempt, 0, len(scenarioSteps))
	for i, step := range scenarioSteps {
		sim.clock.Advance(step.wait)
		at, err := sim.pay(ctx, i+1, allowance.NewAmount(step.amount))
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		attempts = append(attempts, at)
	}

	return sim.report(ctx, attempts)
}
