package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/escrow"
	"github.com/xraph/allowance/store/memory"
)

// coinDecimals is the precision of the simulated coin.
const coinDecimals = 18

var (
	ownerAddr    = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	delegateAddr = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	escrowAddr   = common.HexToAddress("0x00000000000000000000000000000000000e5c20")
)

var (
	stepFmt = color.New(color.FgBlue, color.Bold).SprintFunc()
	okFmt   = color.New(color.FgGreen).SprintFunc()
	denyFmt = color.New(color.FgYellow).SprintFunc()
	failFmt = color.New(color.FgRed, color.Bold).SprintFunc()
	dimFmt  = color.New(color.Faint).SprintFunc()
)

// clock is a settable time source. Unless advanced manually it follows the
// wall clock.
type clock struct {
	mu     sync.Mutex
	offset time.Duration
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Add(c.offset)
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// simulation is an engine wired to a memory store and one escrow.
type simulation struct {
	engine   *allowance.Engine
	escrow   *escrow.Escrow
	clock    *clock
	account  *account.Account
	decimals uint8
}

func newSimulation(ctx context.Context, limits account.Limits, decimals uint8) (*simulation, error) {
	escrows := escrow.NewRegistry()
	esc, err := escrows.Deploy(escrowAddr, ownerAddr)
	if err != nil {
		return nil, err
	}

	clk := &clock{}
	engine := allowance.New(memory.New(), escrows,
		allowance.WithLogger(newLogger()),
		allowance.WithClock(clk.Now),
	)
	if err := engine.Start(ctx); err != nil {
		return nil, err
	}

	a, err := engine.Open(ctx, ownerAddr, delegateAddr, limits)
	if err != nil {
		_ = engine.Stop()
		return nil, err
	}

	return &simulation{engine: engine, escrow: esc, clock: clk, account: a, decimals: decimals}, nil
}

func (s *simulation) close() error { return s.engine.Stop() }

// attempt is the outcome of one payment.
type attempt struct {
	N          int    `json:"n"          yaml:"n"`
	Amount     string `json:"amount"     yaml:"amount"`
	Outcome    string `json:"outcome"    yaml:"outcome"`
	Reason     string `json:"reason,omitempty" yaml:"reason,omitempty"`
	TotalSpent string `json:"total_spent" yaml:"total_spent"`
	QuotaSpent string `json:"quota_spent" yaml:"quota_spent"`
}

func (s *simulation) pay(ctx context.Context, n int, amount allowance.Amount) (attempt, error) {
	err := s.engine.Pay(ctx, s.account.ID, delegateAddr, escrowAddr, amount)

	at := attempt{N: n, Amount: amount.FormatUnits(s.decimals), Outcome: "settled"}
	switch {
	case err == nil:
	case allowance.IsGuardError(err), errors.Is(err, allowance.ErrNotDelegate), errors.Is(err, allowance.ErrOverflow):
		at.Outcome = "denied"
		at.Reason = account.Reason(err)
	case errors.Is(err, allowance.ErrTransferFailed):
		at.Outcome = "failed"
		at.Reason = account.ReasonTransferFailed
	default:
		return at, err
	}

	a, err := s.engine.Account(ctx, s.account.ID)
	if err != nil {
		return at, err
	}
	at.TotalSpent = a.TotalSpent.FormatUnits(s.decimals)
	at.QuotaSpent = a.QuotaSpent.FormatUnits(s.decimals)
	return at, nil
}

// report is the final ledger state.
type report struct {
	Account            string    `json:"account"              yaml:"account"`
	Owner              string    `json:"owner"                yaml:"owner"`
	Delegate           string    `json:"delegate"             yaml:"delegate"`
	SpendingCap        string    `json:"spending_cap"         yaml:"spending_cap"`
	TotalSpent         string    `json:"total_spent"          yaml:"total_spent"`
	PerTxLimit         string    `json:"per_tx_limit"         yaml:"per_tx_limit"`
	Quota              string    `json:"quota"                yaml:"quota"`
	QuotaSpent         string    `json:"quota_spent"          yaml:"quota_spent"`
	QuotaResetInterval uint64    `json:"quota_reset_interval" yaml:"quota_reset_interval"`
	LastReset          uint64    `json:"last_reset"           yaml:"last_reset"`
	Spendable          string    `json:"spendable"            yaml:"spendable"`
	EscrowBalance      string    `json:"escrow_balance"       yaml:"escrow_balance"`
	Attempts           []attempt `json:"attempts"             yaml:"attempts"`
}

func (s *simulation) report(ctx context.Context, attempts []attempt) (*report, error) {
	a, err := s.engine.Account(ctx, s.account.ID)
	if err != nil {
		return nil, err
	}
	hr, err := s.engine.Remaining(ctx, s.account.ID)
	if err != nil {
		return nil, err
	}

	return &report{
		Account:            a.ID.String(),
		Owner:              a.Owner.Hex(),
		Delegate:           a.Delegate.Hex(),
		SpendingCap:        a.SpendingCap.FormatUnits(s.decimals),
		TotalSpent:         a.TotalSpent.FormatUnits(s.decimals),
		PerTxLimit:         a.PerTxLimit.FormatUnits(s.decimals),
		Quota:              a.Quota.FormatUnits(s.decimals),
		QuotaSpent:         a.QuotaSpent.FormatUnits(s.decimals),
		QuotaResetInterval: a.QuotaResetInterval,
		LastReset:          a.LastReset,
		Spendable:          hr.Spendable.FormatUnits(s.decimals),
		EscrowBalance:      s.escrow.Balance().FormatUnits(s.decimals),
		Attempts:           attempts,
	}, nil
}

func printAttempt(w io.Writer, at attempt) {
	switch at.Outcome {
	case "settled":
		fmt.Fprintf(w, "%s pay %s: %s %s\n", stepFmt(fmt.Sprintf("[%d]", at.N)), at.Amount, okFmt("settled"),
			dimFmt(fmt.Sprintf("(spent %s, quota %s)", at.TotalSpent, at.QuotaSpent)))
	case "denied":
		fmt.Fprintf(w, "%s pay %s: %s %s\n", stepFmt(fmt.Sprintf("[%d]", at.N)), at.Amount, denyFmt("denied"), at.Reason)
	default:
		fmt.Fprintf(w, "%s pay %s: %s %s\n", stepFmt(fmt.Sprintf("[%d]", at.N)), at.Amount, failFmt("failed"), at.Reason)
	}
}

func printReport(w io.Writer, r *report) error {
	if outputFormat != "table" && outputFormat != "" {
		return formatOutput(w, r)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tVALUE")
	fmt.Fprintf(tw, "account\t%s\n", r.Account)
	fmt.Fprintf(tw, "owner\t%s\n", r.Owner)
	fmt.Fprintf(tw, "delegate\t%s\n", r.Delegate)
	fmt.Fprintf(tw, "spending_cap\t%s\n", r.SpendingCap)
	fmt.Fprintf(tw, "total_spent\t%s\n", r.TotalSpent)
	fmt.Fprintf(tw, "per_tx_limit\t%s\n", r.PerTxLimit)
	fmt.Fprintf(tw, "quota\t%s\n", r.Quota)
	fmt.Fprintf(tw, "quota_spent\t%s\n", r.QuotaSpent)
	fmt.Fprintf(tw, "quota_reset_interval\t%ds\n", r.QuotaResetInterval)
	fmt.Fprintf(tw, "last_reset\t%d\n", r.LastReset)
	fmt.Fprintf(tw, "spendable\t%s\n", r.Spendable)
	fmt.Fprintf(tw, "escrow_balance\t%s\n", r.EscrowBalance)
	return tw.Flush()
}
