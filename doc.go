// Package allowance provides a delegated-spending authorization engine for Go
// applications.
//
// An owner opens an account that names a delegate and a set of spending
// limits. The delegate (or the owner) may then pay a recipient as long as
// every limit holds:
//
//   - Spending cap: lifetime ceiling on everything ever paid
//   - Per-transaction limit: ceiling on a single payment
//   - Quota: ceiling on what is paid within a resetting time window
//
// Allowance is a library, not a service. Import it directly and pick a store.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/allowance"
//	    "github.com/xraph/allowance/escrow"
//	    "github.com/xraph/allowance/store/memory"
//	)
//
//	escrows := escrow.NewRegistry()
//	e := allowance.New(memory.New(), escrows)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
//	acct, err := e.Open(ctx, owner, delegate, allowance.Limits{
//	    SpendingCap:        allowance.NewAmount(1000),
//	    PerTxLimit:         allowance.NewAmount(400),
//	    Quota:              allowance.NewAmount(500),
//	    QuotaResetInterval: 60, // seconds
//	})
//
//	err = e.Pay(ctx, acct.ID, delegate, recipient, allowance.NewAmount(300))
//	switch {
//	case allowance.IsGuardError(err):
//	    // over a limit; nothing was spent
//	case errors.Is(err, allowance.ErrTransferFailed):
//	    // the gateway failed; the reservation was released
//	}
//
// # Payment sequence
//
// Pay authenticates the caller, restarts the quota window if it has
// elapsed, then checks the spending cap, the per-transaction limit and the
// quota, in that order. A window restart is persisted even when a guard
// then rejects the payment. An accepted payment reserves its counters in
// the store before the transfer gateway is called and releases them if the
// gateway fails, so counters never include value that did not move.
//
// Amounts are 256-bit unsigned integers. Additions that would overflow fail
// with ErrOverflow instead of wrapping.
//
// # Stores
//
// Accounts and receipts are persisted through store.Store. Memory,
// PostgreSQL, SQLite and MongoDB backends are provided. Account updates are
// compare-and-swap on a version column, so engines sharing a database detect
// each other's writes and return ErrConflict.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	rcpt_01h455vb4pex5vsknk084sn02q  // Receipt ID
package allowance
