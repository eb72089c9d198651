// Package plugin provides an extensible plugin system for the allowance
// engine. Plugins hook into account and payment events; they observe and
// never change the outcome of an operation.
package plugin

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/receipt"
	"github.com/xraph/allowance/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. e is the *allowance.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, e any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountOpened is called after a new account is persisted.
type OnAccountOpened interface {
	Plugin
	OnAccountOpened(ctx context.Context, a *account.Account) error
}

// OnDelegateChanged is called after the owner replaces the delegate.
type OnDelegateChanged interface {
	Plugin
	OnDelegateChanged(ctx context.Context, a *account.Account, previous common.Address) error
}

// OnQuotaReset is called when a payment attempt starts a new quota window.
// previousSpent is what the closed window had used.
type OnQuotaReset interface {
	Plugin
	OnQuotaReset(ctx context.Context, a *account.Account, previousSpent types.Amount) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentSettled is called after value reached the recipient.
type OnPaymentSettled interface {
	Plugin
	OnPaymentSettled(ctx context.Context, r *receipt.Receipt) error
}

// OnPaymentDenied is called when authentication or a guard rejected a payment.
type OnPaymentDenied interface {
	Plugin
	OnPaymentDenied(ctx context.Context, r *receipt.Receipt, cause error) error
}

// OnTransferFailed is called after the gateway failed and the reservation
// was released.
type OnTransferFailed interface {
	Plugin
	OnTransferFailed(ctx context.Context, r *receipt.Receipt, cause error) error
}

// OnReceiptsFlushed is called when a batch of receipts is written to the store.
type OnReceiptsFlushed interface {
	Plugin
	OnReceiptsFlushed(ctx context.Context, count int, elapsed time.Duration) error
}
