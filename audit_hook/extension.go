// Package audithook bridges allowance events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import a
// concrete audit system. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/plugin"
	"github.com/xraph/allowance/receipt"
	"github.com/xraph/allowance/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Extension)(nil)
	_ plugin.OnAccountOpened   = (*Extension)(nil)
	_ plugin.OnDelegateChanged = (*Extension)(nil)
	_ plugin.OnQuotaReset      = (*Extension)(nil)
	_ plugin.OnPaymentSettled  = (*Extension)(nil)
	_ plugin.OnPaymentDenied   = (*Extension)(nil)
	_ plugin.OnTransferFailed  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension turns engine events into audit events.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountOpened implements plugin.OnAccountOpened.
func (e *Extension) OnAccountOpened(ctx context.Context, a *account.Account) error {
	return e.record(ctx, ActionAccountOpened, SeverityInfo, OutcomeSuccess,
		ResourceAccount, a.ID.String(), CategoryAccess, nil,
		"owner", a.Owner.Hex(),
		"delegate", a.Delegate.Hex(),
		"spending_cap", a.SpendingCap.String(),
		"per_tx_limit", a.PerTxLimit.String(),
		"quota", a.Quota.String(),
		"quota_reset_interval", a.QuotaResetInterval,
		"guards", a.Guards.String(),
	)
}

// OnDelegateChanged implements plugin.OnDelegateChanged.
func (e *Extension) OnDelegateChanged(ctx context.Context, a *account.Account, previous common.Address) error {
	return e.record(ctx, ActionDelegateChanged, SeverityWarning, OutcomeSuccess,
		ResourceAccount, a.ID.String(), CategoryAccess, nil,
		"previous", previous.Hex(),
		"delegate", a.Delegate.Hex(),
	)
}

// OnQuotaReset implements plugin.OnQuotaReset.
func (e *Extension) OnQuotaReset(ctx context.Context, a *account.Account, previousSpent types.Amount) error {
	return e.record(ctx, ActionQuotaReset, SeverityInfo, OutcomeSuccess,
		ResourceAccount, a.ID.String(), CategoryLimits, nil,
		"previous_quota_spent", previousSpent.String(),
		"last_reset", a.LastReset,
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentSettled implements plugin.OnPaymentSettled.
func (e *Extension) OnPaymentSettled(ctx context.Context, r *receipt.Receipt) error {
	return e.recordPayment(ctx, ActionPaymentSettled, SeverityInfo, OutcomeSuccess, r, nil)
}

// OnPaymentDenied implements plugin.OnPaymentDenied.
func (e *Extension) OnPaymentDenied(ctx context.Context, r *receipt.Receipt, cause error) error {
	severity := SeverityWarning
	if r.Reason == account.ReasonNotDelegate {
		severity = SeverityCritical
	}
	return e.recordPayment(ctx, ActionPaymentDenied, severity, OutcomeFailure, r, cause)
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (e *Extension) OnTransferFailed(ctx context.Context, r *receipt.Receipt, cause error) error {
	return e.recordPayment(ctx, ActionTransferFailed, SeverityCritical, OutcomeFailure, r, cause)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func (e *Extension) recordPayment(ctx context.Context, action, severity, outcome string, r *receipt.Receipt, err error) error {
	return e.record(ctx, action, severity, outcome,
		ResourcePayment, r.ID.String(), CategoryPayment, err,
		"account_id", r.AccountID.String(),
		"caller", r.Caller.Hex(),
		"recipient", r.Recipient.Hex(),
		"amount", r.Amount.String(),
		"reason", r.Reason,
		"quota_reset", r.QuotaReset,
		"total_spent", r.TotalSpent.String(),
		"quota_spent", r.QuotaSpent.String(),
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
