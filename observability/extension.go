// Package observability provides a metrics plugin for the allowance engine
// that records payment outcomes through a MetricFactory.
package observability

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/plugin"
	"github.com/xraph/allowance/receipt"
	"github.com/xraph/allowance/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin            = (*MetricsExtension)(nil)
	_ plugin.OnAccountOpened   = (*MetricsExtension)(nil)
	_ plugin.OnDelegateChanged = (*MetricsExtension)(nil)
	_ plugin.OnQuotaReset      = (*MetricsExtension)(nil)
	_ plugin.OnPaymentSettled  = (*MetricsExtension)(nil)
	_ plugin.OnPaymentDenied   = (*MetricsExtension)(nil)
	_ plugin.OnTransferFailed  = (*MetricsExtension)(nil)
	_ plugin.OnReceiptsFlushed = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records engine-wide payment metrics.
type MetricsExtension struct {
	AccountsOpened   Counter
	DelegatesChanged Counter
	QuotaResets      Counter

	PaymentsSettled Counter
	PaymentAmount   Histogram
	TransferFailed  Counter

	DeniedNotDelegate Counter
	DeniedSpendingCap Counter
	DeniedPerTx       Counter
	DeniedQuota       Counter
	DeniedOther       Counter

	ReceiptBatchSize    Histogram
	ReceiptFlushLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		AccountsOpened:   factory.Counter("allowance.account.opened"),
		DelegatesChanged: factory.Counter("allowance.account.delegate_changed"),
		QuotaResets:      factory.Counter("allowance.quota.resets"),

		PaymentsSettled: factory.Counter("allowance.payment.settled"),
		PaymentAmount:   factory.Histogram("allowance.payment.amount"),
		TransferFailed:  factory.Counter("allowance.transfer.failed"),

		DeniedNotDelegate: factory.Counter("allowance.payment.denied.not_delegate"),
		DeniedSpendingCap: factory.Counter("allowance.payment.denied.spending_cap"),
		DeniedPerTx:       factory.Counter("allowance.payment.denied.per_tx_limit"),
		DeniedQuota:       factory.Counter("allowance.payment.denied.quota"),
		DeniedOther:       factory.Counter("allowance.payment.denied.other"),

		ReceiptBatchSize:    factory.Histogram("allowance.receipt.batch.size"),
		ReceiptFlushLatency: factory.Histogram("allowance.receipt.flush.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnAccountOpened implements plugin.OnAccountOpened.
func (m *MetricsExtension) OnAccountOpened(context.Context, *account.Account) error {
	m.AccountsOpened.Inc()
	return nil
}

// OnDelegateChanged implements plugin.OnDelegateChanged.
func (m *MetricsExtension) OnDelegateChanged(context.Context, *account.Account, common.Address) error {
	m.DelegatesChanged.Inc()
	return nil
}

// OnQuotaReset implements plugin.OnQuotaReset.
func (m *MetricsExtension) OnQuotaReset(context.Context, *account.Account, types.Amount) error {
	m.QuotaResets.Inc()
	return nil
}

// OnPaymentSettled implements plugin.OnPaymentSettled.
func (m *MetricsExtension) OnPaymentSettled(_ context.Context, r *receipt.Receipt) error {
	m.PaymentsSettled.Inc()
	amount, _ := new(big.Float).SetInt(r.Amount.Big()).Float64()
	m.PaymentAmount.Observe(amount)
	return nil
}

// OnPaymentDenied implements plugin.OnPaymentDenied.
func (m *MetricsExtension) OnPaymentDenied(_ context.Context, r *receipt.Receipt, _ error) error {
	switch r.Reason {
	case account.ReasonNotDelegate:
		m.DeniedNotDelegate.Inc()
	case account.ReasonExceedsSpendingCap:
		m.DeniedSpendingCap.Inc()
	case account.ReasonExceedsPerTxLimit:
		m.DeniedPerTx.Inc()
	case account.ReasonExceedsQuota:
		m.DeniedQuota.Inc()
	default:
		m.DeniedOther.Inc()
	}
	return nil
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (m *MetricsExtension) OnTransferFailed(context.Context, *receipt.Receipt, error) error {
	m.TransferFailed.Inc()
	return nil
}

// OnReceiptsFlushed implements plugin.OnReceiptsFlushed.
func (m *MetricsExtension) OnReceiptsFlushed(_ context.Context, count int, elapsed time.Duration) error {
	m.ReceiptBatchSize.Observe(float64(count))
	m.ReceiptFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
