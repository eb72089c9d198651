package extension

import (
	"time"

	"github.com/xraph/allowance"
	audithook "github.com/xraph/allowance/audit_hook"
	"github.com/xraph/allowance/observability"
	"github.com/xraph/allowance/plugin"
	"github.com/xraph/allowance/store"
	"github.com/xraph/allowance/transfer"
)

// Option configures the allowance Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine. Use store/postgres, store/sqlite
// or store/mongo over a grove.DB; the default is an in-memory store.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGateway sets the transfer gateway, overriding the gateway config.
func WithGateway(gw transfer.Gateway) Option {
	return func(e *Extension) {
		e.gateway = gw
	}
}

// WithEngineOption passes an allowance.Option through to the engine.
func WithEngineOption(opt allowance.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, allowance.WithPlugin(p))
	}
}

// WithAuditRecorder records account and payment events through r.
func WithAuditRecorder(r audithook.Recorder, opts ...audithook.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, allowance.WithPlugin(audithook.New(r, opts...)))
	}
}

// WithMetrics reports engine metrics through factory.
func WithMetrics(factory observability.MetricFactory) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, allowance.WithPlugin(observability.NewMetricsExtension(factory)))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithReceiptBatchSize sets the number of receipts to buffer before flushing.
func WithReceiptBatchSize(size int) Option {
	return func(e *Extension) { e.config.ReceiptBatchSize = size }
}

// WithReceiptFlushInterval sets how frequently the receipt buffer is flushed.
func WithReceiptFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ReceiptFlushInterval = d }
}

// WithTransferTimeout bounds a single gateway call.
func WithTransferTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.TransferTimeout = d }
}

// WithRPCGateway pays through an Ethereum node at rpcURL, signing with the
// hex-encoded privateKey.
func WithRPCGateway(rpcURL, privateKey string) Option {
	return func(e *Extension) {
		e.config.Gateway.RPCURL = rpcURL
		e.config.Gateway.PrivateKey = privateKey
	}
}
