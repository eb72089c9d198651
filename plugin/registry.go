package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/receipt"
	"github.com/xraph/allowance/types"
)

// DefaultHookTimeout bounds a single hook invocation.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit            []OnInit
	onShutdown        []OnShutdown
	onAccountOpened   []OnAccountOpened
	onDelegateChanged []OnDelegateChanged
	onQuotaReset      []OnQuotaReset
	onPaymentSettled  []OnPaymentSettled
	onPaymentDenied   []OnPaymentDenied
	onTransferFailed  []OnTransferFailed
	onReceiptsFlushed []OnReceiptsFlushed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout overrides DefaultHookTimeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccountOpened); ok {
		r.onAccountOpened = append(r.onAccountOpened, v)
	}
	if v, ok := p.(OnDelegateChanged); ok {
		r.onDelegateChanged = append(r.onDelegateChanged, v)
	}
	if v, ok := p.(OnQuotaReset); ok {
		r.onQuotaReset = append(r.onQuotaReset, v)
	}
	if v, ok := p.(OnPaymentSettled); ok {
		r.onPaymentSettled = append(r.onPaymentSettled, v)
	}
	if v, ok := p.(OnPaymentDenied); ok {
		r.onPaymentDenied = append(r.onPaymentDenied, v)
	}
	if v, ok := p.(OnTransferFailed); ok {
		r.onTransferFailed = append(r.onTransferFailed, v)
	}
	if v, ok := p.(OnReceiptsFlushed); ok {
		r.onReceiptsFlushed = append(r.onReceiptsFlushed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", Hooks(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnAccountOpened", reflect.TypeFor[OnAccountOpened]()},
	{"OnDelegateChanged", reflect.TypeFor[OnDelegateChanged]()},
	{"OnQuotaReset", reflect.TypeFor[OnQuotaReset]()},
	{"OnPaymentSettled", reflect.TypeFor[OnPaymentSettled]()},
	{"OnPaymentDenied", reflect.TypeFor[OnPaymentDenied]()},
	{"OnTransferFailed", reflect.TypeFor[OnTransferFailed]()},
	{"OnReceiptsFlushed", reflect.TypeFor[OnReceiptsFlushed]()},
}

// Hooks lists the hook interfaces p implements.
func Hooks(p Plugin) []string {
	var out []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			out = append(out, h.name)
		}
	}
	return out
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission
// ──────────────────────────────────────────────────

// emit calls fn for each hook under the registry timeout. Failures are
// logged and swallowed.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, fn func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[T any](r *Registry, hooks *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *hooks
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

func (r *Registry) EmitAccountOpened(ctx context.Context, a *account.Account) {
	emit(ctx, r, "OnAccountOpened", snapshot(r, &r.onAccountOpened), func(p OnAccountOpened) error {
		return p.OnAccountOpened(ctx, a)
	})
}

func (r *Registry) EmitDelegateChanged(ctx context.Context, a *account.Account, previous common.Address) {
	emit(ctx, r, "OnDelegateChanged", snapshot(r, &r.onDelegateChanged), func(p OnDelegateChanged) error {
		return p.OnDelegateChanged(ctx, a, previous)
	})
}

func (r *Registry) EmitQuotaReset(ctx context.Context, a *account.Account, previousSpent types.Amount) {
	emit(ctx, r, "OnQuotaReset", snapshot(r, &r.onQuotaReset), func(p OnQuotaReset) error {
		return p.OnQuotaReset(ctx, a, previousSpent)
	})
}

func (r *Registry) EmitPaymentSettled(ctx context.Context, rc *receipt.Receipt) {
	emit(ctx, r, "OnPaymentSettled", snapshot(r, &r.onPaymentSettled), func(p OnPaymentSettled) error {
		return p.OnPaymentSettled(ctx, rc)
	})
}

func (r *Registry) EmitPaymentDenied(ctx context.Context, rc *receipt.Receipt, cause error) {
	emit(ctx, r, "OnPaymentDenied", snapshot(r, &r.onPaymentDenied), func(p OnPaymentDenied) error {
		return p.OnPaymentDenied(ctx, rc, cause)
	})
}

func (r *Registry) EmitTransferFailed(ctx context.Context, rc *receipt.Receipt, cause error) {
	emit(ctx, r, "OnTransferFailed", snapshot(r, &r.onTransferFailed), func(p OnTransferFailed) error {
		return p.OnTransferFailed(ctx, rc, cause)
	})
}

func (r *Registry) EmitReceiptsFlushed(ctx context.Context, count int, elapsed time.Duration) {
	emit(ctx, r, "OnReceiptsFlushed", snapshot(r, &r.onReceiptsFlushed), func(p OnReceiptsFlushed) error {
		return p.OnReceiptsFlushed(ctx, count, elapsed)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the payment pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
