package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/allowance/plugin"
	"github.com/xraph/allowance/receipt"
)

type settledPlugin struct {
	name  string
	calls atomic.Int32
	err   error
}

func (p *settledPlugin) Name() string { return p.name }

func (p *settledPlugin) OnPaymentSettled(context.Context, *receipt.Receipt) error {
	p.calls.Add(1)
	return p.err
}

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnShutdown(ctx context.Context) error {
	time.Sleep(time.Second)
	return nil
}

func quietRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterDuplicate(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(&settledPlugin{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&settledPlugin{name: "a"}); err == nil {
		t.Error("expected duplicate registration error")
	}
	if r.Count() != 1 || r.Get("a") == nil || r.Get("b") != nil {
		t.Errorf("registry state: count=%d", r.Count())
	}
}

func TestEmitDispatchesOnlyToImplementers(t *testing.T) {
	r := quietRegistry()
	a := &settledPlugin{name: "a"}
	b := &settledPlugin{name: "b", err: errors.New("ignored")}
	for _, p := range []plugin.Plugin{a, b, slowPlugin{}} {
		if err := r.Register(p); err != nil {
			t.Fatal(err)
		}
	}

	r.EmitPaymentSettled(context.Background(), &receipt.Receipt{})
	r.EmitPaymentDenied(context.Background(), &receipt.Receipt{}, errors.New("denied"))

	if a.calls.Load() != 1 || b.calls.Load() != 1 {
		t.Errorf("calls: a=%d b=%d", a.calls.Load(), b.calls.Load())
	}
}

func TestEmitTimeout(t *testing.T) {
	r := quietRegistry().WithTimeout(10 * time.Millisecond)
	if err := r.Register(slowPlugin{}); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	r.EmitShutdown(context.Background())
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("EmitShutdown blocked for %s", elapsed)
	}
}

func TestHooks(t *testing.T) {
	got := plugin.Hooks(&settledPlugin{})
	if !slices.Equal(got, []string{"OnPaymentSettled"}) {
		t.Errorf("Hooks = %v", got)
	}
}
