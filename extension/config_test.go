package extension

import (
	"testing"
	"time"
)

func TestMergeWithDefaults(t *testing.T) {
	got := mergeWithDefaults(Config{ReceiptBatchSize: 7})
	if got.ReceiptBatchSize != 7 {
		t.Errorf("ReceiptBatchSize = %d, want 7", got.ReceiptBatchSize)
	}
	if got.ReceiptFlushInterval != 5*time.Second {
		t.Errorf("ReceiptFlushInterval = %v", got.ReceiptFlushInterval)
	}
	if got.TransferTimeout != 30*time.Second {
		t.Errorf("TransferTimeout = %v", got.TransferTimeout)
	}
}

func TestMergeConfigurations(t *testing.T) {
	tests := []struct {
		name         string
		yaml         Config
		programmatic Config
		check        func(t *testing.T, got Config)
	}{
		{
			name:         "yaml wins",
			yaml:         Config{ReceiptBatchSize: 50},
			programmatic: Config{ReceiptBatchSize: 10},
			check: func(t *testing.T, got Config) {
				if got.ReceiptBatchSize != 50 {
					t.Errorf("ReceiptBatchSize = %d, want 50", got.ReceiptBatchSize)
				}
			},
		},
		{
			name:         "programmatic fills gaps",
			yaml:         Config{},
			programmatic: Config{TransferTimeout: time.Second},
			check: func(t *testing.T, got Config) {
				if got.TransferTimeout != time.Second {
					t.Errorf("TransferTimeout = %v, want 1s", got.TransferTimeout)
				}
			},
		},
		{
			name:         "disable migrate sticks",
			yaml:         Config{},
			programmatic: Config{DisableMigrate: true},
			check: func(t *testing.T, got Config) {
				if !got.DisableMigrate {
					t.Error("DisableMigrate lost")
				}
			},
		},
		{
			name:         "gateway merged field by field",
			yaml:         Config{Gateway: GatewayConfig{RPCURL: "http://node:8545"}},
			programmatic: Config{Gateway: GatewayConfig{RPCURL: "http://other", PrivateKey: "0xabc", ChainID: 5}},
			check: func(t *testing.T, got Config) {
				gw := got.Gateway
				if gw.RPCURL != "http://node:8545" || gw.PrivateKey != "0xabc" || gw.ChainID != 5 {
					t.Errorf("gateway = %+v", gw)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mergeConfigurations(tt.yaml, tt.programmatic))
		})
	}
}

func TestBuildEngineOpts(t *testing.T) {
	e := New(WithReceiptBatchSize(3), WithDisableMigrate())
	e.config = mergeWithDefaults(e.config)
	if got := len(e.buildEngineOpts()); got != 3 {
		t.Errorf("got %d options, want 3", got)
	}
}
