package extension

import "time"

// Config holds the allowance extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.allowance" or "allowance" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// ReceiptBatchSize is the number of receipts to buffer before flushing
	// to the store (default: 100).
	ReceiptBatchSize int `json:"receipt_batch_size" mapstructure:"receipt_batch_size" yaml:"receipt_batch_size"`

	// ReceiptFlushInterval is how frequently the receipt buffer is flushed
	// even if the batch size has not been reached (default: 5s).
	ReceiptFlushInterval time.Duration `json:"receipt_flush_interval" mapstructure:"receipt_flush_interval" yaml:"receipt_flush_interval"`

	// TransferTimeout bounds a single gateway call (default: 30s).
	TransferTimeout time.Duration `json:"transfer_timeout" mapstructure:"transfer_timeout" yaml:"transfer_timeout"`

	// Gateway selects how value moves. Empty uses the in-process escrow
	// registry.
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway" yaml:"gateway"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// GatewayConfig configures the Ethereum JSON-RPC gateway.
type GatewayConfig struct {
	// RPCURL is the node endpoint. When empty the escrow registry is used.
	RPCURL string `json:"rpc_url" mapstructure:"rpc_url" yaml:"rpc_url"`

	// PrivateKey is the hex-encoded key of the paying account.
	PrivateKey string `json:"private_key" mapstructure:"private_key" yaml:"private_key"`

	// ChainID overrides the chain id reported by the node.
	ChainID int64 `json:"chain_id" mapstructure:"chain_id" yaml:"chain_id"`

	// GasLimit overrides gas estimation.
	GasLimit uint64 `json:"gas_limit" mapstructure:"gas_limit" yaml:"gas_limit"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReceiptBatchSize:     100,
		ReceiptFlushInterval: 5 * time.Second,
		TransferTimeout:      30 * time.Second,
	}
}
