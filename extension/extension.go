// Package extension provides the Forge extension adapter for allowance.
//
// It implements the forge.Extension interface to integrate the allowance
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.allowance" or
// "allowance" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/escrow"
	"github.com/xraph/allowance/store"
	"github.com/xraph/allowance/store/memory"
	"github.com/xraph/allowance/transfer"
	"github.com/xraph/allowance/transfer/ethrpc"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "allowance"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Delegated spending authorization engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the allowance engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *allowance.Engine
	store      store.Store
	gateway    transfer.Gateway
	escrows    *escrow.Registry
	engineOpts []allowance.Option
}

// New creates a new allowance Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *allowance.Engine { return e.engine }

// Escrows returns the in-process escrow registry, or nil when another
// gateway is in use.
func (e *Extension) Escrows() *escrow.Registry { return e.escrows }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	if e.gateway == nil {
		gw, err := e.buildGateway(context.Background())
		if err != nil {
			return err
		}
		e.gateway = gw
	}

	e.engine = allowance.New(e.store, e.gateway, e.buildEngineOpts()...)

	if e.escrows != nil {
		if err := vessel.Provide(fapp.Container(), func() (*escrow.Registry, error) {
			return e.escrows, nil
		}); err != nil {
			return err
		}
	}

	return vessel.Provide(fapp.Container(), func() (*allowance.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("allowance: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("allowance: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildGateway dials the configured node, or falls back to an in-process
// escrow registry.
func (e *Extension) buildGateway(ctx context.Context) (transfer.Gateway, error) {
	gc := e.config.Gateway
	if gc.RPCURL == "" {
		e.escrows = escrow.NewRegistry()
		return e.escrows, nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(gc.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("allowance: gateway private key: %w", err)
	}

	var opts []ethrpc.Option
	if gc.ChainID > 0 {
		opts = append(opts, ethrpc.WithChainID(big.NewInt(gc.ChainID)))
	}
	if gc.GasLimit > 0 {
		opts = append(opts, ethrpc.WithGasLimit(gc.GasLimit))
	}

	gw, err := ethrpc.Dial(ctx, gc.RPCURL, ethrpc.NewKeySigner(key), opts...)
	if err != nil {
		return nil, fmt.Errorf("allowance: dial %s: %w", gc.RPCURL, err)
	}

	e.Logger().Debug("allowance: using rpc gateway",
		forge.F("rpc_url", gc.RPCURL),
		forge.F("chain_id", gc.ChainID),
	)
	return gw, nil
}

// buildEngineOpts constructs allowance.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []allowance.Option {
	opts := make([]allowance.Option, 0, len(e.engineOpts)+3)

	opts = append(opts,
		allowance.WithReceiptConfig(e.config.ReceiptBatchSize, e.config.ReceiptFlushInterval),
		allowance.WithTransferTimeout(e.config.TransferTimeout),
		allowance.WithAutoMigrate(!e.config.DisableMigrate),
	)

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("allowance: configuration is required but not found in config files; " +
				"ensure 'extensions.allowance' or 'allowance' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("allowance: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("receipt_batch_size", e.config.ReceiptBatchSize),
		forge.F("receipt_flush_interval", e.config.ReceiptFlushInterval),
		forge.F("transfer_timeout", e.config.TransferTimeout),
		forge.F("rpc_gateway", e.config.Gateway.RPCURL != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.allowance", "allowance"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("allowance: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("allowance: loaded config from file",
			forge.F("key", key),
		)
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ReceiptBatchSize == 0 {
		cfg.ReceiptBatchSize = defaults.ReceiptBatchSize
	}
	if cfg.ReceiptFlushInterval == 0 {
		cfg.ReceiptFlushInterval = defaults.ReceiptFlushInterval
	}
	if cfg.TransferTimeout == 0 {
		cfg.TransferTimeout = defaults.TransferTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.ReceiptBatchSize == 0 {
		yamlConfig.ReceiptBatchSize = programmaticConfig.ReceiptBatchSize
	}
	if yamlConfig.ReceiptFlushInterval == 0 {
		yamlConfig.ReceiptFlushInterval = programmaticConfig.ReceiptFlushInterval
	}
	if yamlConfig.TransferTimeout == 0 {
		yamlConfig.TransferTimeout = programmaticConfig.TransferTimeout
	}

	gw := &yamlConfig.Gateway
	pgw := programmaticConfig.Gateway
	if gw.RPCURL == "" {
		gw.RPCURL = pgw.RPCURL
	}
	if gw.PrivateKey == "" {
		gw.PrivateKey = pgw.PrivateKey
	}
	if gw.ChainID == 0 {
		gw.ChainID = pgw.ChainID
	}
	if gw.GasLimit == 0 {
		gw.GasLimit = pgw.GasLimit
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
