// Package ethrpc sends payments as EIP-1559 transactions over an Ethereum
// JSON-RPC endpoint.
package ethrpc

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/xraph/allowance/transfer"
	"github.com/xraph/allowance/types"
)

// ErrReverted is returned when the payment transaction was mined but failed.
var ErrReverted = errors.New("ethrpc: transaction reverted")

// Backend is the subset of *ethclient.Client the gateway needs.
type Backend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
}

var _ Backend = (*ethclient.Client)(nil)

// Signer signs payment transactions. Key custody stays with the caller.
type Signer interface {
	Address() common.Address
	SignTx(tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error)
}

// KeySigner signs with an in-memory private key.
type KeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

func (s *KeySigner) Address() common.Address { return s.addr }

func (s *KeySigner) SignTx(tx *gethtypes.Transaction, chainID *big.Int) (*gethtypes.Transaction, error) {
	return gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(chainID), s.key)
}

// Gateway implements transfer.Gateway on top of an RPC backend.
type Gateway struct {
	// mu serialises nonce allocation through submission.
	mu       sync.Mutex
	backend  Backend
	signer   Signer
	chainID  *big.Int
	gasLimit uint64
	logger   *slog.Logger
}

var _ transfer.Gateway = (*Gateway)(nil)

type Option func(*Gateway)

// WithChainID skips the eth_chainId lookup.
func WithChainID(id *big.Int) Option {
	return func(g *Gateway) { g.chainID = id }
}

// WithGasLimit fixes the gas limit instead of estimating it.
func WithGasLimit(gas uint64) Option {
	return func(g *Gateway) { g.gasLimit = gas }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

func New(backend Backend, signer Signer, opts ...Option) *Gateway {
	g := &Gateway{
		backend: backend,
		signer:  signer,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dial connects to rawurl and returns a gateway backed by ethclient.
func Dial(ctx context.Context, rawurl string, signer Signer, opts ...Option) (*Gateway, error) {
	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("ethrpc: dial %s: %w", rawurl, err)
	}
	return New(client, signer, opts...), nil
}

// Transfer sends value to `to` with the selector as call data and blocks
// until the transaction is mined or ctx is done.
func (g *Gateway) Transfer(ctx context.Context, to common.Address, value types.Amount, sel transfer.Selector) error {
	signed, err := g.submit(ctx, to, value, sel)
	if err != nil {
		return err
	}

	g.logger.Debug("payment submitted",
		"tx", signed.Hash().Hex(),
		"to", to.Hex(),
		"value", value.String(),
		"selector", sel.String(),
	)

	receipt, err := bind.WaitMined(ctx, g.backend, signed)
	if err != nil {
		return fmt.Errorf("ethrpc: wait for %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s in block %s", ErrReverted, signed.Hash().Hex(), receipt.BlockNumber)
	}

	return nil
}

func (g *Gateway) submit(ctx context.Context, to common.Address, value types.Amount, sel transfer.Selector) (*gethtypes.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx, err := g.build(ctx, to, value, sel)
	if err != nil {
		return nil, err
	}

	signed, err := g.signer.SignTx(tx, g.chainID)
	if err != nil {
		return nil, fmt.Errorf("ethrpc: sign: %w", err)
	}

	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("ethrpc: send: %w", err)
	}
	return signed, nil
}

func (g *Gateway) build(ctx context.Context, to common.Address, value types.Amount, sel transfer.Selector) (*gethtypes.Transaction, error) {
	if g.chainID == nil {
		id, err := g.backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("ethrpc: chain id: %w", err)
		}
		g.chainID = id
	}

	from := g.signer.Address()
	nonce, err := g.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("ethrpc: nonce: %w", err)
	}

	tip, err := g.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("ethrpc: gas tip: %w", err)
	}

	head, err := g.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ethrpc: head: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	data := sel.Bytes()
	gas := g.gasLimit
	if gas == 0 {
		gas, err = g.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    &to,
			Value: value.Big(),
			Data:  data,
		})
		if err != nil {
			return nil, fmt.Errorf("ethrpc: estimate gas: %w", err)
		}
	}

	return gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   g.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value.Big(),
		Data:      data,
	}), nil
}
