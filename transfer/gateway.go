// Package transfer defines the boundary through which the engine moves
// value to a receiver.
package transfer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/xraph/allowance/types"
)

// Selector names a receiver entry point.
type Selector [4]byte

// CoinSelector addresses the receiver's payable entry point ("coin").
var CoinSelector = Selector{0x63, 0x6F, 0x69, 0x6E}

func (s Selector) String() string { return hexutil.Encode(s[:]) }

// Bytes returns the selector as call data.
func (s Selector) Bytes() []byte { return append([]byte(nil), s[:]...) }

// Gateway moves value to a receiver entry point. A nil error means the
// value has arrived; any error means it has not.
type Gateway interface {
	Transfer(ctx context.Context, to common.Address, value types.Amount, sel Selector) error
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, to common.Address, value types.Amount, sel Selector) error

func (f GatewayFunc) Transfer(ctx context.Context, to common.Address, value types.Amount, sel Selector) error {
	return f(ctx, to, value, sel)
}
