// Package escrow is an in-process intermediary that collects payments. It
// accepts value through a single entry point and has an admin role that is
// unrelated to any account's owner or delegate.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/transfer"
	"github.com/xraph/allowance/types"
)

var (
	ErrNoReceiver      = errors.New("escrow: no receiver at address")
	ErrUnknownSelector = errors.New("escrow: unknown selector")
	ErrNotAdmin        = errors.New("escrow: caller is not admin")
	ErrExists          = errors.New("escrow: receiver already registered")
)

// Escrow collects value sent to Address.
type Escrow struct {
	Address common.Address

	mu       sync.Mutex
	admin    common.Address
	balance  types.Amount
	payments int
}

// New deploys an escrow at addr with caller as admin.
func New(addr, caller common.Address) *Escrow {
	return &Escrow{Address: addr, admin: caller}
}

// ReceivePayment is the payable entry point. It accepts any value sent with
// transfer.CoinSelector.
func (e *Escrow) ReceivePayment(sel transfer.Selector, value types.Amount) error {
	if sel != transfer.CoinSelector {
		return fmt.Errorf("%w %s", ErrUnknownSelector, sel)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	balance, err := e.balance.Add(value)
	if err != nil {
		return err
	}
	e.balance = balance
	e.payments++
	return nil
}

func (e *Escrow) Admin() common.Address { return e.admin }

func (e *Escrow) Balance() types.Amount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

// Payments is the number of payments received.
func (e *Escrow) Payments() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.payments
}

// Sweep empties the escrow and returns what it held. Admin only.
func (e *Escrow) Sweep(caller common.Address) (types.Amount, error) {
	if caller != e.admin {
		return types.Amount{}, ErrNotAdmin
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.balance
	e.balance = types.Zero()
	return out, nil
}

// Registry routes transfers to escrows by address.
type Registry struct {
	mu       sync.RWMutex
	receiver map[common.Address]*Escrow
}

var _ transfer.Gateway = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{receiver: make(map[common.Address]*Escrow)}
}

// Deploy creates and registers an escrow at addr.
func (r *Registry) Deploy(addr, admin common.Address) (*Escrow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.receiver[addr]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, addr.Hex())
	}
	e := New(addr, admin)
	r.receiver[addr] = e
	return e, nil
}

func (r *Registry) Get(addr common.Address) (*Escrow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.receiver[addr]
	return e, ok
}

// Transfer implements transfer.Gateway.
func (r *Registry) Transfer(ctx context.Context, to common.Address, value types.Amount, sel transfer.Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e, ok := r.Get(to)
	if !ok {
		return fmt.Errorf("%w %s", ErrNoReceiver, to.Hex())
	}
	return e.ReceivePayment(sel, value)
}
