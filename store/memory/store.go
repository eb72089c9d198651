// Package memory is an in-process Store. It copies entities on the way in
// and out, so callers never share state with the store.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/receipt"
	"github.com/xraph/allowance/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	accounts map[string]*account.Account
	receipts []receipt.Receipt
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*account.Account),
		receipts: make([]receipt.Receipt, 0),
	}
}

// Account Store implementation
func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID.String()]; exists {
		return allowance.ErrAlreadyExists
	}
	s.accounts[a.ID.String()] = a.Clone()
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[accountID.String()]; ok {
		return a.Clone(), nil
	}
	return nil, allowance.ErrAccountNotFound
}

func (s *Store) ListAccounts(_ context.Context, opts account.ListOpts) ([]*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*account.Account, 0)
	for _, a := range s.accounts {
		if opts.Owner != (common.Address{}) && a.Owner != opts.Owner {
			continue
		}
		if opts.Delegate != (common.Address{}) && a.Delegate != opts.Delegate {
			continue
		}
		result = append(result, a.Clone())
	}

	slices.SortFunc(result, func(x, y *account.Account) int {
		if c := x.CreatedAt.Compare(y.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.ID.String(), y.ID.String())
	})

	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.accounts[a.ID.String()]
	if !exists {
		return allowance.ErrAccountNotFound
	}
	if current.Version != a.Version {
		return allowance.ErrConflict
	}

	a.Version++
	s.accounts[a.ID.String()] = a.Clone()
	return nil
}

// Receipt Store implementation
func (s *Store) IngestReceipts(_ context.Context, receipts []*receipt.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range receipts {
		s.receipts = append(s.receipts, *r)
	}
	return nil
}

func (s *Store) QueryReceipts(_ context.Context, accountID id.AccountID, opts receipt.QueryOpts) ([]*receipt.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*receipt.Receipt, 0)
	for i := range s.receipts {
		r := s.receipts[i]
		if r.AccountID != accountID {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		if (!opts.Start.IsZero() && r.Timestamp.Before(opts.Start)) ||
			(!opts.End.IsZero() && !r.Timestamp.Before(opts.End)) {
			continue
		}
		result = append(result, &r)
	}

	slices.SortStableFunc(result, func(x, y *receipt.Receipt) int {
		return x.Timestamp.Compare(y.Timestamp)
	})

	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) PurgeReceipts(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	kept := make([]receipt.Receipt, 0, len(s.receipts))
	for _, r := range s.receipts {
		if r.Timestamp.Before(before) {
			count++
		} else {
			kept = append(kept, r)
		}
	}
	s.receipts = kept
	return count, nil
}

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

func page[T any](items []T, offset, limit int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
