package allowance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/plugin"
	"github.com/xraph/allowance/receipt"
	"github.com/xraph/allowance/store"
	"github.com/xraph/allowance/transfer"
	"github.com/xraph/allowance/types"
)

// Engine authorizes and executes delegated payments against persisted
// accounts.
type Engine struct {
	store   store.Store
	gateway transfer.Gateway
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// Background workers
	receiptBuffer chan *receipt.Receipt
	flushReq      chan chan struct{}
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup

	// Configuration
	receiptBatchSize     int
	receiptFlushInterval time.Duration
	transferTimeout      time.Duration
	autoMigrate          bool
}

// New creates an Engine that persists to s and moves value through gw.
func New(s store.Store, gw transfer.Gateway, opts ...Option) *Engine {
	e := &Engine{
		store:                s,
		gateway:              gw,
		plugins:              plugin.NewRegistry(),
		logger:               slog.Default(),
		clock:                time.Now,
		locks:                make(map[string]*sync.Mutex),
		receiptBuffer:        make(chan *receipt.Receipt, 10000),
		flushReq:             make(chan chan struct{}),
		stopChan:             make(chan struct{}),
		receiptBatchSize:     100,
		receiptFlushInterval: 5 * time.Second,
		transferTimeout:      30 * time.Second,
		autoMigrate:          true,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock replaces time.Now. Quota windows are measured against it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.clock = now
	}
}

// WithReceiptConfig configures receipt batching. Non-positive values keep
// the defaults.
func WithReceiptConfig(batchSize int, flushInterval time.Duration) Option {
	return func(e *Engine) {
		if batchSize > 0 {
			e.receiptBatchSize = batchSize
		}
		if flushInterval > 0 {
			e.receiptFlushInterval = flushInterval
		}
	}
}

// WithTransferTimeout bounds a single gateway call.
func WithTransferTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.transferTimeout = d
	}
}

// WithAutoMigrate controls whether Start migrates the store (default true).
func WithAutoMigrate(enabled bool) Option {
	return func(e *Engine) {
		e.autoMigrate = enabled
	}
}

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if e.autoMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.wg.Add(1)
	go e.receiptFlushWorker(context.WithoutCancel(ctx))

	e.logger.Info("allowance engine started",
		"batch_size", e.receiptBatchSize,
		"flush_interval", e.receiptFlushInterval,
		"transfer_timeout", e.transferTimeout,
	)

	return nil
}

// Stop flushes pending receipts and shuts the engine down.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// Open creates and persists a new account owned by caller. A zero delegate
// makes the caller its own delegate. Limits are not validated.
func (e *Engine) Open(ctx context.Context, caller, delegate common.Address, limits account.Limits) (*account.Account, error) {
	a := account.New(caller, delegate, limits, e.clock())

	if err := e.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}

	e.plugins.EmitAccountOpened(ctx, a)
	e.logger.Debug("account opened",
		"account_id", a.ID.String(),
		"owner", a.Owner.Hex(),
		"delegate", a.Delegate.Hex(),
	)

	return a, nil
}

// SetDelegate replaces the account's delegate. Only the owner may do so.
func (e *Engine) SetDelegate(ctx context.Context, accountID id.AccountID, caller, next common.Address) error {
	unlock := e.lock(accountID)
	defer unlock()

	a, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}

	previous := a.Delegate
	if err := a.SetDelegate(caller, next); err != nil {
		return err
	}
	a.Touch(e.clock())

	if err := e.store.UpdateAccount(ctx, a); err != nil {
		return err
	}

	e.plugins.EmitDelegateChanged(ctx, a, previous)
	return nil
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

// Pay sends amount from the account to recipient on behalf of caller.
//
// Authentication, the quota window and the guards are evaluated in that
// order. A quota window that elapsed is restarted and persisted even when a
// guard then rejects the payment. On success the counters are reserved
// before the gateway is called; if the gateway fails the reservation is
// released and the returned error wraps ErrTransferFailed.
func (e *Engine) Pay(ctx context.Context, accountID id.AccountID, caller, recipient common.Address, amount types.Amount) error {
	unlock := e.lock(accountID)
	defer unlock()

	a, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}

	now := e.clock()
	rc := &receipt.Receipt{
		ID:        id.NewReceiptID(),
		AccountID: accountID,
		Caller:    caller,
		Recipient: recipient,
		Amount:    amount,
		Timestamp: now.UTC(),
	}

	if err := a.Authorize(caller); err != nil {
		return e.deny(ctx, a, rc, err)
	}

	previousSpent := a.QuotaSpent
	rc.QuotaReset = a.RollWindow(account.NowMillis(now))
	if rc.QuotaReset {
		a.Touch(now)
	}

	reject := func(cause error) error {
		if rc.QuotaReset {
			if err := e.store.UpdateAccount(ctx, a); err != nil {
				return fmt.Errorf("allowance: persist quota reset: %w", err)
			}
			e.plugins.EmitQuotaReset(ctx, a, previousSpent)
		}
		return e.deny(ctx, a, rc, cause)
	}

	if err := a.Check(amount); err != nil {
		return reject(err)
	}

	// Reserve: persist the committed counters before value moves.
	reserved := a.Clone()
	if err := reserved.Commit(amount); err != nil {
		return reject(err)
	}
	reserved.Touch(now)
	if err := e.store.UpdateAccount(ctx, reserved); err != nil {
		// The stored version moved on, so the window roll is not persisted
		// either. The attempt is still recorded.
		return e.deny(ctx, a, rc, err)
	}
	if rc.QuotaReset {
		e.plugins.EmitQuotaReset(ctx, reserved, previousSpent)
	}

	tctx, cancel := context.WithTimeout(ctx, e.transferTimeout)
	terr := e.gateway.Transfer(tctx, recipient, amount, transfer.CoinSelector)
	cancel()

	if terr != nil {
		return e.release(ctx, a, reserved.Version, rc, terr)
	}

	rc.Status = receipt.StatusSettled
	rc.TotalSpent = reserved.TotalSpent
	rc.QuotaSpent = reserved.QuotaSpent
	e.record(rc)
	e.plugins.EmitPaymentSettled(ctx, rc)

	return nil
}

// release restores the pre-reservation counters after a failed transfer.
// The quota reset, if any, is kept.
func (e *Engine) release(ctx context.Context, before *account.Account, version int64, rc *receipt.Receipt, cause error) error {
	restored := before.Clone()
	restored.Version = version

	failure := fmt.Errorf("%w: %w", ErrTransferFailed, cause)

	if err := e.store.UpdateAccount(context.WithoutCancel(ctx), restored); err != nil {
		e.logger.Error("failed to release reservation",
			"account_id", before.ID.String(),
			"amount", rc.Amount.String(),
			"error", err,
		)
		return fmt.Errorf("%w (release: %w)", failure, err)
	}

	rc.Status = receipt.StatusFailed
	rc.Reason = account.ReasonTransferFailed
	rc.TotalSpent = restored.TotalSpent
	rc.QuotaSpent = restored.QuotaSpent
	e.record(rc)
	e.plugins.EmitTransferFailed(ctx, rc, cause)

	e.logger.Warn("transfer failed, reservation released",
		"account_id", before.ID.String(),
		"recipient", rc.Recipient.Hex(),
		"amount", rc.Amount.String(),
		"error", cause,
	)

	return failure
}

func (e *Engine) deny(ctx context.Context, a *account.Account, rc *receipt.Receipt, cause error) error {
	rc.Status = receipt.StatusDenied
	rc.Reason = account.Reason(cause)
	if rc.Reason == "" {
		rc.Reason = account.ReasonReserveFailed
	}
	rc.TotalSpent = a.TotalSpent
	rc.QuotaSpent = a.QuotaSpent
	e.record(rc)
	e.plugins.EmitPaymentDenied(ctx, rc, cause)

	e.logger.Debug("payment denied",
		"account_id", a.ID.String(),
		"caller", rc.Caller.Hex(),
		"amount", rc.Amount.String(),
		"reason", rc.Reason,
	)

	return cause
}

// lock serialises operations on one account within this engine.
func (e *Engine) lock(accountID id.AccountID) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[accountID.String()]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[accountID.String()] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// ──────────────────────────────────────────────────
// Receipts
// ──────────────────────────────────────────────────

// record queues a receipt without blocking. A full buffer drops it.
func (e *Engine) record(rc *receipt.Receipt) {
	select {
	case e.receiptBuffer <- rc:
	default:
		e.logger.Warn("dropping receipt",
			"receipt_id", rc.ID.String(),
			"error", ErrReceiptBufferFull,
		)
	}
}

// FlushReceipts writes every queued receipt to the store. It requires a
// started engine.
func (e *Engine) FlushReceipts(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case e.flushReq <- done:
	case <-e.stopChan:
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// receiptFlushWorker flushes receipts to the store.
func (e *Engine) receiptFlushWorker(ctx context.Context) {
	defer e.wg.Done()

	batch := make([]*receipt.Receipt, 0, e.receiptBatchSize)
	ticker := time.NewTicker(e.receiptFlushInterval)
	defer ticker.Stop()

	drain := func() {
		for {
			select {
			case rc := <-e.receiptBuffer:
				batch = append(batch, rc)
			default:
				return
			}
		}
	}
	flush := func() {
		if len(batch) > 0 {
			e.flushReceiptBatch(ctx, batch)
			batch = make([]*receipt.Receipt, 0, e.receiptBatchSize)
		}
	}

	for {
		select {
		case <-e.stopChan:
			// Final flush
			drain()
			flush()
			return

		case done := <-e.flushReq:
			drain()
			flush()
			close(done)

		case rc := <-e.receiptBuffer:
			batch = append(batch, rc)
			if len(batch) >= e.receiptBatchSize {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

func (e *Engine) flushReceiptBatch(ctx context.Context, batch []*receipt.Receipt) {
	start := time.Now()

	if err := e.store.IngestReceipts(ctx, batch); err != nil {
		e.logger.Error("failed to flush receipt batch",
			"error", err,
			"batch_size", len(batch),
		)
		return
	}

	elapsed := time.Since(start)
	e.plugins.EmitReceiptsFlushed(ctx, len(batch), elapsed)

	e.logger.Debug("flushed receipt batch",
		"batch_size", len(batch),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}
