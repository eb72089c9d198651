package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/allowance"
	"github.com/xraph/allowance/account"
	"github.com/xraph/allowance/id"
	"github.com/xraph/allowance/receipt"
	allowancestore "github.com/xraph/allowance/store"
)

// Collection name constants.
const (
	colAccounts = "allowance_accounts"
	colReceipts = "allowance_receipts"
)

// compile-time interface check
var _ allowancestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all allowance collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("allowance/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	m := toAccountModel(a)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return allowance.ErrAlreadyExists
		}
		return fmt.Errorf("allowance/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": accountID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, allowance.ErrAccountNotFound
		}
		return nil, fmt.Errorf("allowance/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	var models []accountModel

	filter := bson.M{}
	if opts.Owner != (common.Address{}) {
		filter["owner"] = opts.Owner.Hex()
	}
	if opts.Delegate != (common.Address{}) {
		filter["delegate"] = opts.Delegate.Hex()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("allowance/mongo: list accounts: %w", err)
	}

	result := make([]*account.Account, len(models))
	for i := range models {
		a, err := fromAccountModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

// UpdateAccount matches on both id and version, so a concurrent writer
// makes the update miss.
func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	next := a.Version + 1
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": a.ID.String(), "version": a.Version}).
		Set("delegate", a.Delegate.Hex()).
		Set("total_spent", a.TotalSpent.String()).
		Set("quota_spent", a.QuotaSpent.String()).
		Set("last_reset", strconv.FormatUint(a.LastReset, 10)).
		Set("version", next).
		Set("updated_at", a.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("allowance/mongo: update account: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetAccount(ctx, a.ID); err != nil {
			return err
		}
		return allowance.ErrConflict
	}
	a.Version = next
	return nil
}

// ==================== Receipt Store ====================

func (s *Store) IngestReceipts(ctx context.Context, receipts []*receipt.Receipt) error {
	for _, r := range receipts {
		m := toReceiptModel(r)
		_, err := s.mdb.NewInsert(m).Exec(ctx)
		if err != nil {
			// A retried flush may replay receipts already written.
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("allowance/mongo: ingest receipt: %w", err)
		}
	}
	return nil
}

func (s *Store) QueryReceipts(ctx context.Context, accountID id.AccountID, opts receipt.QueryOpts) ([]*receipt.Receipt, error) {
	var models []receiptModel

	filter := bson.M{"account_id": accountID.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	window := bson.M{}
	if !opts.Start.IsZero() {
		window["$gte"] = opts.Start
	}
	if !opts.End.IsZero() {
		window["$lt"] = opts.End
	}
	if len(window) > 0 {
		filter["timestamp"] = window
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("allowance/mongo: query receipts: %w", err)
	}

	result := make([]*receipt.Receipt, len(models))
	for i := range models {
		r, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) PurgeReceipts(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*receiptModel)(nil)).
		Filter(bson.M{"timestamp": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("allowance/mongo: purge receipts: %w", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Helpers ====================

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all allowance collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "created_at", Value: 1}},
				Options: options.Index().SetName("idx_allowance_accounts_owner"),
			},
			{Keys: bson.D{{Key: "delegate", Value: 1}}},
		},
		colReceipts: {
			{
				Keys:    bson.D{{Key: "account_id", Value: 1}, {Key: "timestamp", Value: 1}},
				Options: options.Index().SetName("idx_allowance_receipts_account_ts"),
			},
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
	}
}
