package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/repository/dao"
)

// AccountStore covers accounts, top-up requests and ledger entries.
type AccountStore interface {
	EnsureAccount(ctx context.Context, identity string) error
	GetAccount(ctx context.Context, identity string) (domain.Account, error)
	LockAccount(ctx context.Context, identity string) (domain.Account, error)
	UpdateBalance(ctx context.Context, identity string, balance int64) error
	AppendEntry(ctx context.Context, entry domain.LedgerEntry) error
	ListEntries(ctx context.Context, identity string) ([]domain.LedgerEntry, error)

	InsertTopUp(ctx context.Context, req domain.TopUpRequest) error
	LockTopUp(ctx context.Context, id string) (domain.TopUpRequest, error)
	UpdateTopUp(ctx context.Context, req domain.TopUpRequest) error
	ListTopUps(ctx context.Context, identity string) ([]domain.TopUpRequest, error)
	ListTopUpsByState(ctx context.Context, state domain.TopUpState) ([]domain.TopUpRequest, error)
}

type ListingStore interface {
	InsertListing(ctx context.Context, listing domain.Listing) error
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	LockListing(ctx context.Context, id string) (domain.Listing, error)
	UpdateListing(ctx context.Context, listing domain.Listing) error
	DeleteListing(ctx context.Context, id string) error
	// ListListings returns every listing when status is empty.
	ListListings(ctx context.Context, status domain.ListingStatus) ([]domain.Listing, error)
	ListUnbatched(ctx context.Context) ([]domain.Listing, error)
	LockUnbatched(ctx context.Context, limit int, exclude []string) ([]domain.Listing, error)
	SetListingsBatch(ctx context.Context, ids []string, batchID *string) error
}

type BatchStore interface {
	InsertBatch(ctx context.Context, batch domain.Batch) error
	GetBatch(ctx context.Context, id string) (domain.Batch, error)
	LockBatch(ctx context.Context, id string) (domain.Batch, error)
	UpdateBatch(ctx context.Context, batch domain.Batch) error
	DeleteBatch(ctx context.Context, id string) error
	LatestBatch(ctx context.Context) (domain.Batch, error)
	ListBatches(ctx context.Context) ([]domain.Batch, error)
}

type NegotiationStore interface {
	InsertNegotiation(ctx context.Context, n domain.Negotiation) error
	GetNegotiation(ctx context.Context, id string) (domain.Negotiation, error)
	LockNegotiation(ctx context.Context, id string) (domain.Negotiation, error)
	UpdateNegotiation(ctx context.Context, n domain.Negotiation) error
	ListNegotiations(ctx context.Context, identity string) ([]domain.Negotiation, error)
	ListStaleNegotiations(ctx context.Context, before time.Time) ([]string, error)
	InsertMessage(ctx context.Context, m domain.Message) error
	ListMessages(ctx context.Context, negotiationID string) ([]domain.Message, error)
}

// Tx is the set of row operations bound to one database transaction.
type Tx interface {
	AccountStore
	ListingStore
	BatchStore
	NegotiationStore
}

type Store struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewStore(db *gorm.DB, lockTimeout time.Duration) *Store {
	return &Store{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

// Atomic runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (s *Store) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if s.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock_timeout -> %w", err)
			}
		}

		return fn(newTxRepository(db))
	})
}

type txRepository struct {
	accounts     *dao.AccountDAO
	listings     *dao.ListingDAO
	batches      *dao.BatchDAO
	negotiations *dao.NegotiationDAO
}

func newTxRepository(db *gorm.DB) *txRepository {
	return &txRepository{
		accounts:     dao.NewAccountDAO(db),
		listings:     dao.NewListingDAO(db),
		batches:      dao.NewBatchDAO(db),
		negotiations: dao.NewNegotiationDAO(db),
	}
}

func mapNotFound(err, sentinel error) error {
	if errors.Is(err, dao.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// IsRetryable reports whether err is a transient store failure after which the
// whole transaction can safely be re-run.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return true
		}
		return pgerrcode.IsConnectionException(pgErr.Code)
	}

	return pgconn.SafeToRetry(err)
}
