package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/repository"
)

type NewListing struct {
	Owner       string
	Title       string
	Description string
	Images      []string
	Kind        domain.ListingKind
	Price       *int64
}

type CatalogService struct {
	tx       txRunner
	batches  *BatchService
	notifier Notifier
	now      func() time.Time
}

func NewCatalogService(store Store, batches *BatchService, notifier Notifier, retry RetryPolicy) *CatalogService {
	return &CatalogService{
		tx:       txRunner{store: store, retry: retry},
		batches:  batches,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *CatalogService) SubmitListing(ctx context.Context, in NewListing) (domain.Listing, error) {
	if in.Owner == "" || in.Title == "" || !in.Kind.IsValid() {
		return domain.Listing{}, ErrInvalidListing
	}
	if in.Price != nil && *in.Price < 0 {
		return domain.Listing{}, ErrInvalidAmount
	}

	now := s.now()
	listing := domain.Listing{
		ID:          uuid.NewString(),
		Owner:       in.Owner,
		Title:       in.Title,
		Description: in.Description,
		Images:      in.Images,
		Kind:        in.Kind,
		Status:      domain.ListingUnderReview,
		Price:       in.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		return tx.InsertListing(ctx, listing)
	})
	if err != nil {
		return domain.Listing{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	return listing, nil
}

// ApproveListing is idempotent for listings that are already approved.
func (s *CatalogService) ApproveListing(ctx context.Context, id string) (domain.Listing, error) {
	var (
		listing domain.Listing
		changed bool
	)

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		listing, err = tx.LockListing(ctx, id)
		if err != nil {
			return err
		}
		if listing.Status == domain.ListingApproved {
			return nil
		}

		changed = true
		listing.Status = domain.ListingApproved
		listing.UpdatedAt = s.now()
		return tx.UpdateListing(ctx, listing)
	})
	if err != nil {
		return domain.Listing{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	if changed {
		dispatch(ctx, s.notifier, []domain.Event{
			event(listing.Owner, domain.EventListingApproved, map[string]string{
				"listing_id": listing.ID,
				"title":      listing.Title,
			}),
		})
	}

	return listing, nil
}

// RejectListing takes the listing out of circulation and repairs its batch in
// the same transaction.
func (s *CatalogService) RejectListing(ctx context.Context, id string) (domain.Listing, error) {
	var (
		listing domain.Listing
		events  []domain.Event
	)

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		events = nil

		var err error
		listing, err = tx.LockListing(ctx, id)
		if err != nil {
			return err
		}
		if listing.Status == domain.ListingRejected {
			return nil
		}

		repairEvents, err := s.batches.RemoveListingFromBatch(ctx, tx, id)
		if err != nil {
			return err
		}
		events = append(events, repairEvents...)

		listing.Status = domain.ListingRejected
		listing.BatchID = nil
		listing.UpdatedAt = s.now()
		if err := tx.UpdateListing(ctx, listing); err != nil {
			return err
		}

		events = append(events, event(listing.Owner, domain.EventListingRejected, map[string]string{
			"listing_id": listing.ID,
			"title":      listing.Title,
		}))
		return nil
	})
	if err != nil {
		return domain.Listing{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	recordRepairs(events)
	dispatch(ctx, s.notifier, events)

	return listing, nil
}

func (s *CatalogService) DeleteListing(ctx context.Context, id string) error {
	var events []domain.Event

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		events, err = s.batches.RemoveListingFromBatch(ctx, tx, id)
		if err != nil {
			return err
		}

		return tx.DeleteListing(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("s.tx.run -> %w", err)
	}

	zap.L().Info("listing deleted", zap.String("listing_id", id))
	recordRepairs(events)
	dispatch(ctx, s.notifier, events)

	return nil
}

// UpdatePrice changes the asking price. Negotiations already started keep the
// price frozen into their lines.
func (s *CatalogService) UpdatePrice(ctx context.Context, id, owner string, price int64) (domain.Listing, error) {
	if price < 0 {
		return domain.Listing{}, ErrInvalidAmount
	}

	var listing domain.Listing

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		listing, err = tx.LockListing(ctx, id)
		if err != nil {
			return err
		}
		if listing.Owner != owner {
			return ErrUnauthorized
		}

		listing.Price = &price
		listing.UpdatedAt = s.now()
		return tx.UpdateListing(ctx, listing)
	})
	if err != nil {
		return domain.Listing{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	return listing, nil
}

func (s *CatalogService) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	var listing domain.Listing

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		listing, err = tx.GetListing(ctx, id)
		return err
	})
	if err != nil {
		return domain.Listing{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	return listing, nil
}

// ListListings filters by status; an empty status returns every listing.
func (s *CatalogService) ListListings(ctx context.Context, status domain.ListingStatus) ([]domain.Listing, error) {
	var listings []domain.Listing

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		listings, err = tx.ListListings(ctx, status)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("s.tx.run -> %w", err)
	}

	return listings, nil
}

func (s *CatalogService) ListApprovedUnbatched(ctx context.Context) ([]domain.Listing, error) {
	var listings []domain.Listing

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		listings, err = tx.ListUnbatched(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("s.tx.run -> %w", err)
	}

	return listings, nil
}
