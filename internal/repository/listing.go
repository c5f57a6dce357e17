package repository

import (
	"context"
	"fmt"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/repository/dao"
)

func (r *txRepository) InsertListing(ctx context.Context, listing domain.Listing) error {
	if err := r.listings.Insert(ctx, listingDomainToDao(listing)); err != nil {
		return fmt.Errorf("r.listings.Insert -> %w", err)
	}

	return nil
}

func (r *txRepository) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	found, err := r.listings.FindByID(ctx, id)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("r.listings.FindByID -> %w", mapNotFound(err, domain.ErrListingNotFound))
	}

	return listingDaoToDomain(found), nil
}

func (r *txRepository) LockListing(ctx context.Context, id string) (domain.Listing, error) {
	found, err := r.listings.LockByID(ctx, id)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("r.listings.LockByID -> %w", mapNotFound(err, domain.ErrListingNotFound))
	}

	return listingDaoToDomain(found), nil
}

func (r *txRepository) UpdateListing(ctx context.Context, listing domain.Listing) error {
	if err := r.listings.Update(ctx, listingDomainToDao(listing)); err != nil {
		return fmt.Errorf("r.listings.Update -> %w", mapNotFound(err, domain.ErrListingNotFound))
	}

	return nil
}

func (r *txRepository) DeleteListing(ctx context.Context, id string) error {
	if err := r.listings.Delete(ctx, id); err != nil {
		return fmt.Errorf("r.listings.Delete -> %w", mapNotFound(err, domain.ErrListingNotFound))
	}

	return nil
}

func (r *txRepository) ListListings(ctx context.Context, status domain.ListingStatus) ([]domain.Listing, error) {
	rows, err := r.listings.FindAll(ctx, string(status))
	if err != nil {
		return nil, fmt.Errorf("r.listings.FindAll -> %w", err)
	}

	return listingsDaoToDomain(rows), nil
}

func (r *txRepository) ListUnbatched(ctx context.Context) ([]domain.Listing, error) {
	rows, err := r.listings.FindUnbatched(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.listings.FindUnbatched -> %w", err)
	}

	return listingsDaoToDomain(rows), nil
}

func (r *txRepository) LockUnbatched(ctx context.Context, limit int, exclude []string) ([]domain.Listing, error) {
	rows, err := r.listings.LockUnbatched(ctx, limit, exclude)
	if err != nil {
		return nil, fmt.Errorf("r.listings.LockUnbatched -> %w", err)
	}

	return listingsDaoToDomain(rows), nil
}

func (r *txRepository) SetListingsBatch(ctx context.Context, ids []string, batchID *string) error {
	if err := r.listings.SetBatch(ctx, ids, batchID); err != nil {
		return fmt.Errorf("r.listings.SetBatch -> %w", err)
	}

	return nil
}

func listingDomainToDao(l domain.Listing) dao.Listing {
	return dao.Listing{
		ID:          l.ID,
		Owner:       l.Owner,
		Title:       l.Title,
		Description: l.Description,
		Images:      l.Images,
		Kind:        string(l.Kind),
		Status:      string(l.Status),
		Price:       l.Price,
		BatchID:     l.BatchID,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func listingDaoToDomain(l dao.Listing) domain.Listing {
	return domain.Listing{
		ID:          l.ID,
		Owner:       l.Owner,
		Title:       l.Title,
		Description: l.Description,
		Images:      l.Images,
		Kind:        domain.ListingKind(l.Kind),
		Status:      domain.ListingStatus(l.Status),
		Price:       l.Price,
		BatchID:     l.BatchID,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func listingsDaoToDomain(rows []dao.Listing) []domain.Listing {
	listings := make([]domain.Listing, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, listingDaoToDomain(row))
	}
	return listings
}
