package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Listing struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Owner       string    `gorm:"not null;size:20;index"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"type:text"`
	Images      []string  `gorm:"serializer:json;type:jsonb"`
	Kind        string    `gorm:"not null"` // "sell" or "promo"
	Status      string    `gorm:"not null;index"`
	Price       *int64    `gorm:"check:chk_listings_price,price >= 0"`
	BatchID     *string   `gorm:"size:36;index"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

type ListingDAO struct {
	db *gorm.DB
}

func NewListingDAO(db *gorm.DB) *ListingDAO {
	return &ListingDAO{
		db: db,
	}
}

func (d *ListingDAO) Insert(ctx context.Context, listing Listing) error {
	return d.db.WithContext(ctx).Create(&listing).Error
}

func (d *ListingDAO) FindByID(ctx context.Context, id string) (Listing, error) {
	var listing Listing

	result := d.db.WithContext(ctx).First(&listing, "id = ?", id)
	if result.Error != nil {
		return Listing{}, notFound(result.Error, ErrRecordNotFound)
	}

	return listing, nil
}

func (d *ListingDAO) LockByID(ctx context.Context, id string) (Listing, error) {
	var listing Listing

	result := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&listing, "id = ?", id)
	if result.Error != nil {
		return Listing{}, notFound(result.Error, ErrRecordNotFound)
	}

	return listing, nil
}

// Update writes every mutable column, including NULLs for price and batch.
func (d *ListingDAO) Update(ctx context.Context, listing Listing) error {
	result := d.db.WithContext(ctx).Model(&Listing{ID: listing.ID}).
		Select("title", "description", "images", "kind", "status", "price", "batch_id", "updated_at").
		Updates(&listing)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (d *ListingDAO) Delete(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&Listing{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (d *ListingDAO) FindAll(ctx context.Context, status string) ([]Listing, error) {
	var listings []Listing

	query := d.db.WithContext(ctx).Order("created_at DESC, id")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&listings).Error; err != nil {
		return nil, err
	}

	return listings, nil
}

func (d *ListingDAO) FindUnbatched(ctx context.Context) ([]Listing, error) {
	var listings []Listing

	result := d.db.WithContext(ctx).
		Where("status = ? AND batch_id IS NULL", "approved").
		Order("created_at, id").
		Find(&listings)
	if result.Error != nil {
		return nil, result.Error
	}

	return listings, nil
}

// LockUnbatched locks up to limit approved listings without a batch, oldest first.
// Rows already locked by a concurrent transaction are skipped.
func (d *ListingDAO) LockUnbatched(ctx context.Context, limit int, exclude []string) ([]Listing, error) {
	var listings []Listing

	query := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND batch_id IS NULL", "approved")
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}
	result := query.Order("created_at, id").Limit(limit).Find(&listings)
	if result.Error != nil {
		return nil, result.Error
	}

	return listings, nil
}

func (d *ListingDAO) SetBatch(ctx context.Context, ids []string, batchID *string) error {
	if len(ids) == 0 {
		return nil
	}

	return d.db.WithContext(ctx).Model(&Listing{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"batch_id": batchID, "updated_at": time.Now()}).Error
}
