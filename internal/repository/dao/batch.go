package dao

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Batch struct {
	ID           string         `gorm:"primaryKey;size:36"`
	Display      datatypes.JSON `gorm:"type:jsonb"`
	ShareCount   int64          `gorm:"not null;default:0"`
	ClickRewards int64          `gorm:"not null;default:0"`
	Members      []BatchMember  `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time      `gorm:"index"`
	UpdatedAt    time.Time
}

type BatchMember struct {
	BatchID   string `gorm:"primaryKey;size:36"`
	Position  int    `gorm:"primaryKey"`
	ListingID string `gorm:"not null;size:36;uniqueIndex"`
}

type BatchDAO struct {
	db *gorm.DB
}

func NewBatchDAO(db *gorm.DB) *BatchDAO {
	return &BatchDAO{
		db: db,
	}
}

func (d *BatchDAO) Insert(ctx context.Context, batch Batch) error {
	return d.db.WithContext(ctx).Create(&batch).Error
}

func (d *BatchDAO) FindByID(ctx context.Context, id string) (Batch, error) {
	var batch Batch

	result := d.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&batch, "id = ?", id)
	if result.Error != nil {
		return Batch{}, notFound(result.Error, ErrRecordNotFound)
	}

	return batch, nil
}

func (d *BatchDAO) LockByID(ctx context.Context, id string) (Batch, error) {
	var batch Batch

	result := d.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&batch, "id = ?", id)
	if result.Error != nil {
		return Batch{}, notFound(result.Error, ErrRecordNotFound)
	}

	var members []BatchMember
	if err := d.db.WithContext(ctx).Where("batch_id = ?", id).Order("position").Find(&members).Error; err != nil {
		return Batch{}, err
	}
	batch.Members = members

	return batch, nil
}

// Update rewrites the batch row and replaces its member rows.
func (d *BatchDAO) Update(ctx context.Context, batch Batch) error {
	db := d.db.WithContext(ctx)

	result := db.Model(&Batch{ID: batch.ID}).
		Updates(map[string]any{
			"display":       batch.Display,
			"share_count":   batch.ShareCount,
			"click_rewards": batch.ClickRewards,
			"updated_at":    batch.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	if err := db.Where("batch_id = ?", batch.ID).Delete(&BatchMember{}).Error; err != nil {
		return err
	}
	if len(batch.Members) == 0 {
		return nil
	}

	return db.Create(&batch.Members).Error
}

func (d *BatchDAO) Delete(ctx context.Context, id string) error {
	db := d.db.WithContext(ctx)

	if err := db.Where("batch_id = ?", id).Delete(&BatchMember{}).Error; err != nil {
		return err
	}
	result := db.Delete(&Batch{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (d *BatchDAO) FindLatest(ctx context.Context) (Batch, error) {
	var batch Batch

	result := d.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("created_at DESC, id DESC").
		First(&batch)
	if result.Error != nil {
		return Batch{}, notFound(result.Error, ErrRecordNotFound)
	}

	return batch, nil
}

func (d *BatchDAO) FindAll(ctx context.Context) ([]Batch, error) {
	var batches []Batch

	result := d.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("created_at DESC, id DESC").
		Find(&batches)
	if result.Error != nil {
		return nil, result.Error
	}

	return batches, nil
}
