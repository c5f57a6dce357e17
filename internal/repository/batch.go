package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/repository/dao"
)

func (r *txRepository) InsertBatch(ctx context.Context, batch domain.Batch) error {
	row, err := batchDomainToDao(batch)
	if err != nil {
		return err
	}
	if err := r.batches.Insert(ctx, row); err != nil {
		return fmt.Errorf("r.batches.Insert -> %w", err)
	}

	return nil
}

func (r *txRepository) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	found, err := r.batches.FindByID(ctx, id)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("r.batches.FindByID -> %w", mapNotFound(err, domain.ErrBatchNotFound))
	}

	return batchDaoToDomain(found)
}

func (r *txRepository) LockBatch(ctx context.Context, id string) (domain.Batch, error) {
	found, err := r.batches.LockByID(ctx, id)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("r.batches.LockByID -> %w", mapNotFound(err, domain.ErrBatchNotFound))
	}

	return batchDaoToDomain(found)
}

func (r *txRepository) UpdateBatch(ctx context.Context, batch domain.Batch) error {
	row, err := batchDomainToDao(batch)
	if err != nil {
		return err
	}
	if err := r.batches.Update(ctx, row); err != nil {
		return fmt.Errorf("r.batches.Update -> %w", mapNotFound(err, domain.ErrBatchNotFound))
	}

	return nil
}

func (r *txRepository) DeleteBatch(ctx context.Context, id string) error {
	if err := r.batches.Delete(ctx, id); err != nil {
		return fmt.Errorf("r.batches.Delete -> %w", mapNotFound(err, domain.ErrBatchNotFound))
	}

	return nil
}

func (r *txRepository) LatestBatch(ctx context.Context) (domain.Batch, error) {
	found, err := r.batches.FindLatest(ctx)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("r.batches.FindLatest -> %w", mapNotFound(err, domain.ErrBatchNotFound))
	}

	return batchDaoToDomain(found)
}

func (r *txRepository) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	rows, err := r.batches.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.batches.FindAll -> %w", err)
	}

	batches := make([]domain.Batch, 0, len(rows))
	for _, row := range rows {
		b, err := batchDaoToDomain(row)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}

	return batches, nil
}

func batchDomainToDao(b domain.Batch) (dao.Batch, error) {
	display, err := json.Marshal(b.Display)
	if err != nil {
		return dao.Batch{}, fmt.Errorf("json.Marshal batch display -> %w", err)
	}

	members := make([]dao.BatchMember, 0, len(b.Members))
	for i, listingID := range b.Members {
		members = append(members, dao.BatchMember{
			BatchID:   b.ID,
			Position:  i,
			ListingID: listingID,
		})
	}

	return dao.Batch{
		ID:           b.ID,
		Display:      datatypes.JSON(display),
		ShareCount:   b.ShareCount,
		ClickRewards: b.ClickRewards,
		Members:      members,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}, nil
}

func batchDaoToDomain(b dao.Batch) (domain.Batch, error) {
	var display domain.BatchDisplay
	if len(b.Display) > 0 {
		if err := json.Unmarshal(b.Display, &display); err != nil {
			return domain.Batch{}, fmt.Errorf("json.Unmarshal batch display -> %w", err)
		}
	}

	members := make([]string, 0, len(b.Members))
	for _, m := range b.Members {
		members = append(members, m.ListingID)
	}

	return domain.Batch{
		ID:           b.ID,
		Members:      members,
		Display:      display,
		ShareCount:   b.ShareCount,
		ClickRewards: b.ClickRewards,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}, nil
}
