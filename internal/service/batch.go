package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/metrics"
	"github.com/glory2yahpub/marketplace/internal/repository"
)

type BatchConfig struct {
	Size          int
	ShareReward   int64
	Title         string
	Description   string
	PublicBaseURL string
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Size:          domain.DefaultBatchSize,
		ShareReward:   50,
		Title:         "Glory2yahPub Ad Batch",
		Description:   "Check out these amazing ads from Glory2yahPub!",
		PublicBaseURL: "http://localhost:8080",
	}
}

// BatchService keeps every batch at exactly Size approved members.
type BatchService struct {
	tx       txRunner
	notifier Notifier
	conf     BatchConfig
	now      func() time.Time
}

func NewBatchService(store Store, notifier Notifier, retry RetryPolicy, conf BatchConfig) *BatchService {
	if conf.Size <= 0 {
		conf.Size = domain.DefaultBatchSize
	}

	return &BatchService{
		tx:       txRunner{store: store, retry: retry},
		notifier: notifier,
		conf:     conf,
		now:      time.Now,
	}
}

// TryCreateBatch groups the oldest unbatched approved listings into a new batch.
func (s *BatchService) TryCreateBatch(ctx context.Context) (domain.Batch, error) {
	var batch domain.Batch

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		pool, err := tx.LockUnbatched(ctx, s.conf.Size, nil)
		if err != nil {
			return err
		}
		if len(pool) < s.conf.Size {
			return ErrInsufficientSupply
		}

		now := s.now()
		batch = domain.Batch{
			ID:        uuid.NewString(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		for _, l := range pool {
			batch.Members = append(batch.Members, l.ID)
		}
		batch.Display = s.display(batch.ID, pool)

		if err := tx.InsertBatch(ctx, batch); err != nil {
			return err
		}

		return tx.SetListingsBatch(ctx, batch.Members, &batch.ID)
	})
	if err != nil {
		metrics.BatchOperations.WithLabelValues("create_failed").Inc()
		return domain.Batch{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	metrics.BatchOperations.WithLabelValues("created").Inc()
	zap.L().Info("batch created", zap.String("batch_id", batch.ID), zap.Strings("members", batch.Members))
	dispatch(ctx, s.notifier, []domain.Event{
		event(domain.AdminRecipient, domain.EventBatchCreated, map[string]string{
			"batch_id": batch.ID,
			"url":      batch.Display.URL,
		}),
	})

	return batch, nil
}

// RemoveListingFromBatch detaches listingID from its batch inside the caller's
// transaction and repairs the batch. It returns the events to publish once the
// caller commits. A listing without a batch is left alone.
//
// Locks are always taken listing first, then batch.
func (s *BatchService) RemoveListingFromBatch(ctx context.Context, tx repository.Tx, listingID string) ([]domain.Event, error) {
	listing, err := tx.LockListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsBatched() {
		return nil, nil
	}

	return s.removeMember(ctx, tx, *listing.BatchID, listingID)
}

// ManualAdd puts an eligible listing into the batch, releasing the member at
// the last position so the batch stays full.
func (s *BatchService) ManualAdd(ctx context.Context, batchID, listingID string) (domain.Batch, error) {
	var batch domain.Batch

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		listing, err := tx.LockListing(ctx, listingID)
		if err != nil {
			return err
		}
		batch, err = tx.LockBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if !listing.Batchable() {
			return ErrListingNotEligible
		}

		if len(batch.Members) >= s.conf.Size {
			last := len(batch.Members) - 1
			if err := tx.SetListingsBatch(ctx, []string{batch.Members[last]}, nil); err != nil {
				return err
			}
			batch.Members[last] = listingID
		} else {
			batch.Members = append(batch.Members, listingID)
		}
		if err := tx.SetListingsBatch(ctx, []string{listingID}, &batch.ID); err != nil {
			return err
		}

		return s.refresh(ctx, tx, &batch)
	})
	if err != nil {
		return domain.Batch{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	metrics.BatchOperations.WithLabelValues("manual_add").Inc()
	dispatch(ctx, s.notifier, []domain.Event{s.repairedEvent(batch)})

	return batch, nil
}

// ManualRemove detaches a member and repairs the batch; the listing stays approved.
func (s *BatchService) ManualRemove(ctx context.Context, batchID, listingID string) error {
	var events []domain.Event

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockListing(ctx, listingID); err != nil {
			return err
		}

		var err error
		events, err = s.removeMember(ctx, tx, batchID, listingID)
		return err
	})
	if err != nil {
		return fmt.Errorf("s.tx.run -> %w", err)
	}

	recordRepairs(events)
	dispatch(ctx, s.notifier, events)

	return nil
}

func (s *BatchService) DeleteBatch(ctx context.Context, batchID string) error {
	err := s.tx.run(ctx, func(tx repository.Tx) error {
		batch, err := tx.LockBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if err := tx.SetListingsBatch(ctx, batch.Members, nil); err != nil {
			return err
		}

		return tx.DeleteBatch(ctx, batch.ID)
	})
	if err != nil {
		return fmt.Errorf("s.tx.run -> %w", err)
	}

	metrics.BatchOperations.WithLabelValues("deleted").Inc()
	dispatch(ctx, s.notifier, []domain.Event{
		event(domain.AdminRecipient, domain.EventBatchDeleted, map[string]string{"batch_id": batchID}),
	})

	return nil
}

// RecordShare counts a social share of the batch and grants the click reward.
func (s *BatchService) RecordShare(ctx context.Context, batchID string) (domain.Batch, error) {
	var batch domain.Batch

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		batch, err = tx.LockBatch(ctx, batchID)
		if err != nil {
			return err
		}
		batch.ShareCount++
		batch.ClickRewards += s.conf.ShareReward
		batch.UpdatedAt = s.now()

		return tx.UpdateBatch(ctx, batch)
	})
	if err != nil {
		return domain.Batch{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	return batch, nil
}

func (s *BatchService) GetBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	var batch domain.Batch

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		batch, err = tx.GetBatch(ctx, batchID)
		return err
	})
	if err != nil {
		return domain.Batch{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	return batch, nil
}

func (s *BatchService) LatestBatch(ctx context.Context) (domain.Batch, error) {
	var batch domain.Batch

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		batch, err = tx.LatestBatch(ctx)
		return err
	})
	if err != nil {
		return domain.Batch{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	return batch, nil
}

func (s *BatchService) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	var batches []domain.Batch

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		batches, err = tx.ListBatches(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("s.tx.run -> %w", err)
	}

	return batches, nil
}

// removeMember releases listingID from the batch. The oldest eligible listing
// takes its position; with no supply left the whole batch is dissolved.
func (s *BatchService) removeMember(ctx context.Context, tx repository.Tx, batchID, listingID string) ([]domain.Event, error) {
	batch, err := tx.LockBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	pos := batch.Position(listingID)
	if pos < 0 {
		return nil, ErrListingNotFound
	}
	if err := tx.SetListingsBatch(ctx, []string{listingID}, nil); err != nil {
		return nil, err
	}

	replacements, err := tx.LockUnbatched(ctx, 1, []string{listingID})
	if err != nil {
		return nil, err
	}

	if len(replacements) == 0 {
		remaining := append(batch.Members[:pos:pos], batch.Members[pos+1:]...)
		if err := tx.SetListingsBatch(ctx, remaining, nil); err != nil {
			return nil, err
		}
		if err := tx.DeleteBatch(ctx, batch.ID); err != nil {
			return nil, err
		}

		zap.L().Info("batch dissolved, no replacement available",
			zap.String("batch_id", batch.ID),
			zap.String("removed", listingID),
		)

		return []domain.Event{
			event(domain.AdminRecipient, domain.EventBatchDeleted, map[string]string{
				"batch_id": batch.ID,
				"removed":  listingID,
			}),
		}, nil
	}

	replacement := replacements[0]
	batch.Members[pos] = replacement.ID
	if err := tx.SetListingsBatch(ctx, []string{replacement.ID}, &batch.ID); err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, tx, &batch); err != nil {
		return nil, err
	}

	zap.L().Info("batch repaired",
		zap.String("batch_id", batch.ID),
		zap.String("removed", listingID),
		zap.String("replacement", replacement.ID),
		zap.Int("position", pos),
	)

	return []domain.Event{s.repairedEvent(batch)}, nil
}

// recordRepairs counts the committed outcomes of removeMember.
func recordRepairs(events []domain.Event) {
	for _, e := range events {
		switch e.Kind {
		case domain.EventBatchDeleted:
			metrics.BatchOperations.WithLabelValues("dissolved").Inc()
		case domain.EventBatchRepaired:
			metrics.BatchOperations.WithLabelValues("repaired").Inc()
		}
	}
}

// refresh regenerates display metadata from the current members and saves the batch.
func (s *BatchService) refresh(ctx context.Context, tx repository.Tx, batch *domain.Batch) error {
	members := make([]domain.Listing, 0, len(batch.Members))
	for _, id := range batch.Members {
		l, err := tx.GetListing(ctx, id)
		if err != nil {
			if errors.Is(err, ErrListingNotFound) {
				continue
			}
			return err
		}
		members = append(members, l)
	}

	batch.Display = s.display(batch.ID, members)
	batch.UpdatedAt = s.now()

	return tx.UpdateBatch(ctx, *batch)
}

func (s *BatchService) display(batchID string, members []domain.Listing) domain.BatchDisplay {
	base := strings.TrimRight(s.conf.PublicBaseURL, "/")

	d := domain.BatchDisplay{
		Title:       s.conf.Title,
		Description: s.conf.Description,
		URL:         base + "/batch/" + batchID,
		Images:      make([]string, 0, len(members)),
	}
	for _, l := range members {
		if len(l.Images) == 0 {
			continue
		}
		d.Images = append(d.Images, base+"/static/uploads/"+l.Images[0])
	}

	return d
}

func (s *BatchService) repairedEvent(batch domain.Batch) domain.Event {
	return event(domain.AdminRecipient, domain.EventBatchRepaired, map[string]string{
		"batch_id": batch.ID,
		"members":  strconv.Itoa(len(batch.Members)),
		"url":      batch.Display.URL,
	})
}
