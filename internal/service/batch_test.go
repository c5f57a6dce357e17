package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glory2yahpub/marketplace/internal/domain"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestBatches(t *testing.T) (*BatchService, *fakeStore, *recordingNotifier) {
	t.Helper()

	store := newFakeStore()
	notifier := &recordingNotifier{}
	conf := DefaultBatchConfig()
	conf.PublicBaseURL = "https://gkach.example/"

	svc := NewBatchService(store, notifier, testRetry(), conf)
	svc.now = func() time.Time { return epoch }

	return svc, store, notifier
}

// seedApproved adds n approved listings created one minute apart and returns their ids.
func seedApproved(store *fakeStore, prefix string, n int, owner string) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%02d", prefix, i)
		store.seedListing(domain.Listing{
			ID:        id,
			Owner:     owner,
			Title:     "item " + id,
			Images:    []string{id + ".jpg", id + "-2.jpg"},
			Kind:      domain.ListingSell,
			Status:    domain.ListingApproved,
			Price:     int64Ptr(10),
			CreatedAt: epoch.Add(time.Duration(i) * time.Minute),
		})
		ids = append(ids, id)
	}
	return ids
}

// assertBatchesConsistent checks fullness, exclusivity and the two-way link
// between batches and their members.
func assertBatchesConsistent(t *testing.T, state *fakeState, size int) {
	t.Helper()

	owner := map[string]string{}
	for _, b := range state.batches {
		assert.Len(t, b.Members, size, "batch %s", b.ID)
		for _, id := range b.Members {
			prev, dup := owner[id]
			assert.False(t, dup, "listing %s in batches %s and %s", id, prev, b.ID)
			owner[id] = b.ID

			l, ok := state.listings[id]
			require.True(t, ok, "member %s exists", id)
			assert.Equal(t, domain.ListingApproved, l.Status)
			require.NotNil(t, l.BatchID)
			assert.Equal(t, b.ID, *l.BatchID)
		}
	}
	for _, l := range state.listings {
		if l.BatchID == nil {
			continue
		}
		assert.Equal(t, *l.BatchID, owner[l.ID], "listing %s points at a batch that does not list it", l.ID)
	}
}

func TestBatchService_TryCreateBatchInsufficientSupply(t *testing.T) {
	t.Parallel()

	svc, store, notifier := newTestBatches(t)
	seedApproved(store, "l", 4, alice)

	_, err := svc.TryCreateBatch(context.Background())
	require.ErrorIs(t, err, ErrInsufficientSupply)

	state := store.snapshot()
	assert.Empty(t, state.batches)
	for _, l := range state.listings {
		assert.Nil(t, l.BatchID)
	}
	assert.Empty(t, notifier.kinds())
}

func TestBatchService_TryCreateBatch(t *testing.T) {
	t.Parallel()

	svc, store, notifier := newTestBatches(t)
	ids := seedApproved(store, "l", 6, alice)
	store.seedListing(domain.Listing{
		ID:        "pending",
		Owner:     bob,
		Kind:      domain.ListingSell,
		Status:    domain.ListingUnderReview,
		CreatedAt: epoch.Add(-time.Hour),
	})

	batch, err := svc.TryCreateBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ids[:5], batch.Members, "oldest approved listings first")
	assert.Equal(t, "https://gkach.example/batch/"+batch.ID, batch.Display.URL)
	assert.Equal(t, "Glory2yahPub Ad Batch", batch.Display.Title)
	require.Len(t, batch.Display.Images, 5)
	assert.Equal(t, "https://gkach.example/static/uploads/l-00.jpg", batch.Display.Images[0])

	state := store.snapshot()
	assertBatchesConsistent(t, state, 5)
	assert.Nil(t, state.listings[ids[5]].BatchID)
	assert.Nil(t, state.listings["pending"].BatchID)
	assert.Equal(t, []domain.EventKind{domain.EventBatchCreated}, notifier.kinds())

	_, err = svc.TryCreateBatch(context.Background())
	require.ErrorIs(t, err, ErrInsufficientSupply, "one listing left over")
}

func TestBatchService_TieBreakByID(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestBatches(t)
	for _, id := range []string{"e", "c", "a", "d", "b", "f"} {
		store.seedListing(domain.Listing{
			ID:        id,
			Owner:     alice,
			Kind:      domain.ListingSell,
			Status:    domain.ListingApproved,
			CreatedAt: epoch,
		})
	}

	batch, err := svc.TryCreateBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, batch.Members)
}

func TestBatchService_ManualRemoveReplacesAtSamePosition(t *testing.T) {
	t.Parallel()

	svc, store, notifier := newTestBatches(t)
	ctx := context.Background()
	ids := seedApproved(store, "l", 6, alice)

	batch, err := svc.TryCreateBatch(ctx)
	require.NoError(t, err)

	require.ErrorIs(t, svc.ManualRemove(ctx, batch.ID, ids[5]), ErrListingNotFound)
	require.NoError(t, svc.ManualRemove(ctx, batch.ID, ids[2]))

	got, err := svc.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[1], ids[5], ids[3], ids[4]}, got.Members)
	assert.Equal(t, "https://gkach.example/static/uploads/l-05.jpg", got.Display.Images[2])

	state := store.snapshot()
	assertBatchesConsistent(t, state, 5)
	removed := state.listings[ids[2]]
	assert.Nil(t, removed.BatchID)
	assert.Equal(t, domain.ListingApproved, removed.Status, "released listing stays approved")
	assert.Contains(t, notifier.kinds(), domain.EventBatchRepaired)
}

func TestBatchService_ManualRemoveWithoutSupplyDissolves(t *testing.T) {
	t.Parallel()

	svc, store, notifier := newTestBatches(t)
	ctx := context.Background()
	ids := seedApproved(store, "l", 5, alice)

	batch, err := svc.TryCreateBatch(ctx)
	require.NoError(t, err)

	// The removed listing is approved and unbatched again, but it must not be
	// picked as its own replacement.
	require.NoError(t, svc.ManualRemove(ctx, batch.ID, ids[0]))

	_, err = svc.GetBatch(ctx, batch.ID)
	require.ErrorIs(t, err, ErrBatchNotFound)

	state := store.snapshot()
	for _, id := range ids {
		assert.Nil(t, state.listings[id].BatchID, id)
	}
	assert.Contains(t, notifier.kinds(), domain.EventBatchDeleted)
}

func TestBatchService_ManualAdd(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestBatches(t)
	ctx := context.Background()
	ids := seedApproved(store, "l", 6, alice)
	store.seedListing(domain.Listing{ID: "review", Owner: bob, Kind: domain.ListingSell, Status: domain.ListingUnderReview})

	batch, err := svc.TryCreateBatch(ctx)
	require.NoError(t, err)

	_, err = svc.ManualAdd(ctx, batch.ID, "review")
	require.ErrorIs(t, err, ErrListingNotEligible)
	_, err = svc.ManualAdd(ctx, batch.ID, ids[1])
	require.ErrorIs(t, err, ErrListingNotEligible, "already batched")
	_, err = svc.ManualAdd(ctx, "nope", ids[5])
	require.ErrorIs(t, err, ErrBatchNotFound)

	got, err := svc.ManualAdd(ctx, batch.ID, ids[5])
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[1], ids[2], ids[3], ids[5]}, got.Members)

	state := store.snapshot()
	assertBatchesConsistent(t, state, 5)
	assert.Nil(t, state.listings[ids[4]].BatchID, "last member released")
}

func TestBatchService_DeleteBatch(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestBatches(t)
	ctx := context.Background()
	ids := seedApproved(store, "l", 5, alice)

	batch, err := svc.TryCreateBatch(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBatch(ctx, batch.ID))
	require.ErrorIs(t, svc.DeleteBatch(ctx, batch.ID), ErrBatchNotFound)

	state := store.snapshot()
	assert.Empty(t, state.batches)
	for _, id := range ids {
		assert.Nil(t, state.listings[id].BatchID)
	}
}

func TestBatchService_RecordShare(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestBatches(t)
	ctx := context.Background()
	seedApproved(store, "l", 5, alice)

	batch, err := svc.TryCreateBatch(ctx)
	require.NoError(t, err)

	_, err = svc.RecordShare(ctx, batch.ID)
	require.NoError(t, err)
	got, err := svc.RecordShare(ctx, batch.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(2), got.ShareCount)
	assert.Equal(t, int64(100), got.ClickRewards)

	_, err = svc.RecordShare(ctx, "missing")
	require.ErrorIs(t, err, ErrBatchNotFound)
}

func TestBatchService_Reads(t *testing.T) {
	t.Parallel()

	svc, store, _ := newTestBatches(t)
	ctx := context.Background()

	_, err := svc.LatestBatch(ctx)
	require.ErrorIs(t, err, ErrBatchNotFound)

	seedApproved(store, "a", 5, alice)
	first, err := svc.TryCreateBatch(ctx)
	require.NoError(t, err)

	seedApproved(store, "b", 5, bob)
	svc.now = func() time.Time { return epoch.Add(time.Hour) }
	second, err := svc.TryCreateBatch(ctx)
	require.NoError(t, err)

	latest, err := svc.LatestBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	all, err := svc.ListBatches(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[1].ID)
}
