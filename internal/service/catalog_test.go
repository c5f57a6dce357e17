package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glory2yahpub/marketplace/internal/domain"
)

func newTestCatalog(t *testing.T) (*CatalogService, *BatchService, *fakeStore, *recordingNotifier) {
	t.Helper()

	batches, store, notifier := newTestBatches(t)
	svc := NewCatalogService(store, batches, notifier, testRetry())
	svc.now = func() time.Time { return epoch }

	return svc, batches, store, notifier
}

func TestCatalogService_SubmitListing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      NewListing
		wantErr error
	}{
		{
			name:    "missing title",
			in:      NewListing{Owner: alice, Kind: domain.ListingSell},
			wantErr: ErrInvalidListing,
		},
		{
			name:    "unknown kind",
			in:      NewListing{Owner: alice, Title: "shoes", Kind: "auction"},
			wantErr: ErrInvalidListing,
		},
		{
			name:    "negative price",
			in:      NewListing{Owner: alice, Title: "shoes", Kind: domain.ListingSell, Price: int64Ptr(-1)},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "sell listing",
			in:   NewListing{Owner: alice, Title: "shoes", Kind: domain.ListingSell, Price: int64Ptr(40), Images: []string{"a.jpg"}},
		},
		{
			name: "promo without price",
			in:   NewListing{Owner: alice, Title: "grand opening", Kind: domain.ListingPromo},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _, store, _ := newTestCatalog(t)

			listing, err := svc.SubmitListing(context.Background(), tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, store.snapshot().listings)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.ListingUnderReview, listing.Status)
			assert.Nil(t, listing.BatchID)
			assert.Contains(t, store.snapshot().listings, listing.ID)
		})
	}
}

func TestCatalogService_ApproveListingIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, _, _, notifier := newTestCatalog(t)
	ctx := context.Background()

	listing, err := svc.SubmitListing(ctx, NewListing{Owner: alice, Title: "radio", Kind: domain.ListingSell, Price: int64Ptr(5)})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := svc.ApproveListing(ctx, listing.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ListingApproved, got.Status)
	}
	assert.Equal(t, []domain.EventKind{domain.EventListingApproved}, notifier.kinds())

	_, err = svc.ApproveListing(ctx, "missing")
	require.ErrorIs(t, err, ErrListingNotFound)
}

func TestCatalogService_RejectBatchedListingRepairsBatch(t *testing.T) {
	t.Parallel()

	svc, batches, store, _ := newTestCatalog(t)
	ctx := context.Background()
	ids := seedApproved(store, "l", 6, alice)

	batch, err := batches.TryCreateBatch(ctx)
	require.NoError(t, err)

	rejected, err := svc.RejectListing(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, domain.ListingRejected, rejected.Status)
	assert.Nil(t, rejected.BatchID)

	got, err := batches.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, ids[5], got.Members[1])
	assertBatchesConsistent(t, store.snapshot(), 5)
}

// Five listings fill a batch, a sixth waits in the pool. Deleting one member
// pulls the sixth in; deleting another with the pool empty dissolves the batch.
func TestCatalogService_DeleteListingScenario(t *testing.T) {
	t.Parallel()

	svc, batches, store, _ := newTestCatalog(t)
	ctx := context.Background()
	ids := seedApproved(store, "l", 6, alice)

	batch, err := batches.TryCreateBatch(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteListing(ctx, ids[0]))
	got, err := batches.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[5], ids[1], ids[2], ids[3], ids[4]}, got.Members)
	assertBatchesConsistent(t, store.snapshot(), 5)

	require.NoError(t, svc.DeleteListing(ctx, ids[3]))
	_, err = batches.GetBatch(ctx, batch.ID)
	require.ErrorIs(t, err, ErrBatchNotFound)

	state := store.snapshot()
	assert.NotContains(t, state.listings, ids[0])
	assert.NotContains(t, state.listings, ids[3])
	for _, id := range []string{ids[1], ids[2], ids[4], ids[5]} {
		assert.Nil(t, state.listings[id].BatchID, id)
		assert.Equal(t, domain.ListingApproved, state.listings[id].Status, id)
	}

	require.ErrorIs(t, svc.DeleteListing(ctx, ids[0]), ErrListingNotFound)
}

func TestCatalogService_RejectUnbatchedListing(t *testing.T) {
	t.Parallel()

	svc, _, store, _ := newTestCatalog(t)
	ctx := context.Background()
	ids := seedApproved(store, "l", 1, alice)

	got, err := svc.RejectListing(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.ListingRejected, got.Status)
	assert.Empty(t, store.snapshot().batches)
}

func TestCatalogService_UpdatePrice(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestCatalog(t)
	ctx := context.Background()

	listing, err := svc.SubmitListing(ctx, NewListing{Owner: alice, Title: "fan", Kind: domain.ListingSell, Price: int64Ptr(20)})
	require.NoError(t, err)

	_, err = svc.UpdatePrice(ctx, listing.ID, bob, 5)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.UpdatePrice(ctx, listing.ID, alice, -1)
	require.ErrorIs(t, err, ErrInvalidAmount)

	got, err := svc.UpdatePrice(ctx, listing.ID, alice, 25)
	require.NoError(t, err)
	require.NotNil(t, got.Price)
	assert.Equal(t, int64(25), *got.Price)
}

func TestCatalogService_Reads(t *testing.T) {
	t.Parallel()

	svc, batches, store, _ := newTestCatalog(t)
	ctx := context.Background()
	seedApproved(store, "l", 6, alice)
	_, err := svc.SubmitListing(ctx, NewListing{Owner: bob, Title: "bike", Kind: domain.ListingSell, Price: int64Ptr(90)})
	require.NoError(t, err)

	all, err := svc.ListListings(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 7)

	review, err := svc.ListListings(ctx, domain.ListingUnderReview)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, "bike", review[0].Title)

	_, err = batches.TryCreateBatch(ctx)
	require.NoError(t, err)

	pool, err := svc.ListApprovedUnbatched(ctx)
	require.NoError(t, err)
	require.Len(t, pool, 1)
	assert.Equal(t, "l-05", pool[0].ID)

	got, err := svc.GetListing(ctx, "l-05")
	require.NoError(t, err)
	assert.Equal(t, alice, got.Owner)
}
