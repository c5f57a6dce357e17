package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/repository"
)

// fakeStore is an in-memory repository.Tx backend. Transactions are serialized
// and run against a copy of the state that only replaces it on success, so a
// failed transaction leaves nothing behind.
type fakeStore struct {
	mu       sync.Mutex
	state    *fakeState
	failures []error
	calls    int
	// listing ids passed to LockListing, in call order
	listingLocks []string
}

type fakeState struct {
	accounts     map[string]domain.Account
	topUps       map[string]domain.TopUpRequest
	entries      []domain.LedgerEntry
	listings     map[string]domain.Listing
	batches      map[string]domain.Batch
	negotiations map[string]domain.Negotiation
	messages     []domain.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: &fakeState{
			accounts:     map[string]domain.Account{},
			topUps:       map[string]domain.TopUpRequest{},
			listings:     map[string]domain.Listing{},
			batches:      map[string]domain.Batch{},
			negotiations: map[string]domain.Negotiation{},
		},
	}
}

// failNext makes the next Atomic calls fail with errs before running fn.
func (f *fakeStore) failNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, errs...)
}

func (f *fakeStore) Atomic(_ context.Context, fn func(tx repository.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}

	work := f.state.clone()
	if err := fn(&fakeTx{s: work, store: f}); err != nil {
		return err
	}
	f.state = work

	return nil
}

// snapshot returns a copy of the committed state for assertions.
func (f *fakeStore) snapshot() *fakeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.clone()
}

func (f *fakeStore) lockedListings() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listingLocks...)
}

func (f *fakeStore) seedAccount(identity string, balance int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.accounts[identity] = domain.Account{Identity: identity, Balance: balance}
}

func (f *fakeStore) seedListing(l domain.Listing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.listings[l.ID] = copyListing(l)
}

func (f *fakeStore) seedNegotiation(n domain.Negotiation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.negotiations[n.ID] = copyNegotiation(n)
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		accounts:     make(map[string]domain.Account, len(s.accounts)),
		topUps:       make(map[string]domain.TopUpRequest, len(s.topUps)),
		entries:      append([]domain.LedgerEntry(nil), s.entries...),
		listings:     make(map[string]domain.Listing, len(s.listings)),
		batches:      make(map[string]domain.Batch, len(s.batches)),
		negotiations: make(map[string]domain.Negotiation, len(s.negotiations)),
		messages:     append([]domain.Message(nil), s.messages...),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.topUps {
		c.topUps[k] = v
	}
	for k, v := range s.listings {
		c.listings[k] = copyListing(v)
	}
	for k, v := range s.batches {
		c.batches[k] = copyBatch(v)
	}
	for k, v := range s.negotiations {
		c.negotiations[k] = copyNegotiation(v)
	}
	return c
}

func (s *fakeState) totalBalance() int64 {
	var total int64
	for _, a := range s.accounts {
		total += a.Balance
	}
	return total
}

func copyListing(l domain.Listing) domain.Listing {
	l.Images = append([]string(nil), l.Images...)
	if l.BatchID != nil {
		id := *l.BatchID
		l.BatchID = &id
	}
	if l.Price != nil {
		p := *l.Price
		l.Price = &p
	}
	return l
}

func copyBatch(b domain.Batch) domain.Batch {
	b.Members = append([]string(nil), b.Members...)
	b.Display.Images = append([]string(nil), b.Display.Images...)
	return b
}

func copyNegotiation(n domain.Negotiation) domain.Negotiation {
	n.Lines = append([]domain.NegotiationLine(nil), n.Lines...)
	return n
}

type fakeTx struct {
	s     *fakeState
	store *fakeStore
}

func (t *fakeTx) EnsureAccount(_ context.Context, identity string) error {
	if _, ok := t.s.accounts[identity]; !ok {
		now := time.Now()
		t.s.accounts[identity] = domain.Account{Identity: identity, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (t *fakeTx) GetAccount(_ context.Context, identity string) (domain.Account, error) {
	a, ok := t.s.accounts[identity]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return a, nil
}

func (t *fakeTx) LockAccount(ctx context.Context, identity string) (domain.Account, error) {
	return t.GetAccount(ctx, identity)
}

func (t *fakeTx) UpdateBalance(_ context.Context, identity string, balance int64) error {
	a, ok := t.s.accounts[identity]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if balance < 0 {
		panic("negative balance reached the store")
	}
	a.Balance = balance
	t.s.accounts[identity] = a
	return nil
}

func (t *fakeTx) AppendEntry(_ context.Context, entry domain.LedgerEntry) error {
	t.s.entries = append(t.s.entries, entry)
	return nil
}

func (t *fakeTx) ListEntries(_ context.Context, identity string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range t.s.entries {
		if e.Identity == identity {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *fakeTx) InsertTopUp(_ context.Context, req domain.TopUpRequest) error {
	t.s.topUps[req.ID] = req
	return nil
}

func (t *fakeTx) LockTopUp(_ context.Context, id string) (domain.TopUpRequest, error) {
	req, ok := t.s.topUps[id]
	if !ok {
		return domain.TopUpRequest{}, domain.ErrRequestNotFound
	}
	return req, nil
}

func (t *fakeTx) UpdateTopUp(_ context.Context, req domain.TopUpRequest) error {
	if _, ok := t.s.topUps[req.ID]; !ok {
		return domain.ErrRequestNotFound
	}
	t.s.topUps[req.ID] = req
	return nil
}

func (t *fakeTx) ListTopUps(_ context.Context, identity string) ([]domain.TopUpRequest, error) {
	var out []domain.TopUpRequest
	for _, r := range t.s.topUps {
		if r.Identity == identity {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTx) ListTopUpsByState(_ context.Context, state domain.TopUpState) ([]domain.TopUpRequest, error) {
	var out []domain.TopUpRequest
	for _, r := range t.s.topUps {
		if r.State == state {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTx) InsertListing(_ context.Context, l domain.Listing) error {
	t.s.listings[l.ID] = copyListing(l)
	return nil
}

func (t *fakeTx) GetListing(_ context.Context, id string) (domain.Listing, error) {
	l, ok := t.s.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return copyListing(l), nil
}

func (t *fakeTx) LockListing(ctx context.Context, id string) (domain.Listing, error) {
	t.store.listingLocks = append(t.store.listingLocks, id)
	return t.GetListing(ctx, id)
}

func (t *fakeTx) UpdateListing(_ context.Context, l domain.Listing) error {
	if _, ok := t.s.listings[l.ID]; !ok {
		return domain.ErrListingNotFound
	}
	t.s.listings[l.ID] = copyListing(l)
	return nil
}

func (t *fakeTx) DeleteListing(_ context.Context, id string) error {
	if _, ok := t.s.listings[id]; !ok {
		return domain.ErrListingNotFound
	}
	delete(t.s.listings, id)
	return nil
}

func (t *fakeTx) ListListings(_ context.Context, status domain.ListingStatus) ([]domain.Listing, error) {
	var out []domain.Listing
	for _, l := range t.s.listings {
		if status == "" || l.Status == status {
			out = append(out, copyListing(l))
		}
	}
	sortListings(out)
	return out, nil
}

func (t *fakeTx) ListUnbatched(_ context.Context) ([]domain.Listing, error) {
	var out []domain.Listing
	for _, l := range t.s.listings {
		if l.Batchable() {
			out = append(out, copyListing(l))
		}
	}
	sortListings(out)
	return out, nil
}

func (t *fakeTx) LockUnbatched(ctx context.Context, limit int, exclude []string) ([]domain.Listing, error) {
	pool, _ := t.ListUnbatched(ctx)

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	var out []domain.Listing
	for _, l := range pool {
		if skip[l.ID] {
			continue
		}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *fakeTx) SetListingsBatch(_ context.Context, ids []string, batchID *string) error {
	for _, id := range ids {
		l, ok := t.s.listings[id]
		if !ok {
			continue
		}
		if batchID == nil {
			l.BatchID = nil
		} else {
			b := *batchID
			l.BatchID = &b
		}
		t.s.listings[id] = l
	}
	return nil
}

func (t *fakeTx) InsertBatch(_ context.Context, b domain.Batch) error {
	seen := map[string]bool{}
	for _, other := range t.s.batches {
		for _, m := range other.Members {
			seen[m] = true
		}
	}
	for _, m := range b.Members {
		if seen[m] {
			panic("listing already belongs to a batch")
		}
	}
	t.s.batches[b.ID] = copyBatch(b)
	return nil
}

func (t *fakeTx) GetBatch(_ context.Context, id string) (domain.Batch, error) {
	b, ok := t.s.batches[id]
	if !ok {
		return domain.Batch{}, domain.ErrBatchNotFound
	}
	return copyBatch(b), nil
}

func (t *fakeTx) LockBatch(ctx context.Context, id string) (domain.Batch, error) {
	return t.GetBatch(ctx, id)
}

func (t *fakeTx) UpdateBatch(_ context.Context, b domain.Batch) error {
	if _, ok := t.s.batches[b.ID]; !ok {
		return domain.ErrBatchNotFound
	}
	t.s.batches[b.ID] = copyBatch(b)
	return nil
}

func (t *fakeTx) DeleteBatch(_ context.Context, id string) error {
	if _, ok := t.s.batches[id]; !ok {
		return domain.ErrBatchNotFound
	}
	delete(t.s.batches, id)
	return nil
}

func (t *fakeTx) LatestBatch(ctx context.Context) (domain.Batch, error) {
	all, _ := t.ListBatches(ctx)
	if len(all) == 0 {
		return domain.Batch{}, domain.ErrBatchNotFound
	}
	return all[0], nil
}

func (t *fakeTx) ListBatches(_ context.Context) ([]domain.Batch, error) {
	var out []domain.Batch
	for _, b := range t.s.batches {
		out = append(out, copyBatch(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (t *fakeTx) InsertNegotiation(_ context.Context, n domain.Negotiation) error {
	t.s.negotiations[n.ID] = copyNegotiation(n)
	return nil
}

func (t *fakeTx) GetNegotiation(_ context.Context, id string) (domain.Negotiation, error) {
	n, ok := t.s.negotiations[id]
	if !ok {
		return domain.Negotiation{}, domain.ErrNegotiationNotFound
	}
	return copyNegotiation(n), nil
}

func (t *fakeTx) LockNegotiation(ctx context.Context, id string) (domain.Negotiation, error) {
	return t.GetNegotiation(ctx, id)
}

func (t *fakeTx) UpdateNegotiation(_ context.Context, n domain.Negotiation) error {
	if _, ok := t.s.negotiations[n.ID]; !ok {
		return domain.ErrNegotiationNotFound
	}
	t.s.negotiations[n.ID] = copyNegotiation(n)
	return nil
}

func (t *fakeTx) ListNegotiations(_ context.Context, identity string) ([]domain.Negotiation, error) {
	var out []domain.Negotiation
	for _, n := range t.s.negotiations {
		if n.IsParticipant(identity) {
			out = append(out, copyNegotiation(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *fakeTx) ListStaleNegotiations(_ context.Context, before time.Time) ([]string, error) {
	var ids []string
	for _, n := range t.s.negotiations {
		open := n.Status == domain.NegotiationCreated || n.Status == domain.NegotiationPriceSet
		if open && n.UpdatedAt.Before(before) {
			ids = append(ids, n.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *fakeTx) InsertMessage(_ context.Context, m domain.Message) error {
	t.s.messages = append(t.s.messages, m)
	return nil
}

func (t *fakeTx) ListMessages(_ context.Context, negotiationID string) ([]domain.Message, error) {
	var out []domain.Message
	for _, m := range t.s.messages {
		if m.NegotiationID == negotiationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func sortListings(ls []domain.Listing) {
	sort.Slice(ls, func(i, j int) bool {
		if !ls[i].CreatedAt.Equal(ls[j].CreatedAt) {
			return ls[i].CreatedAt.Before(ls[j].CreatedAt)
		}
		return ls[i].ID < ls[j].ID
	})
}

// recordingNotifier keeps every event it is asked to deliver.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, recipient string, kind domain.EventKind, payload map[string]string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.events = append(n.events, domain.Event{Recipient: recipient, Kind: kind, Payload: payload})
	if n.err != nil {
		return "", n.err
	}
	return "https://wa.me/" + recipient, nil
}

func (n *recordingNotifier) kinds() []domain.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]domain.EventKind, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

func testRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond}
}

func int64Ptr(v int64) *int64 {
	return &v
}
