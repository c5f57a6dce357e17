package domain

import (
	"time"
)

type ListingStatus string

const (
	ListingUnderReview ListingStatus = "under_review"
	ListingApproved    ListingStatus = "approved"
	ListingRejected    ListingStatus = "rejected"
)

func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingUnderReview, ListingApproved, ListingRejected:
		return true
	}
	return false
}

type ListingKind string

const (
	ListingSell  ListingKind = "sell"
	ListingPromo ListingKind = "promo"
)

func (k ListingKind) IsValid() bool {
	return k == ListingSell || k == ListingPromo
}

type Listing struct {
	ID          string        `json:"id"`
	Owner       string        `json:"owner"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Images      []string      `json:"images"`
	Kind        ListingKind   `json:"kind"`
	Status      ListingStatus `json:"status"`
	Price       *int64        `json:"price,omitempty"`
	BatchID     *string       `json:"batch_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// CheckPurchasableBy returns nil when buyer may put the listing in a cart.
func (l Listing) CheckPurchasableBy(buyer string) error {
	if l.Status != ListingApproved || l.Kind != ListingSell || l.Price == nil {
		return ErrListingNotPurchasable
	}
	if l.Owner == buyer {
		return ErrListingNotPurchasable
	}

	return nil
}

func (l Listing) IsBatched() bool {
	return l.BatchID != nil && *l.BatchID != ""
}

func (l Listing) Batchable() bool {
	return l.Status == ListingApproved && !l.IsBatched()
}
