package domain

import (
	"time"
)

type NegotiationStatus string

const (
	NegotiationCreated   NegotiationStatus = "created"
	NegotiationPriceSet  NegotiationStatus = "price_set"
	NegotiationConfirmed NegotiationStatus = "confirmed"
	NegotiationDeclined  NegotiationStatus = "declined"
	NegotiationCompleted NegotiationStatus = "completed"
	NegotiationCancelled NegotiationStatus = "cancelled"
)

var negotiationTransitions = map[NegotiationStatus][]NegotiationStatus{
	NegotiationCreated:   {NegotiationPriceSet, NegotiationDeclined, NegotiationCancelled},
	NegotiationPriceSet:  {NegotiationPriceSet, NegotiationConfirmed, NegotiationDeclined, NegotiationCancelled},
	NegotiationConfirmed: {NegotiationCompleted, NegotiationCancelled},
}

func (s NegotiationStatus) CanTransitionTo(to NegotiationStatus) bool {
	for _, next := range negotiationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s NegotiationStatus) IsTerminal() bool {
	return len(negotiationTransitions[s]) == 0
}

type NegotiationLine struct {
	ListingID string `json:"listing_id"`
	Title     string `json:"title"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

func (l NegotiationLine) Amount() (int64, error) {
	if l.Quantity <= 0 || l.Quantity > MaxLineQuantity {
		return 0, ErrInvalidAmount
	}
	return MulAmount(l.UnitPrice, l.Quantity)
}

type Negotiation struct {
	ID              string            `json:"id"`
	Buyer           string            `json:"buyer"`
	Seller          string            `json:"seller"`
	Lines           []NegotiationLine `json:"lines"`
	Subtotal        int64             `json:"subtotal"`
	ShippingCost    *int64            `json:"shipping_cost,omitempty"`
	Total           int64             `json:"total"`
	Status          NegotiationStatus `json:"status"`
	DeliveryAddress string            `json:"delivery_address"`
	DeliveryDate    *time.Time        `json:"delivery_date,omitempty"`
	DeliveryNotes   string            `json:"delivery_notes,omitempty"`
	Refunded        bool              `json:"refunded"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	PriceSetAt      *time.Time        `json:"price_set_at,omitempty"`
	ConfirmedAt     *time.Time        `json:"confirmed_at,omitempty"`
	DeclinedAt      *time.Time        `json:"declined_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
}

// Transition moves the negotiation to the given status and stamps the matching timestamp.
func (n *Negotiation) Transition(to NegotiationStatus, now time.Time) error {
	if !n.Status.CanTransitionTo(to) {
		return ErrInvalidStateTransition
	}
	n.Status = to
	n.UpdatedAt = now
	switch to {
	case NegotiationPriceSet:
		n.PriceSetAt = &now
	case NegotiationConfirmed:
		n.ConfirmedAt = &now
	case NegotiationDeclined:
		n.DeclinedAt = &now
	case NegotiationCompleted:
		n.CompletedAt = &now
	case NegotiationCancelled:
		n.CancelledAt = &now
	}

	return nil
}

// SetShipping overwrites the shipping cost and recomputes the total.
func (n *Negotiation) SetShipping(cost int64, now time.Time) error {
	if cost < 0 {
		return ErrInvalidAmount
	}
	total, err := AddAmounts(n.Subtotal, cost)
	if err != nil {
		return err
	}
	if err := n.Transition(NegotiationPriceSet, now); err != nil {
		return err
	}
	n.ShippingCost = &cost
	n.Total = total

	return nil
}

func (n Negotiation) IsParticipant(identity string) bool {
	return identity == n.Buyer || identity == n.Seller
}

func SubtotalOf(lines []NegotiationLine) (int64, error) {
	var total int64
	for _, l := range lines {
		amount, err := l.Amount()
		if err != nil {
			return 0, err
		}
		if total, err = AddAmounts(total, amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}
