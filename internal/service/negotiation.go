package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/metrics"
	"github.com/glory2yahpub/marketplace/internal/repository"
)

type LineRequest struct {
	ListingID string
	Quantity  int64
}

type ShippingQuote struct {
	Cost         int64
	DeliveryDate *time.Time
	Notes        string
}

type NegotiationService struct {
	tx       txRunner
	notifier Notifier
	now      func() time.Time
}

func NewNegotiationService(store Store, notifier Notifier, retry RetryPolicy) *NegotiationService {
	return &NegotiationService{
		tx:       txRunner{store: store, retry: retry},
		notifier: notifier,
		now:      time.Now,
	}
}

// StartNegotiation opens a negotiation for lines that all belong to one seller,
// freezing each listing's current price and title.
func (s *NegotiationService) StartNegotiation(ctx context.Context, buyer string, lines []LineRequest, address string) (domain.Negotiation, error) {
	if err := validateCart(lines, address); err != nil {
		return domain.Negotiation{}, err
	}

	var n domain.Negotiation

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		frozen := make([]domain.NegotiationLine, 0, len(lines))
		seller := ""
		for _, line := range lines {
			listing, err := tx.GetListing(ctx, line.ListingID)
			if err != nil {
				return err
			}
			if err := listing.CheckPurchasableBy(buyer); err != nil {
				return err
			}
			if seller != "" && listing.Owner != seller {
				return ErrMixedSellers
			}
			seller = listing.Owner

			frozen = append(frozen, domain.NegotiationLine{
				ListingID: listing.ID,
				Title:     listing.Title,
				Quantity:  line.Quantity,
				UnitPrice: *listing.Price,
			})
		}

		subtotal, err := domain.SubtotalOf(frozen)
		if err != nil {
			return err
		}

		now := s.now()
		n = domain.Negotiation{
			ID:              uuid.NewString(),
			Buyer:           buyer,
			Seller:          seller,
			Lines:           frozen,
			Subtotal:        subtotal,
			Total:           subtotal,
			Status:          domain.NegotiationCreated,
			DeliveryAddress: address,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		return tx.InsertNegotiation(ctx, n)
	})
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	metrics.NegotiationTransitions.WithLabelValues(string(domain.NegotiationCreated)).Inc()
	dispatch(ctx, s.notifier, []domain.Event{
		event(n.Seller, domain.EventNegotiationStarted, negotiationPayload(n)),
	})

	return n, nil
}

// Checkout splits a multi-seller cart into one negotiation per seller, in
// ascending seller order. Negotiations opened before a failure are kept and
// returned alongside the error.
func (s *NegotiationService) Checkout(ctx context.Context, buyer string, lines []LineRequest, address string) ([]domain.Negotiation, error) {
	if err := validateCart(lines, address); err != nil {
		return nil, err
	}

	groups := make(map[string][]LineRequest)
	err := s.tx.run(ctx, func(tx repository.Tx) error {
		for k := range groups {
			delete(groups, k)
		}
		for _, line := range lines {
			listing, err := tx.GetListing(ctx, line.ListingID)
			if err != nil {
				return err
			}
			if err := listing.CheckPurchasableBy(buyer); err != nil {
				return err
			}
			groups[listing.Owner] = append(groups[listing.Owner], line)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("s.tx.run -> %w", err)
	}

	sellers := make([]string, 0, len(groups))
	for seller := range groups {
		sellers = append(sellers, seller)
	}
	sort.Strings(sellers)

	started := make([]domain.Negotiation, 0, len(sellers))
	for _, seller := range sellers {
		n, err := s.StartNegotiation(ctx, buyer, groups[seller], address)
		if err != nil {
			return started, fmt.Errorf("s.StartNegotiation(seller=%s) -> %w", seller, err)
		}
		started = append(started, n)
	}

	return started, nil
}

// SetShippingCost lets the seller quote shipping; quoting again overwrites.
func (s *NegotiationService) SetShippingCost(ctx context.Context, negotiationID, seller string, quote ShippingQuote) (domain.Negotiation, error) {
	if quote.Cost < 0 {
		return domain.Negotiation{}, ErrInvalidAmount
	}

	var n domain.Negotiation

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.LockNegotiation(ctx, negotiationID)
		if err != nil {
			return err
		}
		if n.Seller != seller {
			return ErrUnauthorized
		}
		if err := n.SetShipping(quote.Cost, s.now()); err != nil {
			return err
		}
		n.DeliveryDate = quote.DeliveryDate
		n.DeliveryNotes = quote.Notes

		return tx.UpdateNegotiation(ctx, n)
	})
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	metrics.NegotiationTransitions.WithLabelValues(string(n.Status)).Inc()
	dispatch(ctx, s.notifier, []domain.Event{
		event(n.Buyer, domain.EventShippingSet, negotiationPayload(n)),
	})

	return n, nil
}

// ConfirmPurchase settles the negotiation: the buyer is debited and the seller
// credited in the same transaction that moves the negotiation to confirmed.
func (s *NegotiationService) ConfirmPurchase(ctx context.Context, negotiationID, buyer string) (domain.Negotiation, error) {
	var n domain.Negotiation

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.LockNegotiation(ctx, negotiationID)
		if err != nil {
			return err
		}
		if n.Buyer != buyer {
			return ErrUnauthorized
		}
		if n.Status != domain.NegotiationPriceSet {
			return ErrInvalidStateTransition
		}
		if n.Total < 0 {
			return ErrInvalidAmount
		}

		ids := make([]string, 0, len(n.Lines))
		for _, line := range n.Lines {
			ids = append(ids, line.ListingID)
		}
		for _, id := range sortedUnique(ids) {
			listing, err := tx.LockListing(ctx, id)
			if err != nil {
				if errors.Is(err, ErrListingNotFound) {
					return ErrListingNotPurchasable
				}
				return err
			}
			if listing.Status != domain.ListingApproved || listing.Owner != n.Seller {
				return ErrListingNotPurchasable
			}
		}

		now := s.now()
		ledger := newLedgerTx(tx, now)
		if err := ledger.lockAccounts(ctx, n.Buyer, n.Seller); err != nil {
			return err
		}
		if n.Total > 0 {
			if err := ledger.Debit(ctx, n.Buyer, n.Total, n.ID); err != nil {
				return err
			}
			if err := ledger.Credit(ctx, n.Seller, n.Total, n.ID); err != nil {
				return err
			}
		}
		if err := n.Transition(domain.NegotiationConfirmed, now); err != nil {
			return err
		}

		return tx.UpdateNegotiation(ctx, n)
	})
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	if n.Total > 0 {
		recordMovement(domain.EntryEscrowDebit, -n.Total)
		recordMovement(domain.EntryEscrowCredit, n.Total)
	}
	metrics.NegotiationTransitions.WithLabelValues(string(n.Status)).Inc()
	zap.L().Info("purchase settled",
		zap.String("negotiation_id", n.ID),
		zap.String("buyer", n.Buyer),
		zap.String("seller", n.Seller),
		zap.Int64("total", n.Total),
	)
	payload := negotiationPayload(n)
	dispatch(ctx, s.notifier, []domain.Event{
		event(n.Seller, domain.EventPurchaseConfirmed, payload),
		event(n.Buyer, domain.EventPurchaseConfirmed, payload),
	})

	return n, nil
}

func (s *NegotiationService) DeclinePurchase(ctx context.Context, negotiationID, buyer string) (domain.Negotiation, error) {
	n, err := s.buyerTransition(ctx, negotiationID, buyer, domain.NegotiationDeclined)
	if err != nil {
		return domain.Negotiation{}, err
	}

	dispatch(ctx, s.notifier, []domain.Event{
		event(n.Seller, domain.EventPurchaseDeclined, negotiationPayload(n)),
	})

	return n, nil
}

func (s *NegotiationService) AcknowledgeReceipt(ctx context.Context, negotiationID, buyer string) (domain.Negotiation, error) {
	n, err := s.buyerTransition(ctx, negotiationID, buyer, domain.NegotiationCompleted)
	if err != nil {
		return domain.Negotiation{}, err
	}

	dispatch(ctx, s.notifier, []domain.Event{
		event(n.Seller, domain.EventReceiptAcknowledged, negotiationPayload(n)),
	})

	return n, nil
}

func (s *NegotiationService) buyerTransition(ctx context.Context, negotiationID, buyer string, to domain.NegotiationStatus) (domain.Negotiation, error) {
	var n domain.Negotiation

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.LockNegotiation(ctx, negotiationID)
		if err != nil {
			return err
		}
		if n.Buyer != buyer {
			return ErrUnauthorized
		}
		if err := n.Transition(to, s.now()); err != nil {
			return err
		}

		return tx.UpdateNegotiation(ctx, n)
	})
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	metrics.NegotiationTransitions.WithLabelValues(string(to)).Inc()

	return n, nil
}

// CancelStale is the operator escape hatch for any open negotiation. A
// confirmed negotiation is refunded in the same transaction.
func (s *NegotiationService) CancelStale(ctx context.Context, negotiationID, reason string) (domain.Negotiation, error) {
	var n domain.Negotiation

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.LockNegotiation(ctx, negotiationID)
		if err != nil {
			return err
		}

		return s.cancel(ctx, tx, &n)
	})
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	recordCancel(n)
	zap.L().Warn("negotiation cancelled",
		zap.String("negotiation_id", n.ID),
		zap.Bool("refunded", n.Refunded),
		zap.Int64("total", n.Total),
		zap.String("reason", reason),
	)
	s.notifyCancelled(ctx, n, reason)

	return n, nil
}

// CancelExpired cancels created and price_set negotiations idle for longer than
// olderThan, one transaction each. Confirmed negotiations are never touched.
func (s *NegotiationService) CancelExpired(ctx context.Context, olderThan time.Duration) (int, error) {
	before := s.now().Add(-olderThan)

	var ids []string
	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		ids, err = tx.ListStaleNegotiations(ctx, before)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("s.tx.run -> %w", err)
	}

	cancelled := 0
	for _, id := range ids {
		var (
			n    domain.Negotiation
			done bool
		)
		err := s.tx.run(ctx, func(tx repository.Tx) error {
			done = false

			var err error
			n, err = tx.LockNegotiation(ctx, id)
			if err != nil {
				return err
			}
			if n.Status != domain.NegotiationCreated && n.Status != domain.NegotiationPriceSet {
				return nil
			}
			if !n.UpdatedAt.Before(before) {
				return nil
			}
			if err := s.cancel(ctx, tx, &n); err != nil {
				return err
			}
			done = true
			return nil
		})
		if err != nil {
			zap.L().Error("failed to cancel expired negotiation", zap.String("negotiation_id", id), zap.Error(err))
			continue
		}
		if done {
			cancelled++
			recordCancel(n)
			s.notifyCancelled(ctx, n, "expired")
		}
	}

	return cancelled, nil
}

func (s *NegotiationService) cancel(ctx context.Context, tx repository.Tx, n *domain.Negotiation) error {
	if !n.Status.CanTransitionTo(domain.NegotiationCancelled) {
		return ErrInvalidStateTransition
	}

	now := s.now()
	if n.Status == domain.NegotiationConfirmed {
		ledger := newLedgerTx(tx, now)
		if err := ledger.lockAccounts(ctx, n.Buyer, n.Seller); err != nil {
			return err
		}
		if n.Total < 0 {
			return ErrInvalidAmount
		}
		if n.Total > 0 {
			if err := ledger.Debit(ctx, n.Seller, n.Total, n.ID); err != nil {
				return err
			}
			if err := ledger.Credit(ctx, n.Buyer, n.Total, n.ID); err != nil {
				return err
			}
		}
		n.Refunded = true
	}
	if err := n.Transition(domain.NegotiationCancelled, now); err != nil {
		return err
	}

	return tx.UpdateNegotiation(ctx, *n)
}

func recordCancel(n domain.Negotiation) {
	if n.Refunded && n.Total > 0 {
		recordMovement(domain.EntryEscrowDebit, -n.Total)
		recordMovement(domain.EntryEscrowCredit, n.Total)
	}
	metrics.NegotiationTransitions.WithLabelValues(string(domain.NegotiationCancelled)).Inc()
}

func (s *NegotiationService) notifyCancelled(ctx context.Context, n domain.Negotiation, reason string) {
	payload := negotiationPayload(n)
	payload["reason"] = reason
	payload["refunded"] = strconv.FormatBool(n.Refunded)

	dispatch(ctx, s.notifier, []domain.Event{
		event(n.Buyer, domain.EventNegotiationCancelled, payload),
		event(n.Seller, domain.EventNegotiationCancelled, payload),
	})
}

// GetNegotiation returns the negotiation to its buyer, its seller or an admin.
func (s *NegotiationService) GetNegotiation(ctx context.Context, negotiationID, caller string, admin bool) (domain.Negotiation, error) {
	var n domain.Negotiation

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.GetNegotiation(ctx, negotiationID)
		return err
	})
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("s.tx.run -> %w", err)
	}
	if !admin && !n.IsParticipant(caller) {
		return domain.Negotiation{}, ErrUnauthorized
	}

	return n, nil
}

func (s *NegotiationService) ListNegotiations(ctx context.Context, identity string) ([]domain.Negotiation, error) {
	var ns []domain.Negotiation

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		ns, err = tx.ListNegotiations(ctx, identity)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("s.tx.run -> %w", err)
	}

	return ns, nil
}

func (s *NegotiationService) SendMessage(ctx context.Context, negotiationID, sender, body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, ErrEmptyMessage
	}

	var (
		msg domain.Message
		n   domain.Negotiation
	)

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.GetNegotiation(ctx, negotiationID)
		if err != nil {
			return err
		}
		if !n.IsParticipant(sender) {
			return ErrUnauthorized
		}

		msg = domain.Message{
			ID:            uuid.NewString(),
			NegotiationID: n.ID,
			Sender:        sender,
			Body:          body,
			CreatedAt:     s.now(),
		}
		return tx.InsertMessage(ctx, msg)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	recipient := n.Seller
	if sender == n.Seller {
		recipient = n.Buyer
	}
	dispatch(ctx, s.notifier, []domain.Event{
		event(recipient, domain.EventMessageSent, map[string]string{
			"negotiation_id": n.ID,
			"sender":         sender,
			"body":           body,
		}),
	})

	return msg, nil
}

func (s *NegotiationService) ListMessages(ctx context.Context, negotiationID, caller string) ([]domain.Message, error) {
	var msgs []domain.Message

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		n, err := tx.GetNegotiation(ctx, negotiationID)
		if err != nil {
			return err
		}
		if !n.IsParticipant(caller) {
			return ErrUnauthorized
		}

		msgs, err = tx.ListMessages(ctx, negotiationID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("s.tx.run -> %w", err)
	}

	return msgs, nil
}

func validateCart(lines []LineRequest, address string) error {
	if len(lines) == 0 {
		return ErrEmptyCart
	}
	if strings.TrimSpace(address) == "" {
		return ErrAddressRequired
	}
	for _, line := range lines {
		if line.Quantity <= 0 || line.Quantity > domain.MaxLineQuantity {
			return ErrInvalidAmount
		}
	}
	return nil
}

func negotiationPayload(n domain.Negotiation) map[string]string {
	payload := map[string]string{
		"negotiation_id": n.ID,
		"buyer":          n.Buyer,
		"seller":         n.Seller,
		"status":         string(n.Status),
		"subtotal":       strconv.FormatInt(n.Subtotal, 10),
		"total":          strconv.FormatInt(n.Total, 10),
		"address":        n.DeliveryAddress,
	}
	if n.ShippingCost != nil {
		payload["shipping"] = strconv.FormatInt(*n.ShippingCost, 10)
	}
	if n.DeliveryDate != nil {
		payload["delivery_date"] = n.DeliveryDate.Format("2006-01-02")
	}
	if n.DeliveryNotes != "" {
		payload["notes"] = n.DeliveryNotes
	}

	titles := make([]string, 0, len(n.Lines))
	for _, l := range n.Lines {
		titles = append(titles, fmt.Sprintf("%s x%d", l.Title, l.Quantity))
	}
	payload["items"] = strings.Join(titles, ", ")

	return payload
}
