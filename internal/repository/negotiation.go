package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/repository/dao"
)

func (r *txRepository) InsertNegotiation(ctx context.Context, n domain.Negotiation) error {
	if err := r.negotiations.Insert(ctx, negotiationDomainToDao(n)); err != nil {
		return fmt.Errorf("r.negotiations.Insert -> %w", err)
	}

	return nil
}

func (r *txRepository) GetNegotiation(ctx context.Context, id string) (domain.Negotiation, error) {
	found, err := r.negotiations.FindByID(ctx, id)
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("r.negotiations.FindByID -> %w", mapNotFound(err, domain.ErrNegotiationNotFound))
	}

	return negotiationDaoToDomain(found), nil
}

func (r *txRepository) LockNegotiation(ctx context.Context, id string) (domain.Negotiation, error) {
	found, err := r.negotiations.LockByID(ctx, id)
	if err != nil {
		return domain.Negotiation{}, fmt.Errorf("r.negotiations.LockByID -> %w", mapNotFound(err, domain.ErrNegotiationNotFound))
	}

	return negotiationDaoToDomain(found), nil
}

func (r *txRepository) UpdateNegotiation(ctx context.Context, n domain.Negotiation) error {
	row := negotiationDomainToDao(n)
	row.Lines = nil
	if err := r.negotiations.Update(ctx, row); err != nil {
		return fmt.Errorf("r.negotiations.Update -> %w", mapNotFound(err, domain.ErrNegotiationNotFound))
	}

	return nil
}

func (r *txRepository) ListNegotiations(ctx context.Context, identity string) ([]domain.Negotiation, error) {
	rows, err := r.negotiations.FindByParticipant(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("r.negotiations.FindByParticipant -> %w", err)
	}

	ns := make([]domain.Negotiation, 0, len(rows))
	for _, row := range rows {
		ns = append(ns, negotiationDaoToDomain(row))
	}

	return ns, nil
}

func (r *txRepository) ListStaleNegotiations(ctx context.Context, before time.Time) ([]string, error) {
	statuses := []string{string(domain.NegotiationCreated), string(domain.NegotiationPriceSet)}

	ids, err := r.negotiations.FindStaleIDs(ctx, statuses, before)
	if err != nil {
		return nil, fmt.Errorf("r.negotiations.FindStaleIDs -> %w", err)
	}

	return ids, nil
}

func (r *txRepository) InsertMessage(ctx context.Context, m domain.Message) error {
	row := dao.NegotiationMessage{
		ID:            m.ID,
		NegotiationID: m.NegotiationID,
		Sender:        m.Sender,
		Body:          m.Body,
		CreatedAt:     m.CreatedAt,
	}
	if err := r.negotiations.InsertMessage(ctx, row); err != nil {
		return fmt.Errorf("r.negotiations.InsertMessage -> %w", err)
	}

	return nil
}

func (r *txRepository) ListMessages(ctx context.Context, negotiationID string) ([]domain.Message, error) {
	rows, err := r.negotiations.FindMessages(ctx, negotiationID)
	if err != nil {
		return nil, fmt.Errorf("r.negotiations.FindMessages -> %w", err)
	}

	msgs := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, domain.Message{
			ID:            row.ID,
			NegotiationID: row.NegotiationID,
			Sender:        row.Sender,
			Body:          row.Body,
			CreatedAt:     row.CreatedAt,
		})
	}

	return msgs, nil
}

func negotiationDomainToDao(n domain.Negotiation) dao.Negotiation {
	lines := make([]dao.NegotiationLine, 0, len(n.Lines))
	for _, l := range n.Lines {
		lines = append(lines, dao.NegotiationLine{
			NegotiationID: n.ID,
			ListingID:     l.ListingID,
			Title:         l.Title,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
		})
	}

	return dao.Negotiation{
		ID:              n.ID,
		Buyer:           n.Buyer,
		Seller:          n.Seller,
		Lines:           lines,
		Subtotal:        n.Subtotal,
		ShippingCost:    n.ShippingCost,
		Total:           n.Total,
		Status:          string(n.Status),
		DeliveryAddress: n.DeliveryAddress,
		DeliveryDate:    n.DeliveryDate,
		DeliveryNotes:   n.DeliveryNotes,
		Refunded:        n.Refunded,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
		PriceSetAt:      n.PriceSetAt,
		ConfirmedAt:     n.ConfirmedAt,
		DeclinedAt:      n.DeclinedAt,
		CompletedAt:     n.CompletedAt,
		CancelledAt:     n.CancelledAt,
	}
}

func negotiationDaoToDomain(n dao.Negotiation) domain.Negotiation {
	lines := make([]domain.NegotiationLine, 0, len(n.Lines))
	for _, l := range n.Lines {
		lines = append(lines, domain.NegotiationLine{
			ListingID: l.ListingID,
			Title:     l.Title,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	return domain.Negotiation{
		ID:              n.ID,
		Buyer:           n.Buyer,
		Seller:          n.Seller,
		Lines:           lines,
		Subtotal:        n.Subtotal,
		ShippingCost:    n.ShippingCost,
		Total:           n.Total,
		Status:          domain.NegotiationStatus(n.Status),
		DeliveryAddress: n.DeliveryAddress,
		DeliveryDate:    n.DeliveryDate,
		DeliveryNotes:   n.DeliveryNotes,
		Refunded:        n.Refunded,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
		PriceSetAt:      n.PriceSetAt,
		ConfirmedAt:     n.ConfirmedAt,
		DeclinedAt:      n.DeclinedAt,
		CompletedAt:     n.CompletedAt,
		CancelledAt:     n.CancelledAt,
	}
}
