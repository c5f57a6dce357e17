package repository

import (
	"context"
	"fmt"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/repository/dao"
)

func (r *txRepository) EnsureAccount(ctx context.Context, identity string) error {
	if err := r.accounts.Ensure(ctx, identity); err != nil {
		return fmt.Errorf("r.accounts.Ensure -> %w", err)
	}

	return nil
}

func (r *txRepository) GetAccount(ctx context.Context, identity string) (domain.Account, error) {
	found, err := r.accounts.FindByIdentity(ctx, identity)
	if err != nil {
		return domain.Account{}, fmt.Errorf("r.accounts.FindByIdentity -> %w", mapNotFound(err, domain.ErrAccountNotFound))
	}

	return accountDaoToDomain(found), nil
}

func (r *txRepository) LockAccount(ctx context.Context, identity string) (domain.Account, error) {
	found, err := r.accounts.LockByIdentity(ctx, identity)
	if err != nil {
		return domain.Account{}, fmt.Errorf("r.accounts.LockByIdentity -> %w", mapNotFound(err, domain.ErrAccountNotFound))
	}

	return accountDaoToDomain(found), nil
}

func (r *txRepository) UpdateBalance(ctx context.Context, identity string, balance int64) error {
	if err := r.accounts.UpdateBalance(ctx, identity, balance); err != nil {
		return fmt.Errorf("r.accounts.UpdateBalance -> %w", mapNotFound(err, domain.ErrAccountNotFound))
	}

	return nil
}

func (r *txRepository) AppendEntry(ctx context.Context, entry domain.LedgerEntry) error {
	row := dao.LedgerEntry{
		ID:           entry.ID,
		Identity:     entry.Identity,
		Delta:        entry.Delta,
		BalanceAfter: entry.BalanceAfter,
		Kind:         string(entry.Kind),
		Reference:    entry.Reference,
		Reason:       entry.Reason,
		CreatedAt:    entry.CreatedAt,
	}
	if err := r.accounts.InsertEntry(ctx, row); err != nil {
		return fmt.Errorf("r.accounts.InsertEntry -> %w", err)
	}

	return nil
}

func (r *txRepository) ListEntries(ctx context.Context, identity string) ([]domain.LedgerEntry, error) {
	rows, err := r.accounts.FindEntries(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("r.accounts.FindEntries -> %w", err)
	}

	entries := make([]domain.LedgerEntry, 0, len(rows))
	for _, e := range rows {
		entries = append(entries, domain.LedgerEntry{
			ID:           e.ID,
			Identity:     e.Identity,
			Delta:        e.Delta,
			BalanceAfter: e.BalanceAfter,
			Kind:         domain.EntryKind(e.Kind),
			Reference:    e.Reference,
			Reason:       e.Reason,
			CreatedAt:    e.CreatedAt,
		})
	}

	return entries, nil
}

func (r *txRepository) InsertTopUp(ctx context.Context, req domain.TopUpRequest) error {
	if err := r.accounts.InsertTopUp(ctx, topUpDomainToDao(req)); err != nil {
		return fmt.Errorf("r.accounts.InsertTopUp -> %w", err)
	}

	return nil
}

func (r *txRepository) LockTopUp(ctx context.Context, id string) (domain.TopUpRequest, error) {
	found, err := r.accounts.LockTopUp(ctx, id)
	if err != nil {
		return domain.TopUpRequest{}, fmt.Errorf("r.accounts.LockTopUp -> %w", mapNotFound(err, domain.ErrRequestNotFound))
	}

	return topUpDaoToDomain(found), nil
}

func (r *txRepository) UpdateTopUp(ctx context.Context, req domain.TopUpRequest) error {
	if err := r.accounts.UpdateTopUp(ctx, topUpDomainToDao(req)); err != nil {
		return fmt.Errorf("r.accounts.UpdateTopUp -> %w", err)
	}

	return nil
}

func (r *txRepository) ListTopUps(ctx context.Context, identity string) ([]domain.TopUpRequest, error) {
	rows, err := r.accounts.FindTopUps(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("r.accounts.FindTopUps -> %w", err)
	}

	return topUpsDaoToDomain(rows), nil
}

func (r *txRepository) ListTopUpsByState(ctx context.Context, state domain.TopUpState) ([]domain.TopUpRequest, error) {
	rows, err := r.accounts.FindTopUpsByState(ctx, string(state))
	if err != nil {
		return nil, fmt.Errorf("r.accounts.FindTopUpsByState -> %w", err)
	}

	return topUpsDaoToDomain(rows), nil
}

func accountDaoToDomain(a dao.Account) domain.Account {
	return domain.Account{
		Identity:  a.Identity,
		Balance:   a.Balance,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func topUpDomainToDao(r domain.TopUpRequest) dao.TopUpRequest {
	return dao.TopUpRequest{
		ID:        r.ID,
		Identity:  r.Identity,
		Amount:    r.Amount,
		State:     string(r.State),
		ProofRef:  r.ProofRef,
		CreatedAt: r.CreatedAt,
		DecidedAt: r.DecidedAt,
	}
}

func topUpDaoToDomain(r dao.TopUpRequest) domain.TopUpRequest {
	return domain.TopUpRequest{
		ID:        r.ID,
		Identity:  r.Identity,
		Amount:    r.Amount,
		State:     domain.TopUpState(r.State),
		ProofRef:  r.ProofRef,
		CreatedAt: r.CreatedAt,
		DecidedAt: r.DecidedAt,
	}
}

func topUpsDaoToDomain(rows []dao.TopUpRequest) []domain.TopUpRequest {
	reqs := make([]domain.TopUpRequest, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, topUpDaoToDomain(row))
	}
	return reqs
}
