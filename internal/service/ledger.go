package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/metrics"
	"github.com/glory2yahpub/marketplace/internal/repository"
)

type LedgerService struct {
	tx       txRunner
	notifier Notifier
	now      func() time.Time
}

func NewLedgerService(store Store, notifier Notifier, retry RetryPolicy) *LedgerService {
	return &LedgerService{
		tx:       txRunner{store: store, retry: retry},
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *LedgerService) GetOrCreateAccount(ctx context.Context, identity string) (domain.Account, error) {
	var account domain.Account

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		if err := tx.EnsureAccount(ctx, identity); err != nil {
			return err
		}

		var err error
		account, err = tx.GetAccount(ctx, identity)
		return err
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	return account, nil
}

func (s *LedgerService) GetAccount(ctx context.Context, identity string) (domain.Account, error) {
	var account domain.Account

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		account, err = tx.GetAccount(ctx, identity)
		return err
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	return account, nil
}

// RequestTopUp records a pending request to add amount credits to identity.
func (s *LedgerService) RequestTopUp(ctx context.Context, identity string, amount int64) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}

	req := domain.TopUpRequest{
		ID:       uuid.NewString(),
		Identity: identity,
		Amount:   amount,
		State:    domain.TopUpPending,
	}

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		if err := tx.EnsureAccount(ctx, identity); err != nil {
			return err
		}

		req.CreatedAt = s.now()
		return tx.InsertTopUp(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("s.tx.run -> %w", err)
	}

	dispatch(ctx, s.notifier, []domain.Event{
		event(domain.AdminRecipient, domain.EventTopUpRequested, map[string]string{
			"request_id": req.ID,
			"identity":   identity,
			"amount":     strconv.FormatInt(amount, 10),
		}),
	})

	return req.ID, nil
}

func (s *LedgerService) AttachProof(ctx context.Context, identity, requestID, documentRef string) error {
	err := s.tx.run(ctx, func(tx repository.Tx) error {
		req, err := tx.LockTopUp(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Identity != identity {
			return ErrRequestNotFound
		}
		if err := req.AttachProof(documentRef); err != nil {
			return err
		}

		return tx.UpdateTopUp(ctx, req)
	})
	if err != nil {
		return fmt.Errorf("s.tx.run -> %w", err)
	}

	return nil
}

// ApproveTopUp credits the requested amount exactly once.
func (s *LedgerService) ApproveTopUp(ctx context.Context, requestID string) (domain.Account, error) {
	var (
		account domain.Account
		req     domain.TopUpRequest
	)

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		req, err = tx.LockTopUp(ctx, requestID)
		if err != nil {
			return err
		}
		if err := req.Approve(s.now()); err != nil {
			return err
		}
		if err := tx.UpdateTopUp(ctx, req); err != nil {
			return err
		}

		if err := tx.EnsureAccount(ctx, req.Identity); err != nil {
			return err
		}
		account, err = newLedgerTx(tx, s.now()).apply(ctx, req.Identity, req.Amount, domain.EntryTopUp, req.ID, "")
		return err
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	recordMovement(domain.EntryTopUp, req.Amount)
	zap.L().Info("top-up approved",
		zap.String("request_id", req.ID),
		zap.String("identity", req.Identity),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance", account.Balance),
	)
	dispatch(ctx, s.notifier, []domain.Event{
		event(req.Identity, domain.EventTopUpApproved, map[string]string{
			"request_id": req.ID,
			"amount":     strconv.FormatInt(req.Amount, 10),
			"balance":    strconv.FormatInt(account.Balance, 10),
		}),
	})

	return account, nil
}

// RejectTopUp is a no-op for requests that are already rejected.
func (s *LedgerService) RejectTopUp(ctx context.Context, requestID string) error {
	var (
		req     domain.TopUpRequest
		changed bool
	)

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		req, err = tx.LockTopUp(ctx, requestID)
		if err != nil {
			return err
		}
		changed, err = req.Reject(s.now())
		if err != nil || !changed {
			return err
		}

		return tx.UpdateTopUp(ctx, req)
	})
	if err != nil {
		return fmt.Errorf("s.tx.run -> %w", err)
	}

	if changed {
		dispatch(ctx, s.notifier, []domain.Event{
			event(req.Identity, domain.EventTopUpRejected, map[string]string{
				"request_id": req.ID,
				"amount":     strconv.FormatInt(req.Amount, 10),
			}),
		})
	}

	return nil
}

// AdminSetBalance overwrites the balance of identity, recording the difference.
func (s *LedgerService) AdminSetBalance(ctx context.Context, identity string, newBalance int64, reason string) (domain.Account, error) {
	if newBalance < 0 {
		return domain.Account{}, ErrInvalidAmount
	}
	if reason == "" {
		return domain.Account{}, ErrReasonRequired
	}

	var (
		account domain.Account
		delta   int64
	)

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		if err := tx.EnsureAccount(ctx, identity); err != nil {
			return err
		}
		current, err := tx.LockAccount(ctx, identity)
		if err != nil {
			return err
		}

		delta = newBalance - current.Balance
		if delta == 0 {
			account = current
			return nil
		}
		account, err = newLedgerTx(tx, s.now()).apply(ctx, identity, delta, domain.EntryAdminAdjustment, "", reason)
		return err
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	if delta != 0 {
		recordMovement(domain.EntryAdminAdjustment, delta)
	}
	s.logAdjustment(ctx, identity, delta, account.Balance, reason)

	return account, nil
}

func (s *LedgerService) AdminAdjust(ctx context.Context, identity string, delta int64, reason string) (domain.Account, error) {
	if delta == 0 {
		return domain.Account{}, ErrInvalidAmount
	}
	if reason == "" {
		return domain.Account{}, ErrReasonRequired
	}

	var account domain.Account

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		if err := tx.EnsureAccount(ctx, identity); err != nil {
			return err
		}

		var err error
		account, err = newLedgerTx(tx, s.now()).apply(ctx, identity, delta, domain.EntryAdminAdjustment, "", reason)
		return err
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("s.tx.run -> %w", err)
	}

	recordMovement(domain.EntryAdminAdjustment, delta)
	s.logAdjustment(ctx, identity, delta, account.Balance, reason)

	return account, nil
}

func (s *LedgerService) logAdjustment(ctx context.Context, identity string, delta, balance int64, reason string) {
	zap.L().Warn("balance overridden by operator",
		zap.String("identity", identity),
		zap.Int64("delta", delta),
		zap.Int64("balance", balance),
		zap.String("reason", reason),
	)
	if delta == 0 {
		return
	}

	dispatch(ctx, s.notifier, []domain.Event{
		event(identity, domain.EventBalanceAdjusted, map[string]string{
			"delta":   strconv.FormatInt(delta, 10),
			"balance": strconv.FormatInt(balance, 10),
			"reason":  reason,
		}),
	})
}

func (s *LedgerService) ListTopUps(ctx context.Context, identity string) ([]domain.TopUpRequest, error) {
	var reqs []domain.TopUpRequest

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		reqs, err = tx.ListTopUps(ctx, identity)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("s.tx.run -> %w", err)
	}

	return reqs, nil
}

func (s *LedgerService) ListPendingTopUps(ctx context.Context) ([]domain.TopUpRequest, error) {
	var reqs []domain.TopUpRequest

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		reqs, err = tx.ListTopUpsByState(ctx, domain.TopUpPending)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("s.tx.run -> %w", err)
	}

	return reqs, nil
}

func (s *LedgerService) ListEntries(ctx context.Context, identity string) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry

	err := s.tx.run(ctx, func(tx repository.Tx) error {
		var err error
		entries, err = tx.ListEntries(ctx, identity)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("s.tx.run -> %w", err)
	}

	return entries, nil
}

// ledgerTx moves credits inside a transaction owned by the caller. It is the
// only path through which escrow debits and credits are written.
type ledgerTx struct {
	tx  repository.Tx
	now time.Time
}

func newLedgerTx(tx repository.Tx, now time.Time) ledgerTx {
	return ledgerTx{tx: tx, now: now}
}

func (l ledgerTx) Debit(ctx context.Context, identity string, amount int64, reference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	_, err := l.apply(ctx, identity, -amount, domain.EntryEscrowDebit, reference, "")
	return err
}

func (l ledgerTx) Credit(ctx context.Context, identity string, amount int64, reference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	_, err := l.apply(ctx, identity, amount, domain.EntryEscrowCredit, reference, "")
	return err
}

// lockAccounts takes row locks in ascending identity order.
func (l ledgerTx) lockAccounts(ctx context.Context, identities ...string) error {
	for _, identity := range sortedUnique(identities) {
		if err := l.tx.EnsureAccount(ctx, identity); err != nil {
			return err
		}
		if _, err := l.tx.LockAccount(ctx, identity); err != nil {
			return err
		}
	}
	return nil
}

func (l ledgerTx) apply(ctx context.Context, identity string, delta int64, kind domain.EntryKind, reference, reason string) (domain.Account, error) {
	account, err := l.tx.LockAccount(ctx, identity)
	if err != nil {
		return domain.Account{}, err
	}

	switch {
	case kind == domain.EntryAdminAdjustment:
		err = account.Adjust(delta)
	case delta < 0:
		err = account.Debit(-delta)
	default:
		err = account.Credit(delta)
	}
	if err != nil {
		return domain.Account{}, err
	}

	if err := l.tx.UpdateBalance(ctx, identity, account.Balance); err != nil {
		return domain.Account{}, err
	}
	entry := domain.LedgerEntry{
		ID:           uuid.NewString(),
		Identity:     identity,
		Delta:        delta,
		BalanceAfter: account.Balance,
		Kind:         kind,
		Reference:    reference,
		Reason:       reason,
		CreatedAt:    l.now,
	}
	if err := l.tx.AppendEntry(ctx, entry); err != nil {
		return domain.Account{}, err
	}

	return account, nil
}

// recordMovement counts a committed ledger entry.
func recordMovement(kind domain.EntryKind, delta int64) {
	metrics.LedgerMovements.WithLabelValues(string(kind)).Inc()
	metrics.LedgerCredits.WithLabelValues(string(kind)).Add(float64(abs(delta)))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
