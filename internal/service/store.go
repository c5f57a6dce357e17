package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/metrics"
	"github.com/glory2yahpub/marketplace/internal/repository"
)

var (
	ErrInvalidAmount          = domain.ErrInvalidAmount
	ErrInsufficientBalance    = domain.ErrInsufficientBalance
	ErrRequestNotFound        = domain.ErrRequestNotFound
	ErrRequestNotPending      = domain.ErrRequestNotPending
	ErrAlreadyApproved        = domain.ErrAlreadyApproved
	ErrProofMissing           = domain.ErrProofMissing
	ErrAccountNotFound        = domain.ErrAccountNotFound
	ErrListingNotFound        = domain.ErrListingNotFound
	ErrListingNotPurchasable  = domain.ErrListingNotPurchasable
	ErrListingNotEligible     = domain.ErrListingNotEligible
	ErrNegotiationNotFound    = domain.ErrNegotiationNotFound
	ErrInvalidStateTransition = domain.ErrInvalidStateTransition
	ErrUnauthorized           = domain.ErrUnauthorized
	ErrMixedSellers           = domain.ErrMixedSellers
	ErrInsufficientSupply     = domain.ErrInsufficientSupply
	ErrBatchNotFound          = domain.ErrBatchNotFound
	ErrReasonRequired         = domain.ErrReasonRequired
	ErrAddressRequired        = domain.ErrAddressRequired
	ErrEmptyCart              = domain.ErrEmptyCart
	ErrEmptyMessage           = domain.ErrEmptyMessage
	ErrInvalidListing         = domain.ErrInvalidListing
)

// Store opens transactions over the marketplace tables.
type Store interface {
	Atomic(ctx context.Context, fn func(tx repository.Tx) error) error
}

// Notifier delivers a committed event and returns the contact link it built.
type Notifier interface {
	Notify(ctx context.Context, recipient string, kind domain.EventKind, payload map[string]string) (string, error)
}

type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 20 * time.Millisecond,
	}
}

type txRunner struct {
	store Store
	retry RetryPolicy
}

// run executes fn in one transaction, re-running the whole transaction when the
// store reports a transient failure. Business errors are returned as is.
func (r txRunner) run(ctx context.Context, fn func(tx repository.Tx) error) error {
	attempts := r.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.retry.InitialInterval
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = backoff.DefaultInitialInterval
	}
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	op := func() error {
		err := r.store.Atomic(ctx, fn)
		if err != nil && !repository.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.TxRetries.Inc()
		zap.L().Warn("retrying transaction", zap.Error(err), zap.Duration("wait", wait))
	}

	return backoff.RetryNotify(op, policy, notify)
}

// dispatch hands committed events to the notifier. Failures are logged only.
func dispatch(ctx context.Context, n Notifier, events []domain.Event) {
	if n == nil {
		return
	}

	for _, e := range events {
		link, err := n.Notify(ctx, e.Recipient, e.Kind, e.Payload)
		if err != nil {
			metrics.NotificationFailures.WithLabelValues(string(e.Kind)).Inc()
			zap.L().Error("notification failed",
				zap.String("kind", string(e.Kind)),
				zap.String("recipient", e.Recipient),
				zap.Error(err),
			)
			continue
		}
		zap.L().Debug("notification sent", zap.String("kind", string(e.Kind)), zap.String("link", link))
	}
}

func event(recipient string, kind domain.EventKind, payload map[string]string) domain.Event {
	return domain.Event{
		Recipient: recipient,
		Kind:      kind,
		Payload:   payload,
	}
}
