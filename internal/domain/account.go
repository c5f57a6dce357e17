package domain

import (
	"math"
	"time"
)

type Account struct {
	Identity  string    `json:"identity"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Debit removes amount from the balance, refusing to go below zero.
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Balance < amount {
		return ErrInsufficientBalance
	}
	a.Balance -= amount

	return nil
}

func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	balance, err := AddAmounts(a.Balance, amount)
	if err != nil {
		return err
	}
	a.Balance = balance

	return nil
}

// Adjust applies a signed operator correction.
func (a *Account) Adjust(delta int64) error {
	if delta == 0 {
		return ErrInvalidAmount
	}
	if delta > 0 && a.Balance > math.MaxInt64-delta {
		return ErrInvalidAmount
	}
	if a.Balance+delta < 0 {
		return ErrInsufficientBalance
	}
	a.Balance += delta

	return nil
}

type TopUpState string

const (
	TopUpPending  TopUpState = "pending"
	TopUpApproved TopUpState = "approved"
	TopUpRejected TopUpState = "rejected"
)

type TopUpRequest struct {
	ID        string     `json:"id"`
	Identity  string     `json:"identity"`
	Amount    int64      `json:"amount"`
	State     TopUpState `json:"state"`
	ProofRef  string     `json:"proof_ref,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

func (r *TopUpRequest) AttachProof(ref string) error {
	if ref == "" {
		return ErrProofMissing
	}
	if r.State != TopUpPending {
		return ErrRequestNotPending
	}
	r.ProofRef = ref

	return nil
}

func (r *TopUpRequest) Approve(now time.Time) error {
	switch r.State {
	case TopUpApproved:
		return ErrAlreadyApproved
	case TopUpRejected:
		return ErrRequestNotPending
	}
	if r.ProofRef == "" {
		return ErrProofMissing
	}
	r.State = TopUpApproved
	r.DecidedAt = &now

	return nil
}

// Reject reports whether the request changed; rejecting twice is a no-op.
func (r *TopUpRequest) Reject(now time.Time) (bool, error) {
	switch r.State {
	case TopUpRejected:
		return false, nil
	case TopUpApproved:
		return false, ErrRequestNotPending
	}
	r.State = TopUpRejected
	r.DecidedAt = &now

	return true, nil
}

type EntryKind string

const (
	EntryTopUp           EntryKind = "top_up"
	EntryEscrowDebit     EntryKind = "escrow_debit"
	EntryEscrowCredit    EntryKind = "escrow_credit"
	EntryAdminAdjustment EntryKind = "admin_adjustment"
)

type LedgerEntry struct {
	ID           string    `json:"id"`
	Identity     string    `json:"identity"`
	Delta        int64     `json:"delta"`
	BalanceAfter int64     `json:"balance_after"`
	Kind         EntryKind `json:"kind"`
	Reference    string    `json:"reference,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
