package domain

import "errors"

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrRequestNotFound        = errors.New("top-up request not found")
	ErrRequestNotPending      = errors.New("top-up request is not pending")
	ErrAlreadyApproved        = errors.New("top-up request already approved")
	ErrProofMissing           = errors.New("top-up request has no proof document")
	ErrAccountNotFound        = errors.New("account not found")
	ErrListingNotFound        = errors.New("listing not found")
	ErrListingNotPurchasable  = errors.New("listing not purchasable")
	ErrListingNotEligible     = errors.New("listing not eligible for batching")
	ErrNegotiationNotFound    = errors.New("negotiation not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrMixedSellers           = errors.New("negotiation lines belong to more than one seller")
	ErrInsufficientSupply     = errors.New("not enough approved listings to fill a batch")
	ErrBatchNotFound          = errors.New("batch not found")
	ErrReasonRequired         = errors.New("a reason is required for balance overrides")
	ErrAddressRequired        = errors.New("delivery address is required")
	ErrEmptyCart              = errors.New("no lines to negotiate")
	ErrEmptyMessage           = errors.New("message body is empty")
	ErrInvalidListing         = errors.New("invalid listing")
)
