package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type TopUpRequest struct {
	Amount int64 `json:"amount"`
}

func (req *TopUpRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Amount, validation.Required, validation.Min(int64(1))),
	)
}

type ProofRequest struct {
	DocumentRef string `json:"document_ref"`
}

func (req *ProofRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.DocumentRef, validation.Required, validation.Length(1, 255)),
	)
}

type SetBalanceRequest struct {
	Balance int64  `json:"balance"`
	Reason  string `json:"reason"`
}

func (req *SetBalanceRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Balance, validation.Min(int64(0))),
		validation.Field(&req.Reason, validation.Required, validation.Length(1, 255)),
	)
}

type AdjustBalanceRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

func (req *AdjustBalanceRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Delta, validation.Required),
		validation.Field(&req.Reason, validation.Required, validation.Length(1, 255)),
	)
}
