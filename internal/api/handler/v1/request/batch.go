package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type AddBatchListingRequest struct {
	ListingID string `json:"listing_id"`
}

func (req *AddBatchListingRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.ListingID, validation.Required),
	)
}
