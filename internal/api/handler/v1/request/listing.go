package request

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/glory2yahpub/marketplace/internal/domain"
)

var errPriceRequired = errors.New("price: a sell listing needs a price")

type CreateListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	Kind        string   `json:"kind"`
	Price       *int64   `json:"price"`
}

func (req *CreateListingRequest) Validate() error {
	err := validation.ValidateStruct(
		req,
		validation.Field(&req.Title, validation.Required, validation.Length(2, 120)),
		validation.Field(&req.Description, validation.Length(0, 2000)),
		validation.Field(&req.Images, validation.Length(0, 10)),
		validation.Field(&req.Kind, validation.Required, validation.In(string(domain.ListingSell), string(domain.ListingPromo))),
		validation.Field(&req.Price, validation.Min(int64(0))),
	)
	if err != nil {
		return err
	}

	if req.Kind == string(domain.ListingSell) && req.Price == nil {
		return errPriceRequired
	}

	return nil
}

type UpdatePriceRequest struct {
	Price int64 `json:"price"`
}

func (req *UpdatePriceRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Price, validation.Min(int64(0))),
	)
}
