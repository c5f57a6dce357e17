package request

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/glory2yahpub/marketplace/internal/domain"
)

const dateLayout = "2006-01-02"

type CartLine struct {
	ListingID string `json:"listing_id"`
	Quantity  int64  `json:"quantity"`
}

func (l CartLine) Validate() error {
	return validation.ValidateStruct(
		&l,
		validation.Field(&l.ListingID, validation.Required),
		validation.Field(&l.Quantity, validation.Required, validation.Min(int64(1)), validation.Max(int64(domain.MaxLineQuantity))),
	)
}

type CheckoutRequest struct {
	Lines   []CartLine `json:"lines"`
	Address string     `json:"address"`
}

func (req *CheckoutRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Lines, validation.Required, validation.Length(1, 50)),
		validation.Field(&req.Address, validation.Required, validation.Length(3, 500)),
	)
}

type ShippingRequest struct {
	Cost         int64  `json:"cost"`
	DeliveryDate string `json:"delivery_date" format:"YYYY-MM-DD"`
	Notes        string `json:"notes"`
}

func (req *ShippingRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Cost, validation.Min(int64(0))),
		validation.Field(&req.DeliveryDate, validation.Date(dateLayout)),
		validation.Field(&req.Notes, validation.Length(0, 500)),
	)
}

// ParsedDeliveryDate returns nil when no date was given. Call after Validate.
func (req *ShippingRequest) ParsedDeliveryDate() *time.Time {
	if req.DeliveryDate == "" {
		return nil
	}
	d, err := time.Parse(dateLayout, req.DeliveryDate)
	if err != nil {
		return nil
	}

	return &d
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

func (req *CancelRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Reason, validation.Required, validation.Length(1, 255)),
	)
}

type MessageRequest struct {
	Body string `json:"body"`
}

func (req *MessageRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Body, validation.Required, validation.Length(1, 2000)),
	)
}
