package response

import "github.com/glory2yahpub/marketplace/internal/domain"

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type TopUpCreated struct {
	RequestID string `json:"request_id"`
}

type PartialCheckout struct {
	Negotiations []domain.Negotiation `json:"negotiations"`
	Error        *Err                 `json:"error"`
}
