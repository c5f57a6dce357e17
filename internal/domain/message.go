package domain

import "time"

type Message struct {
	ID            string    `json:"id"`
	NegotiationID string    `json:"negotiation_id"`
	Sender        string    `json:"sender"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
}
