package domain

import (
	"time"
)

const DefaultBatchSize = 5

type BatchDisplay struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Images      []string `json:"images"`
}

type Batch struct {
	ID           string       `json:"id"`
	Members      []string     `json:"members"` // listing ids ordered by position
	Display      BatchDisplay `json:"display"`
	ShareCount   int64        `json:"share_count"`
	ClickRewards int64        `json:"click_rewards"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (b Batch) Position(listingID string) int {
	for i, id := range b.Members {
		if id == listingID {
			return i
		}
	}
	return -1
}
