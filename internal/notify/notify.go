// Package notify turns committed marketplace events into WhatsApp
// click-to-chat links and, when a broker is configured, queues them for
// delivery.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glory2yahpub/marketplace/internal/domain"
)

var (
	ErrUnknownEvent = errors.New("unknown event kind")
	ErrNoRecipient  = errors.New("no recipient number")
)

// Message is the payload queued for delivery workers.
type Message struct {
	To        string            `json:"to"`
	Kind      domain.EventKind  `json:"kind"`
	Text      string            `json:"text"`
	Link      string            `json:"link"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type WhatsApp struct {
	admin     string
	publisher Publisher
	now       func() time.Time
}

// NewWhatsApp returns a notifier that routes admin events to adminNumber.
// publisher may be nil, in which case only the link is built.
func NewWhatsApp(adminNumber string, publisher Publisher) *WhatsApp {
	return &WhatsApp{
		admin:     adminNumber,
		publisher: publisher,
		now:       time.Now,
	}
}

// Notify renders the event and returns the click-to-chat link for it. The
// link is returned even when queueing fails.
func (w *WhatsApp) Notify(ctx context.Context, recipient string, kind domain.EventKind, payload map[string]string) (string, error) {
	to := recipient
	if to == domain.AdminRecipient {
		to = w.admin
	}
	if to == "" {
		return "", ErrNoRecipient
	}

	text, err := Render(kind, payload)
	if err != nil {
		return "", err
	}
	link := ContactLink(to, text)

	if w.publisher == nil {
		return link, nil
	}

	err = w.publisher.Publish(ctx, Message{
		To:        to,
		Kind:      kind,
		Text:      text,
		Link:      link,
		Payload:   payload,
		CreatedAt: w.now(),
	})
	if err != nil {
		return link, fmt.Errorf("w.publisher.Publish -> %w", err)
	}

	return link, nil
}
