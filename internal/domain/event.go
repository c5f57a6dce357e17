package domain

type EventKind string

const (
	EventTopUpRequested       EventKind = "top_up_requested"
	EventTopUpApproved        EventKind = "top_up_approved"
	EventTopUpRejected        EventKind = "top_up_rejected"
	EventBalanceAdjusted      EventKind = "balance_adjusted"
	EventNegotiationStarted   EventKind = "negotiation_started"
	EventShippingSet          EventKind = "shipping_set"
	EventPurchaseConfirmed    EventKind = "purchase_confirmed"
	EventPurchaseDeclined     EventKind = "purchase_declined"
	EventReceiptAcknowledged  EventKind = "receipt_acknowledged"
	EventNegotiationCancelled EventKind = "negotiation_cancelled"
	EventMessageSent          EventKind = "message_sent"
	EventListingApproved      EventKind = "listing_approved"
	EventListingRejected      EventKind = "listing_rejected"
	EventBatchCreated         EventKind = "batch_created"
	EventBatchRepaired        EventKind = "batch_repaired"
	EventBatchDeleted         EventKind = "batch_deleted"
)

// AdminRecipient addresses an event to the configured operator contact.
const AdminRecipient = "admin"

// Event is a committed state change addressed to one recipient.
type Event struct {
	Recipient string            `json:"recipient"`
	Kind      EventKind         `json:"kind"`
	Payload   map[string]string `json:"payload"`
}
