package webhook

import (
	"database/sql"
	"time"
)

// Status is the processing state of a delivered event.
type Status string

const (
	StatusReceived Status = "received"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// Record represents stripe_webhook_events, keyed uniquely by EventID.
type Record struct {
	EventID     string
	EventType   sql.NullString
	Status      Status
	ReceivedAt  time.Time
	ProcessedAt sql.NullTime
	Error       sql.NullString
}

// Kind is the closed set of event types the processor acts on.
type Kind int

const (
	KindUnknown Kind = iota
	KindCheckoutCompleted
	KindInvoicePaymentSucceeded
	KindSubscriptionDeleted
)

const (
	TypeCheckoutCompleted       = "checkout.session.completed"
	TypeInvoicePaymentSucceeded = "invoice.payment_succeeded"
	TypeSubscriptionDeleted     = "customer.subscription.deleted"
)

// KindOf maps a provider event type to its Kind. Anything unlisted is KindUnknown.
func KindOf(eventType string) Kind {
	switch eventType {
	case TypeCheckoutCompleted:
		return KindCheckoutCompleted
	case TypeInvoicePaymentSucceeded:
		return KindInvoicePaymentSucceeded
	case TypeSubscriptionDeleted:
		return KindSubscriptionDeleted
	default:
		return KindUnknown
	}
}

// Event is a provider notification reduced to the fields the processor reads.
type Event struct {
	ID   string
	Type string
	// MembershipRef is the checkout session client reference id.
	MembershipRef string
	// SubscriptionID is the checkout or invoice subscription, or the deleted
	// subscription itself.
	SubscriptionID string
	// Raw is the event JSON as delivered, kept for archiving.
	Raw []byte
}

func (e Event) Kind() Kind {
	return KindOf(e.Type)
}
