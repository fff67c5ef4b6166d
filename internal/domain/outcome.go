package domain

import "time"

type OutcomeKind string

const (
	OutcomeApplied   OutcomeKind = "applied"
	OutcomeNotFound  OutcomeKind = "not_found"
	OutcomeMalformed OutcomeKind = "malformed"
	OutcomeError     OutcomeKind = "error"
)

const (
	AckProcessed = "Callback processed successfully"
	AckNotFound  = "Transaction not found"
	AckMalformed = "Invalid callback structure"
)

// CallbackOutcome is what the reconciler did with one webhook delivery.
// Transaction is the refreshed row and is set only for OutcomeApplied.
type CallbackOutcome struct {
	Kind              OutcomeKind
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        string
	ResultDesc        string
	Status            TxStatus
	Transaction       *Transaction
	Err               error
	ReceivedAt        time.Time
}

// Ack is the acknowledgment envelope the gateway expects on every delivery.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func (o CallbackOutcome) Ack() Ack {
	switch o.Kind {
	case OutcomeNotFound:
		return Ack{ResultDesc: AckNotFound}
	case OutcomeMalformed:
		return Ack{ResultDesc: AckMalformed}
	default:
		return Ack{ResultDesc: AckProcessed}
	}
}

type EventType string

const (
	EventPaymentCompleted EventType = "PaymentCompleted"
	EventPaymentFailed    EventType = "PaymentFailed"
)

// Event is a terminal-state notification for downstream consumers.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Transaction Transaction `json:"transaction"`
}
