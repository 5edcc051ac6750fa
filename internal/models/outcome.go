package models

// OutcomeKind classifies the single result emitted for a submission or a
// payment event.
type OutcomeKind string

const (
	// OutcomeClean means no hidden characters were found; nothing to pay for.
	OutcomeClean OutcomeKind = "clean"
	// OutcomeOffer means hidden characters were found and a priced cleaning
	// offer now awaits payment.
	OutcomeOffer OutcomeKind = "offer"
	// OutcomeDelivered carries the cleaned text, either free of charge or
	// after settlement.
	OutcomeDelivered OutcomeKind = "delivered"
	// OutcomeFailure reports a user-recoverable error; the session stays usable.
	OutcomeFailure OutcomeKind = "failure"
	// OutcomeQueued acknowledges a large file accepted for background
	// processing; the final outcome arrives asynchronously.
	OutcomeQueued OutcomeKind = "queued"
	// OutcomeDonation acknowledges a settled donation.
	OutcomeDonation OutcomeKind = "donation"
)

// Outcome is the transport-agnostic result of one submission or payment
// event. The API layer is responsible for turning it into a response or a
// websocket push.
type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	SessionID string      `json:"session_id"`

	HiddenCount int    `json:"hidden_count,omitempty"`
	Length      int    `json:"length,omitempty"`
	Price       int64  `json:"price,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Preview     string `json:"preview,omitempty"`
	Truncated   bool   `json:"truncated,omitempty"`

	CleanedText string `json:"cleaned_text,omitempty"`

	ErrorType string `json:"error_type,omitempty"`
	Message   string `json:"message,omitempty"`
}
