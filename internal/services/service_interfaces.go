package services

import (
	"context"

	"textcleaner_go_backend/internal/models"
)

// TextExtractor turns an uploaded document into plain text. Implementations
// must normalize every collaborator failure into the error taxonomy; the
// ingestion pipeline never sees a parser-specific error.
type TextExtractor interface {
	Extract(fileName string, data []byte) (string, error)
}

// FileFetcher retrieves remote file content into a temporary file and
// returns its path and size. Any failure is non-retryable for that
// submission.
type FileFetcher interface {
	FetchToTemp(ctx context.Context, url, fileName string) (string, int64, error)
}

// OutcomeNotifier delivers an outcome asynchronously to a session. The
// transport layer decides how: websocket push, long-poll, or dropping it
// if nobody listens.
type OutcomeNotifier interface {
	Notify(sessionID string, outcome models.Outcome)
}

// Invoice is the payment issuance request handed to the external gateway.
// The payload tag must be sufficient to disambiguate a donation settlement
// from a content-cleaning settlement, since notifications carry only the
// tag and the transacted amount.
type Invoice struct {
	SessionID   string
	Title       string
	Description string
	PayloadTag  string
	Currency    string
	Amount      int64
}

// PaymentEventKind classifies inbound payment notifications.
type PaymentEventKind string

const (
	EventPreAuthorization PaymentEventKind = "pre_authorization"
	EventSettlement       PaymentEventKind = "settlement"
)

// PaymentEvent is a verified notification from the payment gateway.
// ProviderRef identifies the gateway-side object the event refers to, so a
// pre-authorization can be captured.
type PaymentEvent struct {
	Kind        PaymentEventKind
	PayloadTag  string
	Amount      int64
	ProviderRef string
}

// PaymentGateway abstracts the external payment processor. Cryptographic
// integrity of notifications is the gateway's concern, enforced inside
// VerifyNotification. Payments are authorized in two legs: the gateway
// holds the funds and emits a pre-authorization event, and CapturePayment
// takes them once the coordinator has affirmed the offer still stands.
type PaymentGateway interface {
	IssueInvoice(ctx context.Context, inv Invoice) (string, error)
	VerifyNotification(payload []byte, signature string) (PaymentEvent, error)
	CapturePayment(ctx context.Context, providerRef string) error
}
