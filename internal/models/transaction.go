package models

import "time"

// PaymentState tracks where a pending transaction sits in the payment flow.
type PaymentState string

const (
	StateOffered       PaymentState = "offered"
	StateInvoiceIssued PaymentState = "invoice_issued"
	StatePreAuthorized PaymentState = "pre_authorized"
)

// PendingTransaction is an unsettled offer to clean specific content at a
// specific price. A session holds at most one; a new submission replaces it
// wholesale. The original text is frozen here so that settlement always
// cleans exactly what was offered, never what was resubmitted later.
type PendingTransaction struct {
	OriginalText string
	Length       int
	Price        int64
	Currency     string
	HiddenCount  int
	State        PaymentState
	InvoiceID    string
	CreatedAt    time.Time
}
