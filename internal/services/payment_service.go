package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "textcleaner_go_backend/internal/errors"
	"textcleaner_go_backend/internal/models"
	"textcleaner_go_backend/internal/utils/hiddenchars"
)

const (
	tagKindClean    = "clean"
	tagKindDonation = "donate"
)

// PaymentService drives a session's offer through invoice issuance,
// pre-authorization and settlement, and the independent donation flow.
// The price charged is always the one frozen in the pending transaction;
// it is never recomputed after the offer.
type PaymentService struct {
	registry        *SessionRegistry
	gateway         PaymentGateway
	notifier        OutcomeNotifier
	currency        string
	donationAmounts []int64
}

func NewPaymentService(
	registry *SessionRegistry,
	gateway PaymentGateway,
	notifier OutcomeNotifier,
	currency string,
	donationAmounts []int64,
) *PaymentService {
	return &PaymentService{
		registry:        registry,
		gateway:         gateway,
		notifier:        notifier,
		currency:        currency,
		donationAmounts: donationAmounts,
	}
}

// RequestPayment issues an invoice for the session's pending offer and
// moves it to the invoice-issued state. Gateway I/O happens outside the
// registry lock.
func (s *PaymentService) RequestPayment(ctx context.Context, sessionID string) (string, error) {
	var inv Invoice
	err := s.registry.WithTransaction(sessionID, func(tx *models.PendingTransaction) error {
		if tx.State == models.StatePreAuthorized {
			return apperrors.New400Error("payment already in progress for this offer")
		}
		inv = Invoice{
			SessionID:   sessionID,
			Title:       "Text cleaning",
			Description: fmt.Sprintf("Remove %d hidden characters from %d characters of text", tx.HiddenCount, tx.Length),
			PayloadTag:  cleanPayloadTag(sessionID),
			Currency:    tx.Currency,
			Amount:      tx.Price,
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	invoiceID, err := s.gateway.IssueInvoice(ctx, inv)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("invoice issuance failed")
		return "", apperrors.New500Error(err)
	}

	err = s.registry.WithTransaction(sessionID, func(tx *models.PendingTransaction) error {
		tx.State = models.StateInvoiceIssued
		tx.InvoiceID = invoiceID
		return nil
	})
	if err != nil {
		// The offer vanished while the invoice was being issued; the
		// settlement path will report NoPendingTransaction if it arrives.
		return "", err
	}

	log.Info().Str("session", sessionID).Str("invoice", invoiceID).Int64("amount", inv.Amount).
		Msg("invoice issued for pending offer")
	return invoiceID, nil
}

// Cancel abandons the session's pending offer. Allowed while offered or
// invoice-issued; once pre-authorized the payment is in flight and must
// settle.
func (s *PaymentService) Cancel(sessionID string) error {
	err := s.registry.WithTransaction(sessionID, func(tx *models.PendingTransaction) error {
		if tx.State == models.StatePreAuthorized {
			return apperrors.New400Error("payment already in progress; the offer can no longer be cancelled")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.registry.ClearTransaction(sessionID)
	log.Info().Str("session", sessionID).Msg("pending offer cancelled")
	return nil
}

// Donate issues an invoice for a fixed donation amount. Donations never
// touch the session's pending transaction.
func (s *PaymentService) Donate(ctx context.Context, sessionID string, amount int64) (string, error) {
	supported := false
	for _, a := range s.donationAmounts {
		if a == amount {
			supported = true
			break
		}
	}
	if !supported {
		return "", apperrors.New400Error("unsupported donation amount")
	}

	inv := Invoice{
		SessionID:   sessionID,
		Title:       "Support the project",
		Description: fmt.Sprintf("Donation of %d %s", amount, s.currency),
		PayloadTag:  donationPayloadTag(sessionID, amount),
		Currency:    s.currency,
		Amount:      amount,
	}
	invoiceID, err := s.gateway.IssueInvoice(ctx, inv)
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("donation invoice issuance failed")
		return "", apperrors.New500Error(err)
	}
	return invoiceID, nil
}

// HandleNotification verifies and dispatches one inbound gateway
// notification. An affirmed pre-authorization is captured immediately, which
// in turn produces the settlement notification. The returned outcome is
// non-empty only for settlements.
func (s *PaymentService) HandleNotification(ctx context.Context, payload []byte, signature string) (models.Outcome, error) {
	ev, err := s.gateway.VerifyNotification(payload, signature)
	if err != nil {
		log.Warn().Err(err).Msg("rejecting unverifiable payment notification")
		return models.Outcome{}, apperrors.New400Error("invalid payment notification")
	}

	switch ev.Kind {
	case EventPreAuthorization:
		if err := s.HandlePreAuthorization(ev); err != nil {
			return models.Outcome{}, err
		}
		return models.Outcome{}, s.capturePreAuthorized(ctx, ev)
	case EventSettlement:
		return s.HandleSettlement(ev)
	default:
		return models.Outcome{}, apperrors.New400Error("unknown payment event kind")
	}
}

// capturePreAuthorized takes the held funds for an affirmed
// pre-authorization. A failed capture walks a cleaning offer back to the
// offered state so the user can try paying again.
func (s *PaymentService) capturePreAuthorized(ctx context.Context, ev PaymentEvent) error {
	err := s.gateway.CapturePayment(ctx, ev.ProviderRef)
	if err == nil {
		return nil
	}
	log.Error().Err(err).Str("provider_ref", ev.ProviderRef).Msg("capturing pre-authorized payment failed")

	kind, sessionID, _, tagErr := parsePayloadTag(ev.PayloadTag)
	if tagErr == nil && kind == tagKindClean {
		_ = s.registry.WithTransaction(sessionID, func(tx *models.PendingTransaction) error {
			tx.State = models.StateOffered
			return nil
		})
	}
	return apperrors.ErrPaymentRejected
}

// HandlePreAuthorization answers the gateway's pre-auth query synchronously:
// nil affirms, an error declines. A declined or missing offer falls back to
// the offered state; the gateway owns retries and timeouts.
func (s *PaymentService) HandlePreAuthorization(ev PaymentEvent) error {
	kind, sessionID, amount, err := parsePayloadTag(ev.PayloadTag)
	if err != nil {
		return apperrors.ErrPaymentRejected
	}

	if kind == tagKindDonation {
		if ev.Amount != amount {
			return apperrors.ErrPaymentRejected
		}
		return nil
	}

	return s.registry.WithTransaction(sessionID, func(tx *models.PendingTransaction) error {
		if ev.Amount != tx.Price {
			// The offer was superseded between invoice and pre-auth.
			tx.State = models.StateOffered
			log.Warn().Str("session", sessionID).Int64("expected", tx.Price).Int64("got", ev.Amount).
				Msg("pre-authorization amount mismatch")
			return apperrors.ErrPaymentRejected
		}
		tx.State = models.StatePreAuthorized
		return nil
	})
}

// HandleSettlement delivers the cleaned text for a confirmed payment and
// clears the pending transaction. The text cleaned is the one stored with
// the offer, never anything resubmitted afterwards. A settlement against a
// cleared or absent transaction is reported, not fatal.
func (s *PaymentService) HandleSettlement(ev PaymentEvent) (models.Outcome, error) {
	kind, sessionID, _, err := parsePayloadTag(ev.PayloadTag)
	if err != nil {
		return models.Outcome{}, apperrors.New400Error("malformed settlement payload tag")
	}

	if kind == tagKindDonation {
		outcome := models.Outcome{
			Kind:      models.OutcomeDonation,
			SessionID: sessionID,
			Price:     ev.Amount,
			Currency:  s.currency,
		}
		s.notifier.Notify(sessionID, outcome)
		log.Info().Str("session", sessionID).Int64("amount", ev.Amount).Msg("donation settled")
		return outcome, nil
	}

	tx, ok := s.registry.ClearTransaction(sessionID)
	if !ok {
		outcome := models.Outcome{
			Kind:      models.OutcomeFailure,
			SessionID: sessionID,
			ErrorType: string(apperrors.ErrorTypeNoPendingTransaction),
			Message:   apperrors.ErrNoPendingTransaction.Message,
		}
		s.notifier.Notify(sessionID, outcome)
		return outcome, apperrors.ErrNoPendingTransaction
	}

	outcome := models.Outcome{
		Kind:        models.OutcomeDelivered,
		SessionID:   sessionID,
		HiddenCount: tx.HiddenCount,
		Length:      tx.Length,
		Price:       tx.Price,
		Currency:    tx.Currency,
		CleanedText: hiddenchars.Clean(tx.OriginalText),
	}
	s.notifier.Notify(sessionID, outcome)
	log.Info().Str("session", sessionID).Int64("amount", ev.Amount).Msg("cleaning settled and delivered")
	return outcome, nil
}

func cleanPayloadTag(sessionID string) string {
	return tagKindClean + ":" + sessionID
}

func donationPayloadTag(sessionID string, amount int64) string {
	return fmt.Sprintf("%s:%s:%d", tagKindDonation, sessionID, amount)
}

// parsePayloadTag splits "clean:<session>" or "donate:<session>:<amount>".
func parsePayloadTag(tag string) (kind, sessionID string, amount int64, err error) {
	parts := strings.Split(tag, ":")
	switch {
	case len(parts) == 2 && parts[0] == tagKindClean:
		return tagKindClean, parts[1], 0, nil
	case len(parts) == 3 && parts[0] == tagKindDonation:
		amount, err = strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return "", "", 0, fmt.Errorf("malformed donation amount in payload tag %q", tag)
		}
		return tagKindDonation, parts[1], amount, nil
	default:
		return "", "", 0, fmt.Errorf("unrecognized payload tag %q", tag)
	}
}
