package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "textcleaner_go_backend/internal/errors"
	"textcleaner_go_backend/internal/models"
)

type paymentFixture struct {
	registry  *SessionRegistry
	gateway   *MockPaymentGateway
	notifier  *recordingNotifier
	service   *PaymentService
	sessionID string
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	registry := NewSessionRegistry(time.Hour)
	gateway := new(MockPaymentGateway)
	notifier := newRecordingNotifier()
	svc := NewPaymentService(registry, gateway, notifier, "XTR", []int64{50, 100, 500})

	sess := registry.Create()
	return &paymentFixture{
		registry:  registry,
		gateway:   gateway,
		notifier:  notifier,
		service:   svc,
		sessionID: sess.ID,
	}
}

func (fx *paymentFixture) putOffer(t *testing.T, text string, price int64) {
	t.Helper()
	require.NoError(t, fx.registry.PutTransaction(fx.sessionID, models.PendingTransaction{
		OriginalText: text,
		Length:       len([]rune(text)),
		Price:        price,
		Currency:     "XTR",
		HiddenCount:  1,
		State:        models.StateOffered,
		CreatedAt:    time.Now(),
	}))
}

func TestRequestPayment_IssuesInvoiceForStoredPrice(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.putOffer(t, "original\u00A0text", 25)

	fx.gateway.On("IssueInvoice", mock.Anything, mock.MatchedBy(func(inv Invoice) bool {
		return inv.Amount == 25 &&
			inv.Currency == "XTR" &&
			inv.PayloadTag == "clean:"+fx.sessionID
	})).Return("inv_123", nil).Once()

	invoiceID, err := fx.service.RequestPayment(context.Background(), fx.sessionID)
	require.NoError(t, err)
	assert.Equal(t, "inv_123", invoiceID)

	tx, ok := fx.registry.Transaction(fx.sessionID)
	require.True(t, ok)
	assert.Equal(t, models.StateInvoiceIssued, tx.State)
	assert.Equal(t, "inv_123", tx.InvoiceID)

	fx.gateway.AssertExpectations(t)
}

func TestRequestPayment_NoPendingTransaction(t *testing.T) {
	fx := newPaymentFixture(t)

	_, err := fx.service.RequestPayment(context.Background(), fx.sessionID)
	assert.ErrorIs(t, err, apperrors.ErrNoPendingTransaction)
	fx.gateway.AssertNotCalled(t, "IssueInvoice", mock.Anything, mock.Anything)
}

func TestHandlePreAuthorization_Affirms(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.putOffer(t, "text\u200B", 10)

	err := fx.service.HandlePreAuthorization(PaymentEvent{
		Kind:       EventPreAuthorization,
		PayloadTag: "clean:" + fx.sessionID,
		Amount:     10,
	})
	require.NoError(t, err)

	tx, _ := fx.registry.Transaction(fx.sessionID)
	assert.Equal(t, models.StatePreAuthorized, tx.State)
}

func TestHandlePreAuthorization_AmountMismatchFallsBackToOffered(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.putOffer(t, "text\u200B", 10)
	require.NoError(t, fx.registry.WithTransaction(fx.sessionID, func(tx *models.PendingTransaction) error {
		tx.State = models.StateInvoiceIssued
		return nil
	}))

	err := fx.service.HandlePreAuthorization(PaymentEvent{
		Kind:       EventPreAuthorization,
		PayloadTag: "clean:" + fx.sessionID,
		Amount:     999,
	})
	assert.ErrorIs(t, err, apperrors.ErrPaymentRejected)

	tx, _ := fx.registry.Transaction(fx.sessionID)
	assert.Equal(t, models.StateOffered, tx.State)
}

func TestHandlePreAuthorization_MissingTransaction(t *testing.T) {
	fx := newPaymentFixture(t)

	err := fx.service.HandlePreAuthorization(PaymentEvent{
		Kind:       EventPreAuthorization,
		PayloadTag: "clean:" + fx.sessionID,
		Amount:     10,
	})
	assert.ErrorIs(t, err, apperrors.ErrNoPendingTransaction)
}

func TestHandleNotification_AffirmedPreAuthIsCaptured(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.putOffer(t, "text\u200B", 10)

	payload := []byte(`{}`)
	fx.gateway.On("VerifyNotification", payload, "sig").Return(PaymentEvent{
		Kind:        EventPreAuthorization,
		PayloadTag:  "clean:" + fx.sessionID,
		Amount:      10,
		ProviderRef: "pi_123",
	}, nil).Once()
	fx.gateway.On("CapturePayment", mock.Anything, "pi_123").Return(nil).Once()

	_, err := fx.service.HandleNotification(context.Background(), payload, "sig")
	require.NoError(t, err)

	tx, _ := fx.registry.Transaction(fx.sessionID)
	assert.Equal(t, models.StatePreAuthorized, tx.State)
	fx.gateway.AssertExpectations(t)
}

func TestHandleNotification_CaptureFailureFallsBackToOffered(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.putOffer(t, "text\u200B", 10)

	payload := []byte(`{}`)
	fx.gateway.On("VerifyNotification", payload, "sig").Return(PaymentEvent{
		Kind:        EventPreAuthorization,
		PayloadTag:  "clean:" + fx.sessionID,
		Amount:      10,
		ProviderRef: "pi_123",
	}, nil).Once()
	fx.gateway.On("CapturePayment", mock.Anything, "pi_123").
		Return(assert.AnError).Once()

	_, err := fx.service.HandleNotification(context.Background(), payload, "sig")
	assert.ErrorIs(t, err, apperrors.ErrPaymentRejected)

	// The user can request payment again at the stored price.
	tx, _ := fx.registry.Transaction(fx.sessionID)
	assert.Equal(t, models.StateOffered, tx.State)
}

func TestHandleNotification_RejectedPreAuthIsNotCaptured(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.putOffer(t, "text\u200B", 10)

	payload := []byte(`{}`)
	fx.gateway.On("VerifyNotification", payload, "sig").Return(PaymentEvent{
		Kind:        EventPreAuthorization,
		PayloadTag:  "clean:" + fx.sessionID,
		Amount:      999,
		ProviderRef: "pi_123",
	}, nil).Once()

	_, err := fx.service.HandleNotification(context.Background(), payload, "sig")
	assert.ErrorIs(t, err, apperrors.ErrPaymentRejected)
	fx.gateway.AssertNotCalled(t, "CapturePayment", mock.Anything, mock.Anything)
}

func TestHandleSettlement_DeliversStoredTextCleaned(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.putOffer(t, "pay\u00A0me…", 10)

	outcome, err := fx.service.HandleSettlement(PaymentEvent{
		Kind:       EventSettlement,
		PayloadTag: "clean:" + fx.sessionID,
		Amount:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDelivered, outcome.Kind)
	assert.Equal(t, "pay me...", outcome.CleanedText)

	// The transaction is destroyed on settlement.
	_, ok := fx.registry.Transaction(fx.sessionID)
	assert.False(t, ok)

	// The session is also notified asynchronously.
	select {
	case pushed := <-fx.notifier.ch:
		assert.Equal(t, models.OutcomeDelivered, pushed.Kind)
	default:
		t.Fatal("settlement outcome was not pushed to the session")
	}
}

func TestHandleSettlement_MissingTransactionIsRecoverable(t *testing.T) {
	fx := newPaymentFixture(t)

	outcome, err := fx.service.HandleSettlement(PaymentEvent{
		Kind:       EventSettlement,
		PayloadTag: "clean:" + fx.sessionID,
		Amount:     10,
	})
	assert.ErrorIs(t, err, apperrors.ErrNoPendingTransaction)
	assert.Equal(t, models.OutcomeFailure, outcome.Kind)
	assert.Equal(t, string(apperrors.ErrorTypeNoPendingTransaction), outcome.ErrorType)
}

func TestHandleSettlement_DeliversOfferedTextNotResubmission(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.putOffer(t, "first\u00A0offer", 10)

	// A later submission replaces the offer wholesale; settlement then
	// applies to the replacement, the only stored original.
	fx.putOffer(t, "second\u00A0offer", 10)

	outcome, err := fx.service.HandleSettlement(PaymentEvent{
		Kind:       EventSettlement,
		PayloadTag: "clean:" + fx.sessionID,
		Amount:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, "second offer", outcome.CleanedText)
}

func TestDonationFlow_NeverTouchesPendingTransaction(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.putOffer(t, "content\u200B", 10)

	fx.gateway.On("IssueInvoice", mock.Anything, mock.MatchedBy(func(inv Invoice) bool {
		return inv.Amount == 100 && inv.PayloadTag == "donate:"+fx.sessionID+":100"
	})).Return("inv_donation", nil).Once()

	_, err := fx.service.Donate(context.Background(), fx.sessionID, 100)
	require.NoError(t, err)

	outcome, err := fx.service.HandleSettlement(PaymentEvent{
		Kind:       EventSettlement,
		PayloadTag: "donate:" + fx.sessionID + ":100",
		Amount:     100,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDonation, outcome.Kind)

	// The cleaning offer survives the donation untouched.
	tx, ok := fx.registry.Transaction(fx.sessionID)
	require.True(t, ok)
	assert.Equal(t, "content\u200B", tx.OriginalText)
	fx.gateway.AssertExpectations(t)
}

func TestDonate_UnsupportedAmount(t *testing.T) {
	fx := newPaymentFixture(t)

	_, err := fx.service.Donate(context.Background(), fx.sessionID, 33)
	assert.Error(t, err)
	fx.gateway.AssertNotCalled(t, "IssueInvoice", mock.Anything, mock.Anything)
}

func TestCancel(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.putOffer(t, "text\u200B", 10)

	require.NoError(t, fx.service.Cancel(fx.sessionID))
	_, ok := fx.registry.Transaction(fx.sessionID)
	assert.False(t, ok)

	// Nothing left to cancel.
	assert.ErrorIs(t, fx.service.Cancel(fx.sessionID), apperrors.ErrNoPendingTransaction)
}

func TestCancel_RefusedOncePreAuthorized(t *testing.T) {
	fx := newPaymentFixture(t)
	fx.putOffer(t, "text\u200B", 10)
	require.NoError(t, fx.registry.WithTransaction(fx.sessionID, func(tx *models.PendingTransaction) error {
		tx.State = models.StatePreAuthorized
		return nil
	}))

	assert.Error(t, fx.service.Cancel(fx.sessionID))
	_, ok := fx.registry.Transaction(fx.sessionID)
	assert.True(t, ok, "an in-flight payment keeps its transaction")
}

func TestParsePayloadTag(t *testing.T) {
	kind, sid, _, err := parsePayloadTag("clean:abc-123")
	require.NoError(t, err)
	assert.Equal(t, tagKindClean, kind)
	assert.Equal(t, "abc-123", sid)

	kind, sid, amount, err := parsePayloadTag("donate:abc-123:500")
	require.NoError(t, err)
	assert.Equal(t, tagKindDonation, kind)
	assert.Equal(t, "abc-123", sid)
	assert.Equal(t, int64(500), amount)

	_, _, _, err = parsePayloadTag("garbage")
	assert.Error(t, err)
	_, _, _, err = parsePayloadTag("donate:abc:notanumber")
	assert.Error(t, err)
}
