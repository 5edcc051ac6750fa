package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"textcleaner_go_backend/internal/models"
)

type MockTextExtractor struct {
	mock.Mock
}

func (m *MockTextExtractor) Extract(fileName string, data []byte) (string, error) {
	args := m.Called(fileName, data)
	return args.String(0), args.Error(1)
}

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) IssueInvoice(ctx context.Context, inv Invoice) (string, error) {
	args := m.Called(ctx, inv)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) VerifyNotification(payload []byte, signature string) (PaymentEvent, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(PaymentEvent), args.Error(1)
}

func (m *MockPaymentGateway) CapturePayment(ctx context.Context, providerRef string) error {
	args := m.Called(ctx, providerRef)
	return args.Error(0)
}

// recordingNotifier buffers delivered outcomes so tests can wait on the
// asynchronous path.
type recordingNotifier struct {
	ch chan models.Outcome
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan models.Outcome, 16)}
}

func (n *recordingNotifier) Notify(sessionID string, outcome models.Outcome) {
	n.ch <- outcome
}
