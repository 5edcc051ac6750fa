package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/paymentintent"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeGateway implements PaymentGateway on Stripe Checkout with manual
// capture: the checkout holds the funds, the amount_capturable_updated
// webhook is the pre-authorization query, and CapturePayment settles. The
// payload tag rides in the PaymentIntent metadata (session metadata is not
// copied onto the intent by Stripe) so both webhook legs can be routed back
// to the right flow.
type StripeGateway struct {
	secretKey     string
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
	}
}

var _ PaymentGateway = (*StripeGateway)(nil)

func (g *StripeGateway) IssueInvoice(ctx context.Context, inv Invoice) (string, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(inv.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(inv.Title),
						Description: stripe.String(inv.Description),
					},
					UnitAmount: stripe.Int64(inv.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(inv.SessionID),
		Metadata: map[string]string{
			"payload_tag": inv.PayloadTag,
		},
		// Manual capture defers taking the funds until the coordinator has
		// affirmed the pre-authorization; the metadata must be set here too
		// because PaymentIntent webhooks never see the session's.
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
			Metadata: map[string]string{
				"payload_tag": inv.PayloadTag,
			},
		},
	}
	params.Context = ctx

	cs, err := session.New(params)
	if err != nil {
		return "", err
	}
	return cs.ID, nil
}

func (g *StripeGateway) VerifyNotification(payload []byte, signature string) (PaymentEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return PaymentEvent{}, err
	}

	switch event.Type {
	case "payment_intent.amount_capturable_updated":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return PaymentEvent{}, fmt.Errorf("parsing payment intent: %w", err)
		}
		return PaymentEvent{
			Kind:        EventPreAuthorization,
			PayloadTag:  pi.Metadata["payload_tag"],
			Amount:      pi.AmountCapturable,
			ProviderRef: pi.ID,
		}, nil

	case "payment_intent.succeeded":
		// Fires after CapturePayment takes the held funds; this is the
		// settlement, not checkout.session.completed, which under manual
		// capture precedes the capture.
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return PaymentEvent{}, fmt.Errorf("parsing payment intent: %w", err)
		}
		return PaymentEvent{
			Kind:        EventSettlement,
			PayloadTag:  pi.Metadata["payload_tag"],
			Amount:      pi.AmountReceived,
			ProviderRef: pi.ID,
		}, nil

	default:
		return PaymentEvent{}, fmt.Errorf("unhandled event type: %s", event.Type)
	}
}

// CapturePayment takes the funds held by a pre-authorized PaymentIntent.
func (g *StripeGateway) CapturePayment(ctx context.Context, providerRef string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	_, err := paymentintent.Capture(providerRef, params)
	return err
}
