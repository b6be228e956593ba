package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Stripe confirms payment intents with a publishable key and the intent's client secret,
// the same handshake a browser performs with Stripe.js.
type Stripe struct {
	api *client.API
}

// NewStripe creates a Stripe confirmer. apiURL overrides the Stripe endpoint when non-empty.
func NewStripe(publishableKey, apiURL string) (*Stripe, error) {
	if publishableKey == "" {
		return nil, fmt.Errorf("stripe publishable key is required")
	}

	backendConfig := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
	}
	if apiURL != "" {
		backendConfig.URL = stripe.String(apiURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	api := &client.API{}
	api.Init(publishableKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &Stripe{api: api}, nil
}

// ConfirmCardPayment implements CardConfirmer.
func (s *Stripe) ConfirmCardPayment(ctx context.Context, clientSecret, paymentMethodID string) (string, error) {
	intentID, err := IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return "", err
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx
	params.AddExtra("client_secret", clientSecret)

	intent, err := s.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return "", &CardError{Code: string(stripeErr.Code), Message: stripeErr.Msg}
		}
		return "", fmt.Errorf("failed to confirm payment intent: %w", err)
	}
	return string(intent.Status), nil
}
