// Package gateway confirms card payments against the payment gateway.
package gateway

import (
	"context"
	"fmt"
	"strings"
)

// Payment intent statuses reported by the gateway.
const (
	StatusSucceeded             = "succeeded"
	StatusProcessing            = "processing"
	StatusRequiresAction        = "requires_action"
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusRequiresCapture       = "requires_capture"
	StatusCanceled              = "canceled"
)

// CardConfirmer confirms a payment intent with a tokenized card.
type CardConfirmer interface {
	// ConfirmCardPayment returns the resulting intent status. A gateway-reported problem
	// (declined card, expired card...) is returned as *CardError.
	ConfirmCardPayment(ctx context.Context, clientSecret, paymentMethodID string) (string, error)
}

// CardError is a failure reported by the gateway itself.
type CardError struct {
	Code    string
	Message string
}

func (e *CardError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("card payment failed (%s)", e.Code)
	}
	return e.Message
}

// StatusMessage explains a non-succeeded intent status to the user.
func StatusMessage(status string) string {
	switch status {
	case StatusProcessing:
		return "Payment is still processing. Please check your dashboard shortly."
	case StatusRequiresAction:
		return "Payment requires additional authentication. Please try again."
	case StatusRequiresPaymentMethod:
		return "Payment failed. Please try another payment method."
	case StatusRequiresConfirmation:
		return "Payment was not confirmed. Please try again."
	case StatusRequiresCapture:
		return "Payment was authorized but not captured. Please contact support."
	case StatusCanceled:
		return "Payment was canceled."
	default:
		return fmt.Sprintf("Payment status: %s", status)
	}
}

// IntentIDFromClientSecret extracts "pi_123" from "pi_123_secret_abc".
func IntentIDFromClientSecret(clientSecret string) (string, error) {
	idx := strings.Index(clientSecret, "_secret_")
	if idx <= 0 {
		return "", fmt.Errorf("malformed client secret")
	}
	return clientSecret[:idx], nil
}
