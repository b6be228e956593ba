package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"land-assessment-system/backend"
	"land-assessment-system/gateway"
)

// Application error types raised by the activities. The user-facing message is always
// carried as the first detail.
const (
	ErrTypeRejected          = "UpstreamRejected"
	ErrTypeCardDeclined      = "CardDeclined"
	ErrTypePaymentIncomplete = "PaymentIncomplete"
	ErrTypeNetwork           = "NetworkError"
)

// NetworkErrorMessage formats a transport failure for the user.
func NetworkErrorMessage(cause error) string {
	return fmt.Sprintf("Network error: %v", cause)
}

// toApplicationError converts a step failure into a non-retryable application error.
func toApplicationError(ctx context.Context, err error) error {
	var rejection *backend.RejectionError
	var cardErr *gateway.CardError
	var transport *backend.TransportError

	switch {
	case errors.As(err, &rejection):
		return temporal.NewNonRetryableApplicationError(rejection.Message, ErrTypeRejected, err, rejection.Message)
	case errors.As(err, &cardErr):
		msg := cardErr.Error()
		return temporal.NewNonRetryableApplicationError(msg, ErrTypeCardDeclined, err, msg)
	case errors.As(err, &transport):
		msg := NetworkErrorMessage(transport.Err)
		return temporal.NewNonRetryableApplicationError(msg, ErrTypeNetwork, err, msg)
	case ctx.Err() != nil:
		msg := NetworkErrorMessage(ctx.Err())
		return temporal.NewNonRetryableApplicationError(msg, ErrTypeNetwork, err, msg)
	default:
		msg := NetworkErrorMessage(err)
		return temporal.NewNonRetryableApplicationError(msg, ErrTypeNetwork, err, msg)
	}
}
