package activities

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"land-assessment-system/gateway"
	"land-assessment-system/models"
)

// PaymentBackend opens and finalises payment intents.
type PaymentBackend interface {
	CreatePaymentIntent(ctx context.Context, req models.CreatePaymentIntentRequest) (models.PaymentIntentCreated, error)
	ConfirmPayment(ctx context.Context, req models.ConfirmPaymentRequest) (string, error)
}

// PaymentActivities contains all payment-related activities
type PaymentActivities struct {
	backend PaymentBackend
	gateway gateway.CardConfirmer
}

// NewPaymentActivities creates a new PaymentActivities instance
func NewPaymentActivities(backend PaymentBackend, confirmer gateway.CardConfirmer) *PaymentActivities {
	return &PaymentActivities{backend: backend, gateway: confirmer}
}

// CreatePaymentIntent asks the backend for a payment intent covering the assessment fee.
func (p *PaymentActivities) CreatePaymentIntent(ctx context.Context, req models.AssessmentRequest, landID string) (models.PaymentSession, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Creating payment intent", "land_id", landID, "amount", req.Amount)

	activity.RecordHeartbeat(ctx, "creating payment intent")

	created, err := p.backend.CreatePaymentIntent(ctx, models.CreatePaymentIntentRequest{
		UserID: req.OwnerID,
		LandID: landID,
		Amount: req.Amount,
	})
	if err != nil {
		logger.Error("Payment intent creation failed", "land_id", landID, "error", err)
		return models.PaymentSession{}, toApplicationError(ctx, err)
	}

	logger.Info("Payment intent created", "land_id", landID, "payment_intent_id", created.PaymentIntentID)
	return models.PaymentSession{
		LandID:          landID,
		PaymentIntentID: created.PaymentIntentID,
		ClientSecret:    created.ClientSecret,
		Amount:          req.Amount,
	}, nil
}

// ConfirmCardPayment confirms the intent with the tokenized card. Any status other than
// succeeded fails the activity with a message describing that status.
func (p *PaymentActivities) ConfirmCardPayment(ctx context.Context, confirmation models.CardConfirmation) (string, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Confirming card payment")

	activity.RecordHeartbeat(ctx, "confirming card payment")

	status, err := p.gateway.ConfirmCardPayment(ctx, confirmation.ClientSecret, confirmation.PaymentMethodID)
	if err != nil {
		logger.Error("Card confirmation failed", "error", err)
		return "", toApplicationError(ctx, err)
	}

	if status != gateway.StatusSucceeded {
		msg := gateway.StatusMessage(status)
		logger.Warn("Card payment not completed", "status", status)
		return status, temporal.NewNonRetryableApplicationError(msg, ErrTypePaymentIncomplete, nil, msg)
	}

	logger.Info("Card payment succeeded")
	return status, nil
}

// ConfirmPayment tells the backend the intent was paid and returns the transaction id.
func (p *PaymentActivities) ConfirmPayment(ctx context.Context, req models.AssessmentRequest, session models.PaymentSession) (string, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Confirming payment", "land_id", session.LandID, "payment_intent_id", session.PaymentIntentID)

	activity.RecordHeartbeat(ctx, "confirming payment")

	transactionID, err := p.backend.ConfirmPayment(ctx, models.ConfirmPaymentRequest{
		PaymentIntentID: session.PaymentIntentID,
		UserID:          req.OwnerID,
		LandID:          session.LandID,
	})
	if err != nil {
		logger.Error("Payment confirmation failed", "payment_intent_id", session.PaymentIntentID, "error", err)
		return "", toApplicationError(ctx, err)
	}

	logger.Info("Payment confirmed", "payment_intent_id", session.PaymentIntentID, "transaction_id", transactionID)
	return transactionID, nil
}
