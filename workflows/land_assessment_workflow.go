package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"land-assessment-system/activities"
	"land-assessment-system/models"
)

const (
	QueryState = "state"

	DefaultActivityTimeout = 30 * time.Second
	workflowIDPrefix       = "land-assessment-"
)

// WorkflowID names the workflow run for an attempt key. Retrying an attempt reuses the id.
func WorkflowID(attemptKey string) string {
	return workflowIDPrefix + attemptKey
}

// LandAssessmentWorkflow pays the assessment fee for a land draft. It creates the land
// record, opens a payment intent, confirms the card with the gateway and finally confirms
// the payment with the backend. The first failing step ends the run; its message is
// returned in the outcome and the remaining steps are never attempted.
func LandAssessmentWorkflow(ctx workflow.Context, req models.AssessmentRequest) (models.PaymentOutcome, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("LandAssessmentWorkflow started", "attempt_key", req.AttemptKey, "amount", req.Amount)

	state := models.AssessmentState{
		AttemptKey:  req.AttemptKey,
		Stage:       models.StageStarted,
		LastUpdated: workflow.Now(ctx),
	}

	err := workflow.SetQueryHandler(ctx, QueryState, func() (models.AssessmentState, error) {
		return state, nil
	})
	if err != nil {
		return models.PaymentOutcome{}, fmt.Errorf("failed to set query handler: %w", err)
	}

	advance := func(stage models.AssessmentStage) {
		state.Stage = stage
		state.LastUpdated = workflow.Now(ctx)
	}
	fail := func(step string, err error) (models.PaymentOutcome, error) {
		msg := FailureMessage(err)
		logger.Error("Land assessment step failed", "attempt_key", req.AttemptKey, "step", step, "error", err)
		state.ErrorMessage = msg
		advance(models.StageFailed)
		return models.FailedOutcome(msg), nil
	}

	if err := validateRequest(req); err != nil {
		return fail("validate", err)
	}

	timeout := req.ActivityTimeout
	if timeout <= 0 {
		timeout = DefaultActivityTimeout
	}
	// Each step runs exactly once. A failed attempt is resubmitted with the same attempt key.
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var act *activities.Activities
	var paymentAct *activities.PaymentActivities

	// Step 1: Create land record
	var landID string
	if err := workflow.ExecuteActivity(ctx, act.CreateLandRecord, req).Get(ctx, &landID); err != nil {
		return fail("create land record", err)
	}
	state.LandID = landID
	advance(models.StageLandCreated)

	// Step 2: Open payment intent
	var session models.PaymentSession
	if err := workflow.ExecuteActivity(ctx, paymentAct.CreatePaymentIntent, req, landID).Get(ctx, &session); err != nil {
		return fail("create payment intent", err)
	}
	state.PaymentIntentID = session.PaymentIntentID
	advance(models.StageIntentCreated)

	// Step 3: Confirm card with the gateway
	confirmation := models.CardConfirmation{
		ClientSecret:    session.ClientSecret,
		PaymentMethodID: req.PaymentMethodID,
	}
	if err := workflow.ExecuteActivity(ctx, paymentAct.ConfirmCardPayment, confirmation).Get(ctx, nil); err != nil {
		return fail("confirm card payment", err)
	}
	advance(models.StageCardConfirmed)

	// Step 4: Confirm payment with the backend
	var transactionID string
	if err := workflow.ExecuteActivity(ctx, paymentAct.ConfirmPayment, req, session).Get(ctx, &transactionID); err != nil {
		return fail("confirm payment", err)
	}
	state.TransactionID = transactionID
	advance(models.StageCompleted)

	logger.Info("LandAssessmentWorkflow completed successfully",
		"attempt_key", req.AttemptKey, "land_id", landID, "transaction_id", transactionID)

	return models.PaymentOutcome{
		TransactionID:   transactionID,
		PaymentIntentID: session.PaymentIntentID,
		Amount:          session.Amount,
	}, nil
}

func validateRequest(req models.AssessmentRequest) error {
	if req.Draft.Location == "" || req.OwnerID == "" || req.PaymentMethodID == "" {
		return models.ErrMissingFields
	}
	if !(req.Draft.Size > 0) {
		return models.ErrSizeNotPositive
	}
	if !(req.Amount > 0) {
		return models.NewValidationError("Assessment fee must be positive.")
	}
	return nil
}
