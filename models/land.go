package models

import "time"

// WorkflowStep is the sub-view of the land assessment flow that is currently active
type WorkflowStep string

const (
	StepCollectingDetails WorkflowStep = "COLLECTING_DETAILS"
	StepPaying            WorkflowStep = "PAYING"
)

// LandDraft is a frozen snapshot of validated land details
type LandDraft struct {
	Size     float64 `json:"size"`
	Location string  `json:"location"`
}

// IsZero reports whether the draft carries no data
func (d LandDraft) IsZero() bool {
	return d.Size == 0 && d.Location == ""
}

// AssessmentRequest is the input to LandAssessmentWorkflow
type AssessmentRequest struct {
	// AttemptKey identifies one LandDraft submission. It is sent to the backend as
	// the idempotency key for land record creation and names the workflow.
	AttemptKey      string    `json:"attempt_key"`
	OwnerID         string    `json:"owner_id"`
	Draft           LandDraft `json:"draft"`
	Amount          float64   `json:"amount"`
	PaymentMethodID string    `json:"payment_method_id"`
	// ActivityTimeout bounds each remote step. Zero uses the workflow default.
	ActivityTimeout time.Duration `json:"activity_timeout,omitempty"`
}

// AssessmentStage is the stage the orchestrator has reached
type AssessmentStage string

const (
	StageStarted       AssessmentStage = "STARTED"
	StageLandCreated   AssessmentStage = "LAND_CREATED"
	StageIntentCreated AssessmentStage = "INTENT_CREATED"
	StageCardConfirmed AssessmentStage = "CARD_CONFIRMED"
	StageCompleted     AssessmentStage = "COMPLETED"
	StageFailed        AssessmentStage = "FAILED"
)

// AssessmentState is returned by the workflow state query
type AssessmentState struct {
	AttemptKey      string          `json:"attempt_key"`
	Stage           AssessmentStage `json:"stage"`
	LandID          string          `json:"land_id,omitempty"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	LastUpdated     time.Time       `json:"last_updated"`
}
