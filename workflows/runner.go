package workflows

import (
	"context"
	"errors"
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"land-assessment-system/models"
)

// ClientRunner runs LandAssessmentWorkflow through a Temporal client and waits for its outcome.
type ClientRunner struct {
	client    client.Client
	taskQueue string
}

// NewClientRunner creates a runner that starts workflows on taskQueue
func NewClientRunner(c client.Client, taskQueue string) *ClientRunner {
	return &ClientRunner{client: c, taskQueue: taskQueue}
}

// Run starts the workflow for the request's attempt key, or attaches to the run already in
// progress for it, and blocks until the outcome is known. A key whose last run already
// succeeded is not run again; that run's outcome is returned instead.
func (r *ClientRunner) Run(ctx context.Context, req models.AssessmentRequest) (models.PaymentOutcome, error) {
	prior, err := r.lastOutcome(ctx, WorkflowID(req.AttemptKey))
	if err != nil {
		return models.PaymentOutcome{}, err
	}
	if prior.Succeeded() {
		return prior, nil
	}

	options := client.StartWorkflowOptions{
		ID:                    WorkflowID(req.AttemptKey),
		TaskQueue:             r.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}

	we, err := r.client.ExecuteWorkflow(ctx, options, LandAssessmentWorkflow, req)
	if err != nil {
		return models.PaymentOutcome{}, fmt.Errorf("unable to execute workflow: %w", err)
	}

	var outcome models.PaymentOutcome
	if err := we.Get(ctx, &outcome); err != nil {
		return models.PaymentOutcome{}, fmt.Errorf("workflow %s failed: %w", we.GetID(), err)
	}
	return outcome, nil
}

// lastOutcome returns the outcome of the latest completed run for workflowID, or the zero
// outcome when there is none.
func (r *ClientRunner) lastOutcome(ctx context.Context, workflowID string) (models.PaymentOutcome, error) {
	resp, err := r.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return models.PaymentOutcome{}, nil
		}
		return models.PaymentOutcome{}, fmt.Errorf("failed to describe workflow %s: %w", workflowID, err)
	}

	info := resp.GetWorkflowExecutionInfo()
	if info.GetStatus() != enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED {
		return models.PaymentOutcome{}, nil
	}

	var outcome models.PaymentOutcome
	run := r.client.GetWorkflow(ctx, workflowID, info.GetExecution().GetRunId())
	if err := run.Get(ctx, &outcome); err != nil {
		return models.PaymentOutcome{}, fmt.Errorf("failed to read outcome of workflow %s: %w", workflowID, err)
	}
	return outcome, nil
}

// State queries the current state of the run for attemptKey.
func (r *ClientRunner) State(ctx context.Context, attemptKey string) (models.AssessmentState, error) {
	resp, err := r.client.QueryWorkflow(ctx, WorkflowID(attemptKey), "", QueryState)
	if err != nil {
		return models.AssessmentState{}, fmt.Errorf("failed to query workflow: %w", err)
	}

	var state models.AssessmentState
	if err := resp.Get(&state); err != nil {
		return models.AssessmentState{}, fmt.Errorf("failed to decode query result: %w", err)
	}
	return state, nil
}
