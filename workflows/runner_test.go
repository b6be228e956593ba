package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	commonpb "go.temporal.io/api/common/v1"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"land-assessment-system/models"
)

// stateValue stands in for the encoded query result.
type stateValue struct {
	state models.AssessmentState
}

func (v stateValue) HasValue() bool { return true }

func (v stateValue) Get(valuePtr interface{}) error {
	*valuePtr.(*models.AssessmentState) = v.state
	return nil
}

func describeResponse(status enumspb.WorkflowExecutionStatus, runID string) *workflowservice.DescribeWorkflowExecutionResponse {
	return &workflowservice.DescribeWorkflowExecutionResponse{
		WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{
			Execution: &commonpb.WorkflowExecution{WorkflowId: WorkflowID("attempt-001"), RunId: runID},
			Status:    status,
		},
	}
}

func runReturning(outcome models.PaymentOutcome) *mocks.WorkflowRun {
	run := &mocks.WorkflowRun{}
	run.On("Get", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			*args.Get(1).(*models.PaymentOutcome) = outcome
		}).
		Return(nil)
	return run
}

func startOptions(opts client.StartWorkflowOptions) bool {
	return opts.ID == "land-assessment-attempt-001" &&
		opts.TaskQueue == "land-assessment-queue" &&
		opts.WorkflowIDReusePolicy == enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE
}

func TestClientRunner_Run(t *testing.T) {
	req := assessmentRequest()
	paid := models.PaymentOutcome{TransactionID: "txn_1", PaymentIntentID: "pi_1", Amount: 5000}
	failed := models.FailedOutcome("Your card was declined.")

	tests := []struct {
		name        string
		setup       func(c *mocks.Client)
		wantOutcome models.PaymentOutcome
		wantStarted bool
	}{
		{
			name: "Success - First run starts the workflow",
			setup: func(c *mocks.Client) {
				c.On("DescribeWorkflowExecution", mock.Anything, "land-assessment-attempt-001", "").
					Return(nil, serviceerror.NewNotFound("workflow not found"))
				c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(startOptions), mock.Anything, req).
					Return(runReturning(paid), nil)
			},
			wantOutcome: paid,
			wantStarted: true,
		},
		{
			name: "Success - Failed key is retried",
			setup: func(c *mocks.Client) {
				c.On("DescribeWorkflowExecution", mock.Anything, "land-assessment-attempt-001", "").
					Return(describeResponse(enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED, "run-1"), nil)
				c.On("GetWorkflow", mock.Anything, "land-assessment-attempt-001", "run-1").
					Return(runReturning(failed))
				c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(startOptions), mock.Anything, req).
					Return(runReturning(paid), nil)
			},
			wantOutcome: paid,
			wantStarted: true,
		},
		{
			name: "Success - Running key is attached to",
			setup: func(c *mocks.Client) {
				c.On("DescribeWorkflowExecution", mock.Anything, "land-assessment-attempt-001", "").
					Return(describeResponse(enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING, "run-1"), nil)
				c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(startOptions), mock.Anything, req).
					Return(runReturning(paid), nil)
			},
			wantOutcome: paid,
			wantStarted: true,
		},
		{
			name: "Success - Paid key is not charged again",
			setup: func(c *mocks.Client) {
				c.On("DescribeWorkflowExecution", mock.Anything, "land-assessment-attempt-001", "").
					Return(describeResponse(enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED, "run-1"), nil)
				c.On("GetWorkflow", mock.Anything, "land-assessment-attempt-001", "run-1").
					Return(runReturning(paid))
			},
			wantOutcome: paid,
			wantStarted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &mocks.Client{}
			tt.setup(c)

			runner := NewClientRunner(c, "land-assessment-queue")
			outcome, err := runner.Run(context.Background(), req)
			require.NoError(t, err)

			assert.Equal(t, tt.wantOutcome, outcome)
			if tt.wantStarted {
				c.AssertCalled(t, "ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, req)
			} else {
				c.AssertNotCalled(t, "ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			c.AssertExpectations(t)
		})
	}
}

func TestClientRunner_RunDescribeError(t *testing.T) {
	c := &mocks.Client{}
	c.On("DescribeWorkflowExecution", mock.Anything, "land-assessment-attempt-001", "").
		Return(nil, serviceerror.NewUnavailable("frontend down"))

	_, err := NewClientRunner(c, "land-assessment-queue").Run(context.Background(), assessmentRequest())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to describe workflow")
	c.AssertNotCalled(t, "ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClientRunner_RunExecuteError(t *testing.T) {
	c := &mocks.Client{}
	c.On("DescribeWorkflowExecution", mock.Anything, mock.Anything, "").
		Return(nil, serviceerror.NewNotFound("workflow not found"))
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("namespace not found"))

	_, err := NewClientRunner(c, "land-assessment-queue").Run(context.Background(), assessmentRequest())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to execute workflow")
}

func TestClientRunner_State(t *testing.T) {
	want := models.AssessmentState{AttemptKey: "attempt-001", Stage: models.StageIntentCreated, LandID: "17"}

	c := &mocks.Client{}
	c.On("QueryWorkflow", mock.Anything, "land-assessment-attempt-001", "", QueryState).
		Return(stateValue{state: want}, nil)

	got, err := NewClientRunner(c, "land-assessment-queue").State(context.Background(), "attempt-001")

	require.NoError(t, err)
	assert.Equal(t, want, got)
	c.AssertExpectations(t)
}
