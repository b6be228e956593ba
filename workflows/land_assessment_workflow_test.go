package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"land-assessment-system/activities"
	"land-assessment-system/backend"
	"land-assessment-system/gateway"
	"land-assessment-system/models"
)

type callCounts struct {
	lands    atomic.Int32
	intents  atomic.Int32
	confirms atomic.Int32
}

// backendReplies holds the JSON envelope returned by each endpoint.
type backendReplies struct {
	land    map[string]interface{}
	intent  map[string]interface{}
	confirm map[string]interface{}
}

func successReplies() backendReplies {
	return backendReplies{
		land: map[string]interface{}{"status": "success", "data": map[string]interface{}{"land_id": 17}},
		intent: map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"client_secret": "pi_1_secret_x", "payment_intent_id": "pi_1"},
		},
		confirm: map[string]interface{}{"status": "success", "transaction_id": "TXN-9"},
	}
}

func newFakeBackend(t *testing.T, replies backendReplies) (*backend.Client, *callCounts) {
	t.Helper()
	counts := &callCounts{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reply map[string]interface{}
		switch {
		case r.URL.Path == "/api/lands":
			counts.lands.Add(1)
			reply = replies.land
		case r.URL.Query().Get("action") == "create_payment_intent":
			counts.intents.Add(1)
			reply = replies.intent
		case r.URL.Query().Get("action") == "confirm_payment":
			counts.confirms.Add(1)
			reply = replies.confirm
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(server.Close)

	client, err := backend.NewClient(server.URL, "")
	require.NoError(t, err)
	return client, counts
}

type fakeGateway struct {
	status string
	err    error
	calls  atomic.Int32
}

func (g *fakeGateway) ConfirmCardPayment(ctx context.Context, clientSecret, paymentMethodID string) (string, error) {
	g.calls.Add(1)
	return g.status, g.err
}

func assessmentRequest() models.AssessmentRequest {
	return models.AssessmentRequest{
		AttemptKey:      "attempt-001",
		OwnerID:         "42",
		Draft:           models.LandDraft{Size: 5.5, Location: "Badulla, Sri Lanka"},
		Amount:          5000,
		PaymentMethodID: "pm_card_visa",
	}
}

func runWorkflow(t *testing.T, replies backendReplies, gw *fakeGateway, req models.AssessmentRequest) (models.PaymentOutcome, models.AssessmentState, *callCounts) {
	t.Helper()
	client, counts := newFakeBackend(t, replies)

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.RegisterActivity(activities.NewActivities(client))
	env.RegisterActivity(activities.NewPaymentActivities(client, gw))

	env.ExecuteWorkflow(LandAssessmentWorkflow, req)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var outcome models.PaymentOutcome
	require.NoError(t, env.GetWorkflowResult(&outcome))

	encoded, err := env.QueryWorkflow(QueryState)
	require.NoError(t, err)
	var state models.AssessmentState
	require.NoError(t, encoded.Get(&state))

	return outcome, state, counts
}

func TestLandAssessmentWorkflow_Success(t *testing.T) {
	gw := &fakeGateway{status: gateway.StatusSucceeded}

	outcome, state, counts := runWorkflow(t, successReplies(), gw, assessmentRequest())

	assert.True(t, outcome.Succeeded())
	assert.Equal(t, models.PaymentOutcome{TransactionID: "TXN-9", PaymentIntentID: "pi_1", Amount: 5000}, outcome)

	assert.Equal(t, int32(1), counts.lands.Load())
	assert.Equal(t, int32(1), counts.intents.Load())
	assert.Equal(t, int32(1), gw.calls.Load())
	assert.Equal(t, int32(1), counts.confirms.Load())

	assert.Equal(t, models.StageCompleted, state.Stage)
	assert.Equal(t, "17", state.LandID)
	assert.Equal(t, "pi_1", state.PaymentIntentID)
	assert.Equal(t, "TXN-9", state.TransactionID)
	assert.Empty(t, state.ErrorMessage)
}

func TestLandAssessmentWorkflow_StepFailures(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(r *backendReplies)
		gw           *fakeGateway
		wantMessage  string
		wantLands    int32
		wantIntents  int32
		wantCards    int32
		wantConfirms int32
	}{
		{
			name: "Failure - Land Record Rejected",
			mutate: func(r *backendReplies) {
				r.land = map[string]interface{}{"status": "error", "message": "You must be logged in"}
			},
			gw:          &fakeGateway{status: gateway.StatusSucceeded},
			wantMessage: "You must be logged in",
			wantLands:   1,
		},
		{
			name: "Failure - Payment Intent Rejected",
			mutate: func(r *backendReplies) {
				r.intent = map[string]interface{}{"status": "error", "message": "Insufficient backend funds config"}
			},
			gw:          &fakeGateway{status: gateway.StatusSucceeded},
			wantMessage: "Insufficient backend funds config",
			wantLands:   1,
			wantIntents: 1,
		},
		{
			name:        "Failure - Card Declined",
			gw:          &fakeGateway{err: &gateway.CardError{Code: "card_declined", Message: "Your card was declined."}},
			wantMessage: "Your card was declined.",
			wantLands:   1,
			wantIntents: 1,
			wantCards:   1,
		},
		{
			name:        "Failure - Card Requires Action",
			gw:          &fakeGateway{status: gateway.StatusRequiresAction},
			wantMessage: "Payment requires additional authentication. Please try again.",
			wantLands:   1,
			wantIntents: 1,
			wantCards:   1,
		},
		{
			name: "Failure - Confirmation Rejected",
			mutate: func(r *backendReplies) {
				r.confirm = map[string]interface{}{"status": "error", "message": "Payment not completed"}
			},
			gw:           &fakeGateway{status: gateway.StatusSucceeded},
			wantMessage:  "Payment not completed",
			wantLands:    1,
			wantIntents:  1,
			wantCards:    1,
			wantConfirms: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replies := successReplies()
			if tt.mutate != nil {
				tt.mutate(&replies)
			}

			outcome, state, counts := runWorkflow(t, replies, tt.gw, assessmentRequest())

			assert.False(t, outcome.Succeeded())
			assert.Equal(t, tt.wantMessage, outcome.ErrorMessage)
			assert.Empty(t, outcome.TransactionID)

			assert.Equal(t, tt.wantLands, counts.lands.Load())
			assert.Equal(t, tt.wantIntents, counts.intents.Load())
			assert.Equal(t, tt.wantCards, tt.gw.calls.Load())
			assert.Equal(t, tt.wantConfirms, counts.confirms.Load())

			assert.Equal(t, models.StageFailed, state.Stage)
			assert.Equal(t, tt.wantMessage, state.ErrorMessage)
		})
	}
}

func TestLandAssessmentWorkflow_InvalidRequest(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(req *models.AssessmentRequest)
		wantMessage string
	}{
		{
			name:        "Negative Size",
			mutate:      func(req *models.AssessmentRequest) { req.Draft.Size = -2 },
			wantMessage: "Land size must be positive.",
		},
		{
			name:        "Missing Location",
			mutate:      func(req *models.AssessmentRequest) { req.Draft.Location = "" },
			wantMessage: "Please fill in all fields.",
		},
		{
			name:        "Zero Fee",
			mutate:      func(req *models.AssessmentRequest) { req.Amount = 0 },
			wantMessage: "Assessment fee must be positive.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := assessmentRequest()
			tt.mutate(&req)
			gw := &fakeGateway{status: gateway.StatusSucceeded}

			outcome, _, counts := runWorkflow(t, successReplies(), gw, req)

			assert.Equal(t, tt.wantMessage, outcome.ErrorMessage)
			assert.Zero(t, counts.lands.Load())
			assert.Zero(t, gw.calls.Load())
		})
	}
}

func TestLandAssessmentWorkflow_MockedActivities(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	act := &activities.Activities{}
	paymentAct := &activities.PaymentActivities{}
	env.RegisterActivity(act)
	env.RegisterActivity(paymentAct)

	env.OnActivity(act.CreateLandRecord, mock.Anything, mock.Anything).Return("17", nil).Once()
	env.OnActivity(paymentAct.CreatePaymentIntent, mock.Anything, mock.Anything, "17").Return(
		models.PaymentSession{LandID: "17", PaymentIntentID: "pi_1", ClientSecret: "pi_1_secret_x", Amount: 5000}, nil).Once()
	env.OnActivity(paymentAct.ConfirmCardPayment, mock.Anything, models.CardConfirmation{
		ClientSecret:    "pi_1_secret_x",
		PaymentMethodID: "pm_card_visa",
	}).Return(gateway.StatusSucceeded, nil).Once()
	env.OnActivity(paymentAct.ConfirmPayment, mock.Anything, mock.Anything, mock.Anything).Return("TXN-9", nil).Once()

	env.ExecuteWorkflow(LandAssessmentWorkflow, assessmentRequest())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var outcome models.PaymentOutcome
	require.NoError(t, env.GetWorkflowResult(&outcome))
	assert.Equal(t, "TXN-9", outcome.TransactionID)
	env.AssertExpectations(t)
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "Nil",
			err:  nil,
			want: "",
		},
		{
			name: "Validation",
			err:  models.ErrSizeNotPositive,
			want: "Land size must be positive.",
		},
		{
			name: "Application Error With Details",
			err:  temporal.NewNonRetryableApplicationError("boom", activities.ErrTypeRejected, nil, "Insufficient backend funds config"),
			want: "Insufficient backend funds config",
		},
		{
			name: "Application Error Without Details",
			err:  temporal.NewApplicationError("connection reset", "GenericError"),
			want: "Network error: connection reset",
		},
		{
			name: "Timeout",
			err:  temporal.NewTimeoutError(enumspb.TIMEOUT_TYPE_START_TO_CLOSE, nil),
			want: "Network error: request timed out",
		},
		{
			name: "Canceled",
			err:  temporal.NewCanceledError(),
			want: "Payment was canceled.",
		},
		{
			name: "Plain Error",
			err:  errors.New("dial tcp: refused"),
			want: "Network error: dial tcp: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureMessage(tt.err))
		})
	}
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "land-assessment-abc", WorkflowID("abc"))
}
