package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"land-assessment-system/geocode"
	"land-assessment-system/models"
)

type fakeRunner struct {
	mu       sync.Mutex
	requests []models.AssessmentRequest
	outcome  models.PaymentOutcome
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, req models.AssessmentRequest) (models.PaymentOutcome, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.outcome, f.err
}

func (f *fakeRunner) calls() []models.AssessmentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AssessmentRequest(nil), f.requests...)
}

type stubGeocoder struct{}

func (stubGeocoder) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	return nil, nil
}

func (stubGeocoder) Reverse(ctx context.Context, lat, lng float64) (models.SearchResult, error) {
	return models.SearchResult{}, errors.New("offline")
}

func sequentialKeys() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("attempt-%d", n)
	}
}

func newTestSession(t *testing.T, runner PaymentRunner) (*Session, *geocode.Resolver) {
	t.Helper()
	resolver := geocode.NewResolver(stubGeocoder{}, geocode.SriLanka)
	t.Cleanup(resolver.Close)

	s := New("42", resolver, runner,
		WithKeyGenerator(sequentialKeys()),
		WithLogger(zaptest.NewLogger(t)))
	return s, resolver
}

func selectBadulla(t *testing.T, resolver *geocode.Resolver) {
	t.Helper()
	_, err := resolver.Select(models.SearchResult{DisplayName: "Badulla, Sri Lanka", Lat: 6.99, Lon: 81.05, CountryCode: "lk"})
	require.NoError(t, err)
}

func successOutcome() models.PaymentOutcome {
	return models.PaymentOutcome{TransactionID: "TXN-9", PaymentIntentID: "pi_1", Amount: DefaultFee}
}

func TestSession_ProceedToPayment(t *testing.T) {
	s, resolver := newTestSession(t, &fakeRunner{})

	s.SetSize("5.5")
	selectBadulla(t, resolver)

	draft, err := s.Proceed()
	require.NoError(t, err)

	assert.Equal(t, models.LandDraft{Size: 5.5, Location: "Badulla, Sri Lanka"}, draft)
	assert.Equal(t, models.StepPaying, s.Step())
	assert.Equal(t, "attempt-1", s.AttemptKey())
}

func TestSession_RejectsNegativeSize(t *testing.T) {
	runner := &fakeRunner{}
	s, resolver := newTestSession(t, runner)

	s.SetSize("-2")
	selectBadulla(t, resolver)

	_, err := s.Proceed()
	require.Error(t, err)
	assert.Equal(t, "Land size must be positive.", err.Error())
	assert.Equal(t, models.StepCollectingDetails, s.Step())

	_, err = s.Pay(context.Background(), "pm_card_visa")
	assert.ErrorIs(t, err, ErrNotPaying)
	assert.Empty(t, runner.calls())
}

func TestSession_PaySuccessResetsDraft(t *testing.T) {
	runner := &fakeRunner{outcome: successOutcome()}
	s, resolver := newTestSession(t, runner)

	s.SetSize("5.5")
	selectBadulla(t, resolver)
	_, err := s.Proceed()
	require.NoError(t, err)

	outcome, err := s.Pay(context.Background(), "pm_card_visa")
	require.NoError(t, err)

	assert.True(t, outcome.Succeeded())
	assert.Equal(t, "TXN-9", outcome.TransactionID)

	calls := runner.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.AssessmentRequest{
		AttemptKey:      "attempt-1",
		OwnerID:         "42",
		Draft:           models.LandDraft{Size: 5.5, Location: "Badulla, Sri Lanka"},
		Amount:          5000,
		PaymentMethodID: "pm_card_visa",
	}, calls[0])

	assert.Equal(t, models.StepCollectingDetails, s.Step())
	assert.True(t, s.Draft().IsZero())
	assert.Empty(t, s.Collector().Size())
	assert.True(t, s.Collector().Location().IsZero())

	last, ok := s.Outcome()
	require.True(t, ok)
	assert.Equal(t, outcome, last)
}

func TestSession_PayFailureKeepsPaymentStep(t *testing.T) {
	runner := &fakeRunner{outcome: models.FailedOutcome("Insufficient backend funds config")}
	s, resolver := newTestSession(t, runner)

	s.SetSize("5.5")
	selectBadulla(t, resolver)
	_, err := s.Proceed()
	require.NoError(t, err)

	outcome, err := s.Pay(context.Background(), "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, "Insufficient backend funds config", outcome.ErrorMessage)
	assert.Equal(t, models.StepPaying, s.Step())
	assert.Equal(t, models.LandDraft{Size: 5.5, Location: "Badulla, Sri Lanka"}, s.Draft())

	// A retry reuses the attempt key so the land record is not duplicated.
	runner.outcome = successOutcome()
	outcome, err = s.Pay(context.Background(), "pm_card_visa")
	require.NoError(t, err)
	assert.True(t, outcome.Succeeded())

	calls := runner.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].AttemptKey, calls[1].AttemptKey)
}

func TestSession_RunnerErrorBecomesOutcome(t *testing.T) {
	runner := &fakeRunner{err: errors.New("connection refused")}
	s, resolver := newTestSession(t, runner)

	s.SetSize("3")
	selectBadulla(t, resolver)
	_, err := s.Proceed()
	require.NoError(t, err)

	outcome, err := s.Pay(context.Background(), "pm_card_visa")
	require.NoError(t, err)
	assert.Equal(t, "Network error: connection refused", outcome.ErrorMessage)
	assert.Equal(t, models.StepPaying, s.Step())
}

func TestSession_ConcurrentPayRejected(t *testing.T) {
	runner := &fakeRunner{
		outcome: successOutcome(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s, resolver := newTestSession(t, runner)

	s.SetSize("5.5")
	selectBadulla(t, resolver)
	_, err := s.Proceed()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Pay(context.Background(), "pm_card_visa")
		done <- err
	}()
	<-runner.started

	assert.True(t, s.Submitting())
	_, err = s.Pay(context.Background(), "pm_card_visa")
	assert.ErrorIs(t, err, ErrSubmitInProgress)
	assert.ErrorIs(t, s.Back(), ErrSubmitInProgress)

	close(runner.release)
	require.NoError(t, <-done)
	assert.False(t, s.Submitting())
	assert.Len(t, runner.calls(), 1)
}

func TestSession_BackKeepsDetails(t *testing.T) {
	s, resolver := newTestSession(t, &fakeRunner{})

	s.SetSize("5.5")
	selectBadulla(t, resolver)
	_, err := s.Proceed()
	require.NoError(t, err)
	key := s.AttemptKey()

	require.NoError(t, s.Back())
	assert.Equal(t, models.StepCollectingDetails, s.Step())
	assert.Equal(t, "5.5", s.Collector().Size())
	assert.Equal(t, "Badulla, Sri Lanka", s.Collector().Location().Address())

	_, err = s.Proceed()
	require.NoError(t, err)
	assert.Equal(t, key, s.AttemptKey(), "unchanged draft keeps its attempt key")

	require.NoError(t, s.Back())
	s.SetSize("6")
	_, err = s.Proceed()
	require.NoError(t, err)
	assert.NotEqual(t, key, s.AttemptKey(), "edited draft is a new attempt")
}

func TestSession_PayRequiresCard(t *testing.T) {
	runner := &fakeRunner{}
	s, resolver := newTestSession(t, runner)

	s.SetSize("5.5")
	selectBadulla(t, resolver)
	_, err := s.Proceed()
	require.NoError(t, err)

	_, err = s.Pay(context.Background(), "")
	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))
	assert.Empty(t, runner.calls())
}

func TestSession_ClickFallbackFeedsCollector(t *testing.T) {
	s, resolver := newTestSession(t, &fakeRunner{})

	resolver.OpenMap()
	loc, err := resolver.Click(context.Background(), 7.2906, 80.6337)
	require.NoError(t, err)
	assert.True(t, loc.Approximate())

	s.SetSize("2")
	assert.True(t, s.Collector().CanProceed())

	draft, err := s.Proceed()
	require.NoError(t, err)
	assert.Equal(t, "7.290600, 80.633700", draft.Location)
}
