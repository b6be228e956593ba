// Package session drives one user's land assessment: collecting the land details,
// freezing them into a draft, and paying the assessment fee through the workflow.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"land-assessment-system/geocode"
	"land-assessment-system/landdetails"
	"land-assessment-system/models"
	"land-assessment-system/workflows"
)

// DefaultFee is the assessment fee charged once per land draft submission.
const DefaultFee = 5000

var (
	ErrNotPaying        = errors.New("land details must be submitted before paying")
	ErrSubmitInProgress = errors.New("a payment is already being submitted")
	ErrMissingCard      = models.NewValidationError("Please enter your card details.")
)

// PaymentRunner executes the payment workflow for one request.
type PaymentRunner interface {
	Run(ctx context.Context, req models.AssessmentRequest) (models.PaymentOutcome, error)
}

// Session is safe for concurrent use.
type Session struct {
	mu         sync.Mutex
	collector  *landdetails.Collector
	runner     PaymentRunner
	ownerID    string
	fee        float64
	timeout    time.Duration
	newKey     func() string
	logger     *zap.Logger
	draft      models.LandDraft
	attemptKey string
	outcome    *models.PaymentOutcome
	submitting atomic.Bool
}

// Option customises a Session.
type Option func(*Session)

// WithFee overrides DefaultFee.
func WithFee(fee float64) Option {
	return func(s *Session) { s.fee = fee }
}

// WithActivityTimeout bounds each remote payment step.
func WithActivityTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithKeyGenerator replaces the attempt key generator.
func WithKeyGenerator(fn func() string) Option {
	return func(s *Session) { s.newKey = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// New creates a session for ownerID. Locations committed on resolver are fed to the
// collector; resolver may be nil when locations are set by other means.
func New(ownerID string, resolver *geocode.Resolver, runner PaymentRunner, opts ...Option) *Session {
	s := &Session{
		collector: landdetails.NewCollector(),
		runner:    runner,
		ownerID:   ownerID,
		fee:       DefaultFee,
		newKey:    func() string { return uuid.New().String() },
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if resolver != nil {
		resolver.OnResolved(s.collector.SetLocation)
	}
	return s
}

// SetSize forwards the raw size input to the collector.
func (s *Session) SetSize(raw string) {
	s.collector.SetSize(raw)
}

// SetLocation commits a resolved location.
func (s *Session) SetLocation(loc geocode.Location) {
	s.collector.SetLocation(loc)
}

// Collector exposes the land detail collector.
func (s *Session) Collector() *landdetails.Collector {
	return s.collector
}

// Proceed validates the land details and moves to the payment step. Proceeding again with
// an unchanged draft keeps the attempt key, so the backend recognises the land record.
func (s *Session) Proceed() (models.LandDraft, error) {
	if s.submitting.Load() {
		return models.LandDraft{}, ErrSubmitInProgress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft, err := s.collector.Proceed()
	if err != nil {
		return models.LandDraft{}, err
	}

	if s.attemptKey == "" || draft != s.draft {
		s.attemptKey = s.newKey()
	}
	s.draft = draft
	s.outcome = nil

	s.logger.Info("Land details accepted",
		zap.String("attempt_key", s.attemptKey),
		zap.Float64("size", draft.Size),
		zap.String("location", draft.Location))
	return draft, nil
}

// Back returns to the land details form keeping the entered values.
func (s *Session) Back() error {
	if s.submitting.Load() {
		return ErrSubmitInProgress
	}
	s.collector.Back()
	return nil
}

// Pay charges the assessment fee for the frozen draft. It returns an error only when the
// payment could not be attempted; every failure of the attempt itself is reported in the
// outcome. On success the draft is discarded and the session returns to the land details
// step; on failure it stays on the payment step so the user can retry.
func (s *Session) Pay(ctx context.Context, paymentMethodID string) (models.PaymentOutcome, error) {
	if !s.submitting.CompareAndSwap(false, true) {
		return models.PaymentOutcome{}, ErrSubmitInProgress
	}
	defer s.submitting.Store(false)

	s.mu.Lock()
	if s.collector.Step() != models.StepPaying || s.draft.IsZero() {
		s.mu.Unlock()
		return models.PaymentOutcome{}, ErrNotPaying
	}
	if paymentMethodID == "" {
		s.mu.Unlock()
		return models.PaymentOutcome{}, ErrMissingCard
	}
	req := models.AssessmentRequest{
		AttemptKey:      s.attemptKey,
		OwnerID:         s.ownerID,
		Draft:           s.draft,
		Amount:          s.fee,
		PaymentMethodID: paymentMethodID,
		ActivityTimeout: s.timeout,
	}
	s.mu.Unlock()

	logger := s.logger.With(zap.String("attempt_key", req.AttemptKey))
	logger.Info("Submitting assessment payment", zap.Float64("amount", req.Amount))

	outcome, err := s.runner.Run(ctx, req)
	if err != nil {
		logger.Error("Payment run failed", zap.Error(err))
		outcome = models.FailedOutcome(workflows.FailureMessage(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = &outcome

	if !outcome.Succeeded() {
		if outcome.ErrorMessage == "" {
			outcome = models.FailedOutcome("Payment failed. Please try again.")
			s.outcome = &outcome
		}
		logger.Warn("Assessment payment failed", zap.String("error", outcome.ErrorMessage))
		return outcome, nil
	}

	logger.Info("Assessment payment succeeded",
		zap.String("transaction_id", outcome.TransactionID),
		zap.String("payment_intent_id", outcome.PaymentIntentID))
	s.collector.Reset()
	s.draft = models.LandDraft{}
	s.attemptKey = ""
	return outcome, nil
}

// Step returns the active step.
func (s *Session) Step() models.WorkflowStep {
	return s.collector.Step()
}

// Draft returns the frozen draft, zero before Proceed or after a successful payment.
func (s *Session) Draft() models.LandDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// AttemptKey returns the key of the current attempt.
func (s *Session) AttemptKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptKey
}

// Outcome returns the result of the last payment attempt.
func (s *Session) Outcome() (models.PaymentOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return models.PaymentOutcome{}, false
	}
	return *s.outcome, true
}

// Submitting reports whether a payment is in flight.
func (s *Session) Submitting() bool {
	return s.submitting.Load()
}
