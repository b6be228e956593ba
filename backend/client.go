// Package backend talks to the marketplace REST API. Every endpoint answers with an
// envelope whose status field is "success" or carries a message explaining the failure.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"land-assessment-system/models"
)

const (
	StatusSuccess = "success"

	IdempotencyKeyHeader = "Idempotency-Key"
	sessionCookieName    = "PHPSESSID"
)

// RejectionError means the backend answered but refused the request.
type RejectionError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return e.Message
}

// TransportError means the request never produced a usable answer.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRejection reports whether err is an upstream rejection.
func IsRejection(err error) bool {
	var rejection *RejectionError
	return errors.As(err, &rejection)
}

type envelope struct {
	Status        string            `json:"status"`
	Message       string            `json:"message"`
	Data          json.RawMessage   `json:"data"`
	TransactionID models.FlexibleID `json:"transaction_id"`
}

// Client is a JSON client for the backend. Cookies are kept across calls so a session
// established elsewhere is sent with every request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a Client for baseURL. sessionCookie may be empty.
func NewClient(baseURL, sessionCookie string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Jar:     jar,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if sessionCookie != "" && c.httpClient.Jar != nil {
		u, err := url.Parse(c.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
		}
		c.httpClient.Jar.SetCookies(u, []*http.Cookie{{Name: sessionCookieName, Value: sessionCookie, Path: "/"}})
	}
	return c, nil
}

// CreateLand submits a land record and returns its id.
func (c *Client) CreateLand(ctx context.Context, req models.CreateLandRequest) (string, error) {
	const op = "create land record"

	headers := map[string]string{}
	if req.IdempotencyKey != "" {
		headers[IdempotencyKeyHeader] = req.IdempotencyKey
	}

	env, err := c.post(ctx, op, "/api/lands", nil, req, headers)
	if err != nil {
		return "", err
	}

	var data models.LandCreated
	if err := decodeData(env, &data); err != nil {
		return "", &TransportError{Operation: op, Err: err}
	}
	if data.LandID == "" {
		return "", &TransportError{Operation: op, Err: errors.New("response carries no land_id")}
	}
	return data.LandID.String(), nil
}

// CreatePaymentIntent asks the backend to open a payment intent for a land record.
func (c *Client) CreatePaymentIntent(ctx context.Context, req models.CreatePaymentIntentRequest) (models.PaymentIntentCreated, error) {
	const op = "create payment intent"

	query := url.Values{"action": {"create_payment_intent"}}
	env, err := c.post(ctx, op, "/api/payments/process", query, req, nil)
	if err != nil {
		return models.PaymentIntentCreated{}, err
	}

	var data models.PaymentIntentCreated
	if err := decodeData(env, &data); err != nil {
		return models.PaymentIntentCreated{}, &TransportError{Operation: op, Err: err}
	}
	if data.ClientSecret == "" || data.PaymentIntentID == "" {
		return models.PaymentIntentCreated{}, &TransportError{Operation: op, Err: errors.New("response carries no client_secret or payment_intent_id")}
	}
	return data, nil
}

// ConfirmPayment finalises a paid intent and returns the backend transaction id.
func (c *Client) ConfirmPayment(ctx context.Context, req models.ConfirmPaymentRequest) (string, error) {
	const op = "confirm payment"

	query := url.Values{"action": {"confirm_payment"}}
	env, err := c.post(ctx, op, "/api/payments/process", query, req, nil)
	if err != nil {
		return "", err
	}
	if env.TransactionID == "" {
		return "", &TransportError{Operation: op, Err: errors.New("response carries no transaction_id")}
	}
	return env.TransactionID.String(), nil
}

// ListProducts returns the marketplace listings.
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	const op = "list products"

	env, err := c.do(ctx, op, http.MethodGet, "/api/products", nil, nil, nil)
	if err != nil {
		return nil, err
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}

	var products []models.Product
	if err := decodeData(env, &products); err != nil {
		return nil, &TransportError{Operation: op, Err: err}
	}
	return products, nil
}

func (c *Client) post(ctx context.Context, op, path string, query url.Values, body interface{}, headers map[string]string) (*envelope, error) {
	return c.do(ctx, op, http.MethodPost, path, query, body, headers)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body interface{}, headers map[string]string) (*envelope, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Operation: op, Err: err}
	}
	c.logger.Debug("Backend call finished",
		zap.String("operation", op),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &RejectionError{
				Operation:  op,
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			}
		}
		return nil, &TransportError{Operation: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if env.Status != StatusSuccess || resp.StatusCode >= http.StatusBadRequest {
		message := env.Message
		if message == "" {
			message = fmt.Sprintf("Failed to %s", op)
		}
		return nil, &RejectionError{Operation: op, StatusCode: resp.StatusCode, Message: message}
	}
	return &env, nil
}

func decodeData(env *envelope, v interface{}) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return errors.New("response carries no data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
