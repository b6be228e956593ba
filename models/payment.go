package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// PaymentSession is created once the backend has issued a payment intent for a land record.
// It is never modified afterwards; a new attempt builds a new session.
type PaymentSession struct {
	LandID          string  `json:"land_id"`
	PaymentIntentID string  `json:"payment_intent_id"`
	ClientSecret    string  `json:"client_secret"`
	Amount          float64 `json:"amount"`
}

// PaymentOutcome is the terminal result of a payment attempt.
// Either ErrorMessage is set, or the transaction fields are.
type PaymentOutcome struct {
	TransactionID   string  `json:"transaction_id,omitempty"`
	PaymentIntentID string  `json:"payment_intent_id,omitempty"`
	Amount          float64 `json:"amount,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

// Succeeded reports whether the outcome is the success variant
func (o PaymentOutcome) Succeeded() bool {
	return o.ErrorMessage == "" && o.TransactionID != ""
}

// FailedOutcome builds the error variant of PaymentOutcome
func FailedOutcome(message string) PaymentOutcome {
	return PaymentOutcome{ErrorMessage: message}
}

// CreateLandRequest is the body of POST /api/lands
type CreateLandRequest struct {
	UserID   string  `json:"user_id"`
	Size     float64 `json:"size"`
	Location string  `json:"location"`
	// IdempotencyKey travels as a header, not in the body
	IdempotencyKey string `json:"-"`
}

// CreatePaymentIntentRequest is the body of the create_payment_intent action
type CreatePaymentIntentRequest struct {
	UserID string  `json:"user_id"`
	LandID string  `json:"land_id"`
	Amount float64 `json:"amount"`
}

// CardConfirmation carries what the gateway needs to confirm a card payment
type CardConfirmation struct {
	ClientSecret    string `json:"client_secret"`
	PaymentMethodID string `json:"payment_method_id"`
}

// ConfirmPaymentRequest is the body of the confirm_payment action
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	UserID          string `json:"user_id"`
	LandID          string `json:"land_id"`
}

// LandCreated is the data section of a successful POST /api/lands
type LandCreated struct {
	LandID FlexibleID `json:"land_id"`
}

// PaymentIntentCreated is the data section of a successful create_payment_intent
type PaymentIntentCreated struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// FlexibleID accepts identifiers that the backend encodes either as JSON strings or numbers
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier is neither string nor number: %s", string(data))
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*id = FlexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}
