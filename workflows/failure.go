package workflows

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"land-assessment-system/activities"
	"land-assessment-system/models"
)

const canceledMessage = "Payment was canceled."

// FailureMessage returns the user-facing message for a failed step. Messages raised by
// the activities are carried verbatim; timeouts and unexpected failures are reported
// as network errors.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Msg
	}

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		if appErr.HasDetails() {
			var msg string
			if err := appErr.Details(&msg); err == nil && msg != "" {
				return msg
			}
		}
		if appErr.Message() != "" {
			return activities.NetworkErrorMessage(errors.New(appErr.Message()))
		}
	}

	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return activities.NetworkErrorMessage(errors.New("request timed out"))
	}

	var canceledErr *temporal.CanceledError
	if errors.As(err, &canceledErr) {
		return canceledMessage
	}

	return activities.NetworkErrorMessage(err)
}
