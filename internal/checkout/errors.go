package checkout

import (
	"errors"
	"fmt"
)

const (
	ReasonNameRequired = "name_required"
	ReasonEmptyCart    = "empty_cart"

	fallbackRejectMessage = "checkout failed"
)

var ErrConcurrentSubmission = errors.New("checkout already in progress")

// ValidationError is returned before any network call when the submission is not acceptable.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "checkout validation failed: " + e.Reason
}

// RejectedError is the order backend refusing the order. Message is the backend's own
// text and is meant to be shown to the customer as is.
type RejectedError struct {
	StatusCode int
	Message    string
}

func NewRejectedError(status int, message string) *RejectedError {
	if message == "" {
		message = fallbackRejectMessage
	}
	return &RejectedError{StatusCode: status, Message: message}
}

func (e *RejectedError) Error() string {
	return e.Message
}

type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("order backend unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
