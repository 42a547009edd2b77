package domain

import "fmt"

// Error types for consistent error handling across services, stores and handlers.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrOCR indicates the OCR engine could not produce text for a document.
type ErrOCR struct {
	Reason string
	Err    error
}

func (e *ErrOCR) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ocr failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ocr failed: %s", e.Reason)
}

func (e *ErrOCR) Unwrap() error {
	return e.Err
}

// ErrUnsupportedMedia indicates an upload whose type cannot be read.
type ErrUnsupportedMedia struct {
	MediaType string
}

func (e *ErrUnsupportedMedia) Error() string {
	return fmt.Sprintf("unsupported media type: %s", e.MediaType)
}

// ErrDelivery indicates a notification could not be handed to its transport.
// The notification stays pending and is retried by the next sweep.
type ErrDelivery struct {
	NotificationID string
	Transport      string
	Err            error
}

func (e *ErrDelivery) Error() string {
	return fmt.Sprintf("delivery failed [%s] for notification %s: %v", e.Transport, e.NotificationID, e.Err)
}

func (e *ErrDelivery) Unwrap() error {
	return e.Err
}

// ErrBusy indicates a sweep that is already running in this process.
type ErrBusy struct {
	Operation string
}

func (e *ErrBusy) Error() string {
	return fmt.Sprintf("%s already in progress", e.Operation)
}
