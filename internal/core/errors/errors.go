package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these represent ingestion contract and business rule violations
var (
	// Webhook authentication
	ErrSignatureInvalid = errors.New("webhook signature is missing or invalid")
	ErrRequestExpired   = errors.New("webhook request timestamp is too old")

	// Payload validation
	ErrMalformedPayload       = errors.New("payload is malformed")
	ErrAgentIDRequired        = errors.New("agent_id is required")
	ErrConversationIDRequired = errors.New("conversation_id is required")
	ErrSubjectRequired        = errors.New("subject is required")

	// Ticket lookup
	ErrTicketNotFound = errors.New("ticket not found")

	// Storage conflicts. The repository translates unique-constraint
	// violations into these so callers can retry the losing insert as an update.
	ErrDuplicateCallKey      = errors.New("ticket already exists for agent/conversation pair")
	ErrDuplicateTicketNumber = errors.New("ticket number already allocated")

	// Operational failures
	ErrAllocationExhausted  = errors.New("ticket number allocation attempts exhausted")
	ErrStorageFailure       = errors.New("blob storage operation failed")
	ErrConfigurationMissing = errors.New("required configuration is missing")
	ErrEvaluationFailed     = errors.New("evaluation request failed")

	// Generic
	ErrNotFound   = errors.New("resource not found")
	ErrInternal   = errors.New("internal server error")
	ErrBadRequest = errors.New("bad request")
)

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors for common cases
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Err:        ErrSignatureInvalid,
		Message:    message,
		Code:       "UNAUTHORIZED",
		StatusCode: 401,
	}
}

func NewNotFoundError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "NOT_FOUND",
		StatusCode: 404,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "An unexpected error occurred",
		Code:       "INTERNAL_ERROR",
		StatusCode: 500,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
