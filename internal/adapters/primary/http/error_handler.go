package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/voxline/robocall-qa-backend/internal/adapters/primary/http/middleware"
	apperrors "github.com/voxline/robocall-qa-backend/internal/core/errors"
)

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	return mw.GetRequestID(ctx)
}

// ErrorResponse is the standard JSON error response format
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponse includes field-level validation errors
type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler with the given logger
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle processes an error and writes the appropriate HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	requestID := GetRequestID(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.logError(r, appErr.StatusCode, appErr.Err, requestID)
		h.writeErrorResponse(w, appErr.StatusCode, ErrorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		})
		return
	}

	var validationErrs *apperrors.ValidationErrors
	if errors.As(err, &validationErrs) {
		h.logError(r, http.StatusBadRequest, err, requestID)
		h.writeValidationErrorResponse(w, validationErrs)
		return
	}

	statusCode, response := h.mapDomainError(err)
	h.logError(r, statusCode, err, requestID)
	h.writeErrorResponse(w, statusCode, response)
}

// mapDomainError converts domain errors to HTTP status codes and responses
func (h *ErrorHandler) mapDomainError(err error) (int, ErrorResponse) {
	switch {
	// Webhook authentication. An invalid signature is unauthorized; a valid
	// but stale one is forbidden so the sender can tell the two apart.
	case errors.Is(err, apperrors.ErrSignatureInvalid):
		return http.StatusUnauthorized, ErrorResponse{
			Error: "Webhook signature is missing or invalid",
			Code:  "SIGNATURE_INVALID",
		}
	case errors.Is(err, apperrors.ErrRequestExpired):
		return http.StatusForbidden, ErrorResponse{
			Error: "Webhook request has expired",
			Code:  "REQUEST_EXPIRED",
		}

	// Payload validation
	case errors.Is(err, apperrors.ErrMalformedPayload),
		errors.Is(err, apperrors.ErrAgentIDRequired),
		errors.Is(err, apperrors.ErrConversationIDRequired),
		errors.Is(err, apperrors.ErrSubjectRequired),
		errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		}

	// Not found
	case errors.Is(err, apperrors.ErrTicketNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: "Ticket not found",
			Code:  "TICKET_NOT_FOUND",
		}
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: "Resource not found",
			Code:  "NOT_FOUND",
		}

	// Conflicts
	case errors.Is(err, apperrors.ErrDuplicateCallKey):
		return http.StatusConflict, ErrorResponse{
			Error: "A ticket already exists for this agent and conversation",
			Code:  "DUPLICATE_CALL_KEY",
		}

	// Operational failures. These surface as 500 so webhook senders retry
	// the delivery.
	case errors.Is(err, apperrors.ErrAllocationExhausted):
		return http.StatusInternalServerError, ErrorResponse{
			Error: "Could not allocate a ticket number",
			Code:  "ALLOCATION_EXHAUSTED",
		}
	case errors.Is(err, apperrors.ErrStorageFailure):
		return http.StatusInternalServerError, ErrorResponse{
			Error: "Audio storage failed",
			Code:  "STORAGE_FAILURE",
		}
	case errors.Is(err, apperrors.ErrConfigurationMissing):
		return http.StatusInternalServerError, ErrorResponse{
			Error: "Service is misconfigured",
			Code:  "CONFIGURATION_MISSING",
		}
	case errors.Is(err, apperrors.ErrEvaluationFailed):
		return http.StatusBadGateway, ErrorResponse{
			Error: "Evaluation service request failed",
			Code:  "EVALUATION_FAILED",
		}

	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "An unexpected error occurred",
			Code:  "INTERNAL_ERROR",
		}
	}
}

// logError logs the error with appropriate context
func (h *ErrorHandler) logError(r *http.Request, statusCode int, err error, requestID string) {
	logAttrs := []any{
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", statusCode,
		"error", err.Error(),
	}

	switch {
	case statusCode >= 500:
		h.logger.Error("server error", logAttrs...)
	case statusCode >= 400:
		h.logger.Warn("client error", logAttrs...)
	default:
		h.logger.Info("request error", logAttrs...)
	}
}

// writeErrorResponse writes a JSON error response
func (h *ErrorHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// writeValidationErrorResponse writes a validation error response
func (h *ErrorHandler) writeValidationErrorResponse(w http.ResponseWriter, errs *apperrors.ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(ValidationErrorResponse{
		Error:  "Validation failed",
		Code:   "VALIDATION_ERROR",
		Fields: errs.Errors,
	})
}

// HandleError Helper function to handle errors inline in handlers
// Usage: if HandleError(w, r, err, h.errorHandler) { return }
func HandleError(w http.ResponseWriter, r *http.Request, err error, handler *ErrorHandler) bool {
	if err != nil {
		handler.Handle(w, r, err)
		return true
	}
	return false
}
