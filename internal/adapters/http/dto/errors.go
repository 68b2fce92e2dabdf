// Package dto provides Data Transfer Objects for HTTP request/response handling.
package dto

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feedmill/quote-service/internal/domain"
	"github.com/feedmill/quote-service/internal/platform/logging"
	"github.com/feedmill/quote-service/internal/platform/telemetry"
)

// ErrorResponse is the standard error envelope for all error responses.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	// Code is a machine-readable error code (e.g., "NOT_FOUND", "UNKNOWN_PRODUCT").
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details carries field-level messages for validation errors.
	Details map[string]string `json:"details,omitempty"`
}

// Error codes for machine-readable error identification.
const (
	ErrorCodeNotFound       = "NOT_FOUND"
	ErrorCodeConflict       = "CONFLICT"
	ErrorCodeValidation     = "VALIDATION_ERROR"
	ErrorCodeUnknownProduct = "UNKNOWN_PRODUCT"
	ErrorCodeForbidden      = "FORBIDDEN"
	ErrorCodeUnauthorized   = "UNAUTHORIZED"
	ErrorCodeUnavailable    = "SERVICE_UNAVAILABLE"
	ErrorCodeInternal       = "INTERNAL_ERROR"
	ErrorCodeTimeout        = "TIMEOUT"
	ErrorCodeBadRequest     = "BAD_REQUEST"
	ErrorCodeRateLimited    = "RATE_LIMITED"
)

const internalErrorMessage = "an internal error occurred"

// NewErrorResponse creates a new error response with the given code and message.
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithDetails creates an error response with additional details.
func NewErrorResponseWithDetails(code, message string, details map[string]string) *ErrorResponse {
	resp := NewErrorResponse(code, message)
	resp.Error.Details = details
	return resp
}

// WithTraceID adds a trace ID to the error response.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

// HTTPStatusFromCode maps error codes to HTTP status codes.
func HTTPStatusFromCode(code string) int {
	switch code {
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeConflict:
		return http.StatusConflict
	case ErrorCodeValidation, ErrorCodeBadRequest:
		return http.StatusBadRequest
	case ErrorCodeUnknownProduct:
		return http.StatusUnprocessableEntity
	case ErrorCodeForbidden:
		return http.StatusForbidden
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrorCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// MapDomainError maps an error to an HTTP status code and error response.
// Request binding and validation failures map to 400; unknown errors map to
// 500 with a generic message.
func MapDomainError(err error) (int, *ErrorResponse) {
	var (
		resp           *ErrorResponse
		validationErr  *domain.ValidationError
		unknownProduct *domain.UnknownProductError
	)

	switch {
	case err == nil:
		return http.StatusOK, nil

	case errors.As(err, &unknownProduct):
		resp = NewErrorResponseWithDetails(ErrorCodeUnknownProduct, err.Error(),
			map[string]string{"product": unknownProduct.Product})

	case errors.As(err, &validationErr):
		resp = NewErrorResponse(ErrorCodeValidation, err.Error())
		if validationErr.Field != "" {
			resp.Error.Details = map[string]string{validationErr.Field: validationErr.Message}
		}

	case IsValidationError(err):
		resp = NewErrorResponseWithDetails(ErrorCodeValidation, "request validation failed", ValidationErrors(err))

	case errors.Is(err, ErrBinding):
		resp = NewErrorResponse(ErrorCodeBadRequest, "malformed request body")

	case domain.IsNotFound(err):
		resp = NewErrorResponse(ErrorCodeNotFound, err.Error())

	case domain.IsConflict(err):
		resp = NewErrorResponse(ErrorCodeConflict, err.Error())

	case domain.IsUnavailable(err):
		resp = NewErrorResponse(ErrorCodeUnavailable, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		resp = NewErrorResponse(ErrorCodeTimeout, "request timeout exceeded")

	default:
		resp = NewErrorResponse(ErrorCodeInternal, internalErrorMessage)
	}

	return HTTPStatusFromCode(resp.Error.Code), resp
}

// GetTraceID returns the trace id of the request span, or "".
func GetTraceID(c *gin.Context) string {
	return telemetry.TraceID(c.Request.Context())
}

// HandleError writes the mapped error response. Internal errors are logged
// with their full detail since the client only sees a generic message.
func HandleError(c *gin.Context, err error) {
	status, resp := MapDomainError(err)
	resp.TraceID = GetTraceID(c)

	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).ErrorContext(c.Request.Context(), "internal error",
			slog.Any("error", err),
			slog.String("trace_id", resp.TraceID),
		)
	}

	c.JSON(status, resp)
}

// AbortWithCode aborts the handler chain with an adapter-level error.
func AbortWithCode(c *gin.Context, code, message string) {
	resp := NewErrorResponse(code, message).WithTraceID(GetTraceID(c))
	c.AbortWithStatusJSON(HTTPStatusFromCode(code), resp)
}
