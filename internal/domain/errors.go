package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType is the wire-level error category, rendered in the OpenAI
// error envelope.
type ErrorType string

const (
	// ErrorTypeValidation indicates a malformed or out-of-range request.
	ErrorTypeValidation ErrorType = "invalid_request_error"

	// ErrorTypeAuthentication indicates a missing or invalid API key.
	ErrorTypeAuthentication ErrorType = "authentication_error"

	// ErrorTypePermission indicates the caller may not perform the action.
	ErrorTypePermission ErrorType = "permission_error"

	// ErrorTypeNotFound indicates the resource does not exist.
	ErrorTypeNotFound ErrorType = "not_found_error"

	// ErrorTypeRateLimit indicates an admission limit was exceeded.
	ErrorTypeRateLimit ErrorType = "rate_limit_error"

	// ErrorTypeInsufficientCredits indicates the caller's balance cannot
	// cover the estimated cost of the request.
	ErrorTypeInsufficientCredits ErrorType = "insufficient_credits"

	// ErrorTypeProvider indicates an upstream provider returned an error.
	ErrorTypeProvider ErrorType = "provider_error"

	// ErrorTypeUnavailable indicates an upstream timeout or network
	// failure, or that no provider can serve the request.
	ErrorTypeUnavailable ErrorType = "service_unavailable"

	// ErrorTypeInternal indicates an unexpected gateway failure.
	ErrorTypeInternal ErrorType = "server_error"
)

// ErrorCode adds specificity beyond the error type.
type ErrorCode string

const (
	ErrorCodeStreamingUnsupported ErrorCode = "streaming_not_supported"
	ErrorCodeModelNotFound        ErrorCode = "model_not_found"
	ErrorCodeInvalidAPIKey        ErrorCode = "invalid_api_key"
	ErrorCodeRateLimitExceeded    ErrorCode = "rate_limit_exceeded"
	ErrorCodeNoProviderAvailable  ErrorCode = "no_provider_available"
	ErrorCodeUpstreamTimeout      ErrorCode = "upstream_timeout"
)

// RateLimitDetail carries the limit state behind a rate-limit rejection.
type RateLimitDetail struct {
	Limit  int
	Window time.Duration
	Reset  time.Time
}

// CreditDetail carries the balance state behind a credit rejection.
type CreditDetail struct {
	Required  float64
	Available float64
}

// APIError is the gateway's error. It renders as the OpenAI error object
// and carries enough detail for handlers to set status codes and
// rate-limit or billing headers.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`

	// StatusCode overrides the default HTTP status for the type.
	StatusCode int `json:"-"`

	// Provider names the upstream provider for provider errors.
	Provider string `json:"-"`

	RateLimit *RateLimitDetail `json:"-"`
	Credits   *CreditDetail    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the HTTP status for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeInsufficientCredits:
		return http.StatusPaymentRequired
	case ErrorTypePermission:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeProvider:
		return http.StatusBadGateway
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorEnvelope is the OpenAI error response body.
type ErrorEnvelope struct {
	Error *APIError `json:"error"`
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithCode adds an error code.
func (e *APIError) WithCode(code ErrorCode) *APIError {
	e.Code = code
	return e
}

// WithParam names the offending request parameter.
func (e *APIError) WithParam(param string) *APIError {
	e.Param = param
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// WithProvider names the upstream provider the error came from.
func (e *APIError) WithProvider(provider string) *APIError {
	e.Provider = provider
	return e
}

// WithRateLimit attaches rate-limit state.
func (e *APIError) WithRateLimit(limit int, window time.Duration, reset time.Time) *APIError {
	e.RateLimit = &RateLimitDetail{Limit: limit, Window: window, Reset: reset}
	return e
}

// WithCredits attaches required and available balance.
func (e *APIError) WithCredits(required, available float64) *APIError {
	e.Credits = &CreditDetail{Required: required, Available: available}
	return e
}

// Convenience constructors for the taxonomy.

// ErrValidation creates a validation error.
func ErrValidation(message string) *APIError {
	return NewAPIError(ErrorTypeValidation, message)
}

// ErrValidationf creates a validation error with a formatted message.
func ErrValidationf(format string, args ...any) *APIError {
	return NewAPIError(ErrorTypeValidation, fmt.Sprintf(format, args...))
}

// ErrAuthentication creates an authentication error.
func ErrAuthentication(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message)
}

// ErrPermission creates a permission error.
func ErrPermission(message string) *APIError {
	return NewAPIError(ErrorTypePermission, message)
}

// ErrNotFound creates a not-found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(ErrorTypeNotFound, message)
}

// ErrRateLimited creates a rate-limit error carrying limit state.
func ErrRateLimited(message string, limit int, window time.Duration, reset time.Time) *APIError {
	return NewAPIError(ErrorTypeRateLimit, message).
		WithCode(ErrorCodeRateLimitExceeded).
		WithRateLimit(limit, window, reset)
}

// ErrInsufficientCredits creates a credit error carrying required and
// available balance.
func ErrInsufficientCredits(required, available float64) *APIError {
	msg := fmt.Sprintf("insufficient credits: request requires %.6f, %.6f available", required, available)
	return NewAPIError(ErrorTypeInsufficientCredits, msg).
		WithCredits(required, available)
}

// ErrProvider creates an error for an upstream provider failure,
// preserving the upstream status code.
func ErrProvider(provider string, statusCode int, message string) *APIError {
	return NewAPIError(ErrorTypeProvider, message).
		WithProvider(provider).
		WithStatusCode(statusCode)
}

// ErrUnavailable creates a service-unavailable error.
func ErrUnavailable(message string) *APIError {
	return NewAPIError(ErrorTypeUnavailable, message)
}

// ErrNoProviders indicates no active provider can serve requests.
func ErrNoProviders() *APIError {
	return NewAPIError(ErrorTypeUnavailable, "no active providers are available").
		WithCode(ErrorCodeNoProviderAvailable)
}

// ErrInternal creates an internal error.
func ErrInternal(message string) *APIError {
	return NewAPIError(ErrorTypeInternal, message)
}

// AsAPIError extracts an APIError from err, wrapping unknown errors as
// internal so every failure renders a well-formed envelope.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal(err.Error())
}
