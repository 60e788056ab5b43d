package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. The prefix of each code determines its HTTP status.
const (
	// Validation (400)
	ErrCodeValidationInvalidSchedule  ErrorCode = "validation_invalid_schedule"
	ErrCodeValidationInvalidTimeOfDay ErrorCode = "validation_invalid_time_of_day"
	ErrCodeValidationInvalidTimezone  ErrorCode = "validation_invalid_timezone"
	ErrCodeValidationMissingField     ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidBody      ErrorCode = "validation_invalid_body"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Rate limiting (429)
	ErrCodeRateLimit ErrorCode = "rate_limit_exceeded"

	// Not Found (404)
	ErrCodeNotFoundSchedule ErrorCode = "not_found_schedule"
	ErrCodeNotFoundPrompt   ErrorCode = "not_found_prompt"
	ErrCodeNotFoundUser     ErrorCode = "not_found_user"
	ErrCodeNotFoundCred     ErrorCode = "not_found_credential"

	// Conflict (409)
	ErrCodeConflictScheduleState ErrorCode = "conflict_schedule_invalid_state"

	// Internal (500)
	ErrCodeInternalDB              ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected      ErrorCode = "internal_unexpected_error"
	ErrCodeInternalIterationLimit  ErrorCode = "internal_schedule_iteration_ceiling"
	ErrCodeInternalCredentialCrypt ErrorCode = "internal_credential_crypto"

	// Upstream (502/503)
	ErrCodeUpstreamGenerationExhausted ErrorCode = "upstream_generation_exhausted"
	ErrCodeUpstreamGeneration          ErrorCode = "upstream_generation_failed"
	ErrCodeUpstreamEmbedding           ErrorCode = "upstream_embedding_failed"
	ErrCodeUpstreamPublish             ErrorCode = "upstream_publish_failed"
	ErrCodeUpstreamUnavailable         ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited         ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case s == string(ErrCodeRateLimit):
		return http.StatusTooManyRequests
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case s == string(ErrCodeUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. Handlers translate it
// into an HTTP response, workers log its code.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// IsCode reports whether any AppError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}
