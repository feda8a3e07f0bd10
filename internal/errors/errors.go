package errors

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// ===========================================================================
// Application errors
// Sentinel errors shared by services and handlers, each mapped to an HTTP
// status so handlers never branch on error strings
// ===========================================================================

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal server error")

	// ErrExternal a vendor (provider, CRM, gateway) answered with a failure
	ErrExternal = errors.New("external service error")
	ErrTimeout  = errors.New("timeout")

	// ErrRateLimited the LLM gateway answered 429
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrPaymentRequired the LLM gateway answered 402 (credits exhausted)
	ErrPaymentRequired = errors.New("payment required")

	// ErrSkipped a pipeline step decided not to run (e.g. conversation is in human mode)
	ErrSkipped = errors.New("skipped")

	// Auth
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
)

// AppError carries a user-facing message on top of a sentinel
type AppError struct {
	Err        error
	Message    string
	Code       string
	StatusCode int
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

// New builds an AppError from a sentinel
func New(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: StatusCode(err),
		Code:       ErrorCode(err),
	}
}

// Wrap prefixes err with message keeping the chain for errors.Is
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// ===========================================================================
// Mapping
// ===========================================================================

// StatusCode maps an error chain to the HTTP status returned to callers
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateEntry), errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrPaymentRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode maps an error chain to the machine readable code of the dashboard envelope
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	case errors.Is(err, ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, ErrInvalidToken):
		return "INVALID_TOKEN"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrDuplicateEntry), errors.Is(err, gorm.ErrDuplicatedKey):
		return "DUPLICATE_ENTRY"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrPaymentRequired):
		return "PAYMENT_REQUIRED"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrExternal):
		return "EXTERNAL_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// PublicMessage returns the text safe to show to a caller. Internal failures
// collapse to a generic message; everything else keeps its wrapped context.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	if StatusCode(err) == http.StatusInternalServerError && !errors.Is(err, ErrExternal) {
		return "internal server error"
	}
	return err.Error()
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}
