package models

import (
	"context"
	"errors"
	"fmt"
)

// Error codes used in run results, API responses and internal error handling.
const (
	ErrCodeAccountSelection  = "ACCOUNT_SELECTION_REQUIRED"
	ErrCodeReportUnreachable = "REPORT_UNREACHABLE"
	ErrCodeNavigation        = "NAVIGATION_FAILED"
	ErrCodeTimeout           = "HARVEST_TIMEOUT"
	ErrCodeBrowserCrash      = "BROWSER_CRASH"
	ErrCodeStore             = "STORE_UNAVAILABLE"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeRunInProgress     = "RUN_IN_PROGRESS"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HarvestError is the internal error type carrying an error code and the
// checkpoint at which the run stopped.
// It implements the error interface and supports error wrapping via Unwrap.
type HarvestError struct {
	Code       string
	Checkpoint string
	Message    string
	Err        error // wrapped original error
}

func (e *HarvestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *HarvestError) Unwrap() error {
	return e.Err
}

// NewHarvestError creates a new HarvestError.
func NewHarvestError(code, message string, err error) *HarvestError {
	return &HarvestError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *HarvestError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsHarvestError returns err as a *HarvestError, wrapping foreign errors
// under ErrCodeInternal.
func AsHarvestError(err error) *HarvestError {
	var he *HarvestError
	if errors.As(err, &he) {
		return he
	}
	return NewHarvestError(ErrCodeInternal, err.Error(), err)
}

// CategorizeError wraps raw browser errors into typed HarvestErrors.
func CategorizeError(err error, msg string) *HarvestError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewHarvestError(ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return NewHarvestError(ErrCodeTimeout, "run canceled", err)
	default:
		return NewHarvestError(ErrCodeNavigation, msg, err)
	}
}
