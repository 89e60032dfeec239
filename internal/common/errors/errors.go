// Package errors provides the standardized error taxonomy for filter resolution.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeFilterNotFound    ErrorCode = "FILTER_NOT_FOUND"
	ErrCodeValueFetchFailed  ErrorCode = "VALUE_FETCH_FAILED"
	ErrCodeValueFetchTimeout ErrorCode = "VALUE_FETCH_TIMEOUT"
	ErrCodeNoIntentsResolved ErrorCode = "NO_INTENTS_RESOLVED"

	ErrCodeIntentParsingFailed ErrorCode = "INTENT_PARSING_FAILED"
	ErrCodeIntentAPITimeout    ErrorCode = "INTENT_API_TIMEOUT"

	ErrCodeConversationStoreFailed ErrorCode = "CONVERSATION_STORE_FAILED"
	ErrCodeInvalidRequest          ErrorCode = "INVALID_REQUEST"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// AsStandard extracts a StandardError from an error chain, if present.
func AsStandard(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	if se, ok := AsStandard(err); ok {
		return se.Code == code
	}
	return false
}

// NewFilterNotFoundError creates a non-retryable catalog lookup error.
// Suggestions carries the nearest catalog labels; they are folded into the
// message so they survive the trip to the error response.
func NewFilterNotFoundError(reference string, suggestions []string) *StandardError {
	msg := fmt.Sprintf("No filter matches '%s'", reference)
	if len(suggestions) > 0 {
		msg = fmt.Sprintf("%s. Did you mean: %s?", msg, strings.Join(suggestions, ", "))
	}
	return &StandardError{
		Code:      ErrCodeFilterNotFound,
		Message:   msg,
		Details:   fmt.Sprintf("filterReference: %s", reference),
		Retryable: false,
		Metadata:  map[string]interface{}{"suggestions": suggestions},
		Timestamp: time.Now().UTC(),
	}
}

// NewValueFetchFailedError creates a retryable value service error.
func NewValueFetchFailedError(filterName string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeValueFetchFailed,
		Message:   fmt.Sprintf("Failed to load values for filter '%s'", filterName),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewValueFetchTimeoutError creates a retryable value service timeout error.
func NewValueFetchTimeoutError(filterName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValueFetchTimeout,
		Message:   fmt.Sprintf("Timed out loading values for filter '%s'", filterName),
		Details:   "value fetch exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoIntentsResolvedError creates a non-retryable error for empty NLU output.
func NewNoIntentsResolvedError(query string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoIntentsResolved,
		Message:   "Could not identify any filter operation in the request. Please rephrase.",
		Details:   fmt.Sprintf("query: %s", query),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIntentParsingFailedError creates a retryable intent extraction error.
func NewIntentParsingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentParsingFailed,
		Message:   "Intent extraction service error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewIntentAPITimeoutError creates a retryable intent extraction timeout error.
func NewIntentAPITimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentAPITimeout,
		Message:   "Intent extraction timed out",
		Details:   "API call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConversationStoreFailedError creates a retryable store error.
func NewConversationStoreFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConversationStoreFailed,
		Message:   "Conversation state store error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidRequestError creates a non-retryable request validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeValueFetchFailed,
		ErrCodeIntentParsingFailed,
		ErrCodeConversationStoreFailed:
		return 3

	case ErrCodeValueFetchTimeout,
		ErrCodeIntentAPITimeout:
		return 1

	default:
		return 0 // Business errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "FILTER"):
		return "CATALOG"
	case strings.Contains(codeStr, "VALUE"):
		return "VALUES"
	case strings.Contains(codeStr, "INTENT"):
		return "NLU"
	case strings.Contains(codeStr, "CONVERSATION"):
		return "CONVERSATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
