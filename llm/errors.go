package llm

import (
	"errors"
	"fmt"
)

// Internal status codes (600+). Codes below 600 mirror the backend's
// HTTP-equivalent semantics and are produced by the provider clients.
const (
	CodeUnsupportedProvider = 600
	CodeUnexpected          = 601
	CodeContentConversion   = 602
	CodeMalformedResponse   = 603
	CodeEmptyPlan           = 604
	CodeGateMisconfigured   = 605
	CodeUnknownTool         = 606
)

// Error is the typed failure produced anywhere in the engine. StatusCode
// carries HTTP-equivalent semantics for backend failures (400-599) and the
// internal codes above for everything else.
type Error struct {
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("code %d: %s: %v", e.StatusCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("code %d: %s", e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewClientError creates an error with 4xx-equivalent semantics.
func NewClientError(statusCode int, message string, cause error) *Error {
	return &Error{StatusCode: statusCode, Message: message, Cause: cause}
}

// NewServerError creates an error with 5xx-equivalent semantics.
func NewServerError(statusCode int, message string, cause error) *Error {
	return &Error{StatusCode: statusCode, Message: message, Cause: cause}
}

// NewInternalError creates an error with one of the internal 600+ codes.
func NewInternalError(code int, message string, cause error) *Error {
	return &Error{StatusCode: code, Message: message, Cause: cause}
}

// StatusCode extracts the numeric status code from an error chain.
// Unclassified errors report CodeUnexpected.
func StatusCode(err error) int {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.StatusCode
	}
	return CodeUnexpected
}

// IsClientError reports whether err carries a 4xx-equivalent code.
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500
}

// IsServerError reports whether err carries a 5xx-equivalent code.
func IsServerError(err error) bool {
	code := StatusCode(err)
	return code >= 500 && code < 600
}

// MatchStatus reports whether a status code matches a pattern such as
// "503", "5xx" or "40x". Patterns are compared digit by digit against the
// three-digit code; 'x' (or 'X') matches any single digit. Malformed
// patterns never match.
func MatchStatus(pattern string, code int) bool {
	if len(pattern) != 3 || code < 100 || code > 999 {
		return false
	}
	digits := fmt.Sprintf("%03d", code)
	for i := 0; i < 3; i++ {
		p := pattern[i]
		if p == 'x' || p == 'X' {
			continue
		}
		if p != digits[i] {
			return false
		}
	}
	return true
}

// MatchAnyStatus reports whether the code matches any of the patterns.
func MatchAnyStatus(patterns []string, code int) bool {
	for _, pattern := range patterns {
		if MatchStatus(pattern, code) {
			return true
		}
	}
	return false
}
