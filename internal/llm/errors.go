package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies provider failures.
type ErrorType int8

const (
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuth is a rejected or revoked key (401/403).
	ErrorTypeAuth
	ErrorTypeRateLimit
	ErrorTypeTransient
	ErrorTypeBadRequest
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// Error is a classified provider error. Message never contains the key.
type Error struct {
	Type       ErrorType
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s error (status %d): %s", e.Provider, e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s error: %s", e.Provider, e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify wraps err according to the HTTP status the provider returned.
// Context cancellation passes through untouched.
func Classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	t := ErrorTypeUnknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		t = ErrorTypeAuth
	case status == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
	case status >= 500:
		t = ErrorTypeTransient
	case status >= 400:
		t = ErrorTypeBadRequest
	case status == 0 && looksTransient(err):
		t = ErrorTypeTransient
	}
	return &Error{Type: t, Provider: provider, StatusCode: status, Message: err.Error(), Err: err}
}

func looksTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"eof", "connection reset", "connection refused", "timeout", "no such host"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// TypeOf returns the classification of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsAuth reports whether the provider rejected the credentials.
func IsAuth(err error) bool {
	return TypeOf(err) == ErrorTypeAuth
}
