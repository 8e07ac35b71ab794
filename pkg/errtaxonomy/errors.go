// Package errtaxonomy defines the closed error-code enumeration shared
// across the pipeline. Errors are values, not control-flow exceptions:
// every component boundary converts internal failures into an *Error
// carrying one of these codes before returning.
package errtaxonomy

import (
	"errors"
	"fmt"
)

// Code is a closed enumeration of error classes. Components must not
// invent new codes; pick the closest fit.
type Code string

const (
	ValidationError    Code = "VALIDATION_ERROR"
	InvalidInput       Code = "INVALID_INPUT"
	NotFound           Code = "NOT_FOUND"
	UserNotFound       Code = "USER_NOT_FOUND"
	Unauthorized       Code = "UNAUTHORIZED"
	Forbidden          Code = "FORBIDDEN"
	RateLimited        Code = "RATE_LIMITED"
	ProviderError      Code = "PROVIDER_ERROR"
	Timeout            Code = "TIMEOUT"
	NetworkError       Code = "NETWORK_ERROR"
	InternalError      Code = "INTERNAL_ERROR"
	ConfigurationError Code = "CONFIGURATION_ERROR"
)

// IsValid reports whether c is one of the defined codes.
func (c Code) IsValid() bool {
	switch c {
	case ValidationError, InvalidInput, NotFound, UserNotFound, Unauthorized,
		Forbidden, RateLimited, ProviderError, Timeout, NetworkError,
		InternalError, ConfigurationError:
		return true
	default:
		return false
	}
}

// Error is the uniform error value crossing component boundaries.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error that wraps cause under the given code.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithContext returns a copy of e with a context key/value attached.
func (e *Error) WithContext(key string, value any) *Error {
	cp := *e
	cp.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	cp.Context[key] = value
	return &cp
}

// CodeOf extracts the Code from err, if err is (or wraps) an *Error.
// Returns InternalError for anything else, so callers always get a
// closed-enumeration value to branch on.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}
