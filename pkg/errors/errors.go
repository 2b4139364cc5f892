// Copyright 2026 © The Amethyst Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed errors for the Amethyst runtime.
//
// Leaf failures (a tool that answered 500, an agent that timed out) are
// captured as task results and never abort a run. Only planning
// inconsistencies, missing credentials and oracle failures are fatal.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies Amethyst errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeResourceNotFound indicates a lookup of an unregistered resource.
	CodeResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// CodeHydrationFailure indicates a resource could not be hydrated.
	CodeHydrationFailure ErrorCode = "HYDRATION_FAILURE"

	// CodeCallError indicates a remote tool or agent call failed.
	CodeCallError ErrorCode = "CALL_ERROR"

	// CodeOAuthRequired indicates a resource lacks authorization.
	CodeOAuthRequired ErrorCode = "OAUTH_REQUIRED"

	// CodeMalformedPlan indicates the interpreter produced an inconsistent plan.
	CodeMalformedPlan ErrorCode = "MALFORMED_PLAN"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeUnauthorized indicates credentials are missing or rejected.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeLimitExceeded indicates an execution guard was tripped.
	CodeLimitExceeded ErrorCode = "LIMIT_EXCEEDED"

	// CodeMemoryError indicates a memory or checkpoint failure.
	CodeMemoryError ErrorCode = "MEMORY_ERROR"

	// CodeLLMError indicates the planning oracle failed.
	CodeLLMError ErrorCode = "LLM_ERROR"
)

// Error is a typed error with context for logs and traces.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
		StatusCode  int                    `json:"status_code,omitempty"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Err:         cause,
		Context:     e.Context,
		Recoverable: e.Recoverable,
		StatusCode:  e.StatusCode,
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// Newf creates a new Error without a cause using a format string.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be retried.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// WithStatusCode overrides the status derived from the code, typically with
// the HTTP status returned by a remote endpoint.
func (e *Error) WithStatusCode(status int) *Error {
	e.StatusCode = status
	return e
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if stderrors.As(err, &ae) {
		return ae
	}
	return nil
}

// Wrap converts err to an *Error, keeping an existing one untouched.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if ae := As(err); ae != nil {
		return ae
	}
	return New(CodeInternal, "wrapped error", err)
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var ae *Error
		if !stderrors.As(err, &ae) {
			return false
		}
		if ae.Code == code {
			return true
		}
		err = ae.Err
	}
	return false
}

// CodeOf returns the code of the outermost *Error in err's chain.
func CodeOf(err error) ErrorCode {
	if ae := As(err); ae != nil {
		return ae.Code
	}
	if err == nil {
		return ""
	}
	return CodeInternal
}

// Fatal reports whether err must abort a run rather than be folded into a
// task result.
func Fatal(err error) bool {
	switch CodeOf(err) {
	case CodeMalformedPlan, CodeUnauthorized, CodeLLMError, CodeLimitExceeded, CodeMemoryError:
		return true
	}
	return false
}

func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeResourceNotFound:
		return http.StatusNotFound
	case CodeUnauthorized, CodeOAuthRequired:
		return http.StatusUnauthorized
	case CodeInvalidInput, CodeMalformedPlan:
		return http.StatusBadRequest
	case CodeTimeout:
		return http.StatusRequestTimeout
	case CodeCallError:
		return http.StatusBadGateway
	case CodeLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
