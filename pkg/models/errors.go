package models

import (
	"context"
	"errors"
)

// ErrorKind tags every failure the hub can surface.
type ErrorKind string

const (
	ErrToolNotFound        ErrorKind = "TOOL_NOT_FOUND"
	ErrInputSchemaInvalid  ErrorKind = "INPUT_SCHEMA_INVALID"
	ErrOutputSchemaInvalid ErrorKind = "OUTPUT_SCHEMA_INVALID"
	ErrPolicyDenied        ErrorKind = "POLICY_DENIED"
	ErrBudgetExceeded      ErrorKind = "BUDGET_EXCEEDED"
	ErrTimeout             ErrorKind = "TIMEOUT"
	ErrPathOutsideSandbox  ErrorKind = "PATH_OUTSIDE_SANDBOX"
	ErrFileTooLarge        ErrorKind = "FILE_TOO_LARGE"
	ErrHTTPDisallowedHost  ErrorKind = "HTTP_DISALLOWED_HOST"
	ErrHTTPTooLarge        ErrorKind = "HTTP_TOO_LARGE"
	ErrHTTPTimeout         ErrorKind = "HTTP_TIMEOUT"
	ErrUpstream            ErrorKind = "UPSTREAM_ERROR"
	ErrValidation          ErrorKind = "VALIDATION"
)

// nonRetryable lists the kinds the retry engine must never retry: repeating
// the call cannot change the outcome.
var nonRetryable = map[ErrorKind]bool{
	ErrToolNotFound:        true,
	ErrInputSchemaInvalid:  true,
	ErrPolicyDenied:        true,
	ErrOutputSchemaInvalid: true,
	ErrPathOutsideSandbox:  true,
	ErrFileTooLarge:        true,
	ErrHTTPDisallowedHost:  true,
	ErrHTTPTooLarge:        true,
}

// Retryable reports whether an error of the given kind may be retried.
func (k ErrorKind) Retryable() bool {
	return !nonRetryable[k]
}

// ToolError is the typed failure carried in ToolResult.Error. It implements
// error so adapters and internal components can return it directly.
type ToolError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`

	cause error
}

// NewToolError constructs a ToolError.
func NewToolError(kind ErrorKind, message string, details any) *ToolError {
	return &ToolError{Kind: kind, Message: message, Details: details}
}

// WrapError wraps an underlying error with a kind, preserving the cause for
// errors.Is/As chains.
func WrapError(kind ErrorKind, message string, cause error) *ToolError {
	return &ToolError{Kind: kind, Message: message, cause: cause}
}

func (e *ToolError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *ToolError) Unwrap() error { return e.cause }

// Retryable reports whether this error may be retried.
func (e *ToolError) Retryable() bool { return e.Kind.Retryable() }

// ClassifyError maps any error to a ToolError. Already-typed errors pass
// through; context deadline expiry becomes TIMEOUT; everything else,
// caller cancellation included, is wrapped as UPSTREAM_ERROR.
func ClassifyError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return WrapError(ErrTimeout, "invocation deadline exceeded", err)
	}
	return WrapError(ErrUpstream, err.Error(), err)
}
