package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the structured error raised by the injector and its scopes.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code" yaml:"code"`
	// Message is a human-readable error message.
	Message string `json:"message" yaml:"message"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-" yaml:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// --- Common Error Constructors ---

// Configuration creates a new AppError for an invalid injector configuration.
func Configuration(message string) *AppError {
	return &AppError{Code: ErrCodeConfiguration, Message: message}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	e := &AppError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason)}
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// Internal creates a new AppError for an unexpected internal failure.
func Internal(cause error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: "unexpected internal error", Cause: cause}
}

// CircularDependency creates a new AppError for a cycle that cannot be broken.
func CircularDependency(typeName, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeCircularDependency,
		Message: fmt.Sprintf("cannot satisfy circular dependency on %s: %s", typeName, reason),
		Details: map[string]any{"type": typeName},
	}
}

// NotYetConstructed creates a new AppError for a stand-in used too early.
func NotYetConstructed(typeName string) *AppError {
	return &AppError{
		Code:    ErrCodeNotYetConstructed,
		Message: fmt.Sprintf("this is a stand-in for %s which has not been constructed yet", typeName),
		Details: map[string]any{"type": typeName},
	}
}

// OutOfScope creates a new AppError for a scoped key requested outside its scope.
func OutOfScope(scope, key string) *AppError {
	return &AppError{
		Code:    ErrCodeOutOfScope,
		Message: fmt.Sprintf("cannot access %s outside of an active %s scope", key, scope),
		Details: map[string]any{"scope": scope, "key": key},
	}
}

// AsAppError extracts an *AppError from the error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// MessageOf returns the message of err without the code prefix an AppError
// puts in front of it.
func MessageOf(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Message
	}
	return err.Error()
}

// CodeOf returns the code of the first AppError in the chain, or fallback.
func CodeOf(err error, fallback ErrorCode) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return fallback
}

// HasCode reports whether err, any aggregated message or any cause carries code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	switch e := err.(type) {
	case *AppError:
		if e.Code == code {
			return true
		}
	case *CreationError:
		return messagesHaveCode(e.Messages, code)
	case *ProvisionError:
		return messagesHaveCode(e.Messages, code)
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return HasCode(u.Unwrap(), code)
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if HasCode(inner, code) {
				return true
			}
		}
	}
	return false
}

func messagesHaveCode(messages []Message, code ErrorCode) bool {
	for _, m := range messages {
		if m.Code == code || HasCode(m.Cause, code) {
			return true
		}
	}
	return false
}
