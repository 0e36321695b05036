package errors

import (
	stderrors "errors"
	"fmt"
)

// ProvisionError reports a failure while producing an instance. However many
// injection sites, scopes and interceptors the failure crosses, it stays one
// error: each layer appends its site to Trace instead of wrapping again.
type ProvisionError struct {
	Messages []Message
	// Trace lists injection sites, innermost first.
	Trace []string
}

// NewProvisionError starts a provision error with a single message.
func NewProvisionError(code ErrorCode, text string, cause error) *ProvisionError {
	return &ProvisionError{Messages: []Message{{Code: code, Text: text, Cause: cause}}}
}

func (e *ProvisionError) Error() string {
	return formatMessages("unable to provision", e.Messages, func(Message) []string {
		return e.Trace
	})
}

// Unwrap exposes the causes of all messages.
func (e *ProvisionError) Unwrap() []error {
	return causes(e.Messages)
}

// Trace adds frame to the provision error carried by err. An error that is
// not yet a provision error becomes the cause of a new one. The returned error
// keeps err's identity when err already carries a provision error.
func Trace(err error, frame string) error {
	if err == nil {
		return nil
	}
	var pe *ProvisionError
	if stderrors.As(err, &pe) {
		pe.Trace = append(pe.Trace, frame)
		return err
	}
	pe = NewProvisionError(CodeOf(err, ErrCodeProvision), MessageOf(err), err)
	pe.Trace = append(pe.Trace, frame)
	return pe
}

// Tracef is Trace with a formatted frame.
func Tracef(err error, format string, args ...any) error {
	return Trace(err, fmt.Sprintf(format, args...))
}

// Provision turns a failure raised by user code into a provision error whose
// message is prefixed with what was being done. Errors that already carry a
// provision error are returned as-is so nested failures collapse.
func Provision(err error, doing string) error {
	if err == nil {
		return nil
	}
	var pe *ProvisionError
	if stderrors.As(err, &pe) {
		return err
	}
	return NewProvisionError(CodeOf(err, ErrCodeProvision), fmt.Sprintf("%s: %s", doing, MessageOf(err)), err)
}
