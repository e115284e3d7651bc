// Package ierrors defines the stable, language-neutral error-code taxonomy
// used across the runtime. It is the non-HTTP analogue of an RFC 7807
// problem detail: a machine-stable Code, a human Message, and a Retryable
// hint, with optional structured Details for diagnostics.
package ierrors

import (
	"fmt"
	"log/slog"
)

// Code is a stable, language-neutral error classification. Codes are part
// of the wire contract: callers and the CLI may branch on them, so values
// are never renamed once shipped.
type Code string

const (
	CodeCapabilityNotFound   Code = "CAPABILITY_NOT_FOUND"
	CodeRoutingError         Code = "ROUTING_ERROR"
	CodeInternalAgentError   Code = "INTERNAL_AGENT_ERROR"
	CodeAgentError           Code = "AGENT_ERROR"
	CodeContractViolation    Code = "CONTRACT_VIOLATION"
	CodeTimeout              Code = "TIMEOUT"
	CodeBudgetExceeded       Code = "BUDGET_EXCEEDED"
	CodeWALIntegrityError    Code = "WAL_INTEGRITY_ERROR"
	CodeIrreversibleStepFailed Code = "IRREVERSIBLE_STEP_FAILED"
	CodeDeterminismViolation Code = "DETERMINISM_VIOLATION"
	CodeDuplicateAgent       Code = "DUPLICATE_AGENT"
	CodeTransportError       Code = "TRANSPORT_ERROR"
	CodeLockHeld             Code = "LOCK_HELD"
	CodeConsistencyViolation Code = "CONSISTENCY_VIOLATION"
	CodeNotFound             Code = "NOT_FOUND"
)

// retryableByDefault records whether a code is ordinarily safe to retry,
// absent a contract that says otherwise. It is a default, not a guarantee:
// callers enforcing a contract must still honor the contract's own
// NoRetry/MaxRetries fields.
var retryableByDefault = map[Code]bool{
	CodeCapabilityNotFound:     false,
	CodeRoutingError:           false,
	CodeInternalAgentError:     true,
	CodeAgentError:             false,
	CodeContractViolation:      false,
	CodeTimeout:                true,
	CodeBudgetExceeded:         false,
	CodeWALIntegrityError:      false,
	CodeIrreversibleStepFailed: false,
	CodeDeterminismViolation:   false,
	CodeDuplicateAgent:         false,
	CodeTransportError:         true,
	CodeLockHeld:               true,
	CodeConsistencyViolation:   false,
	CodeNotFound:               false,
}

// IntentusError is the structured error type returned across package
// boundaries. It never wraps a panic: agent invocation panics are recovered
// and normalized into CodeInternalAgentError by the router.
type IntentusError struct {
	Code      Code
	Message   string
	Retryable bool
	Details   map[string]any
	cause     error
}

// New constructs an IntentusError with the code's default retryability.
func New(code Code, message string) *IntentusError {
	return &IntentusError{Code: code, Message: message, Retryable: retryableByDefault[code]}
}

// Wrap constructs an IntentusError carrying an underlying cause for Unwrap,
// without leaking the cause's message past Error() unless included.
func Wrap(code Code, message string, cause error) *IntentusError {
	e := New(code, message)
	e.cause = cause
	return e
}

// WithDetails attaches structured diagnostic fields and returns the receiver
// for chaining.
func (e *IntentusError) WithDetails(details map[string]any) *IntentusError {
	e.Details = details
	return e
}

// WithRetryable overrides the code's default retryability.
func (e *IntentusError) WithRetryable(retryable bool) *IntentusError {
	e.Retryable = retryable
	return e
}

func (e *IntentusError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *IntentusError) Unwrap() error {
	return e.cause
}

// LogAttrs renders the error as structured slog attributes.
func (e *IntentusError) LogAttrs() []any {
	return []any{
		"error_code", string(e.Code),
		"error_message", e.Message,
		"retryable", e.Retryable,
	}
}

// As reports whether err is (or wraps) an *IntentusError and, if so, returns it.
func As(err error) (*IntentusError, bool) {
	ie, ok := err.(*IntentusError)
	if ok {
		return ie, true
	}
	var target *IntentusError
	if ok := stdErrorsAs(err, &target); ok {
		return target, true
	}
	return nil, false
}

func stdErrorsAs(err error, target **IntentusError) bool {
	for err != nil {
		if ie, ok := err.(*IntentusError); ok {
			*target = ie
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Attr lets slog render an IntentusError directly in a log call, e.g.
// slog.Error("routing failed", ierrors.Attr(err))
func Attr(err error) slog.Attr {
	if ie, ok := As(err); ok {
		return slog.Group("error", ie.LogAttrs()...)
	}
	return slog.Any("error", err)
}
