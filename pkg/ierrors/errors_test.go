package ierrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsRetryableFromCode(t *testing.T) {
	err := New(CodeTimeout, "agent did not respond")
	require.True(t, err.Retryable)

	err2 := New(CodeContractViolation, "noRetry and maxRetries both set")
	require.False(t, err2.Retryable)
}

func TestWrap_UnwrapsToCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeWALIntegrityError, "fsync failed", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "disk full")
}

func TestAs_FindsWrappedIntentusError(t *testing.T) {
	inner := New(CodeBudgetExceeded, "maxCostUnits exceeded")
	outer := fWrap(inner)

	found, ok := As(outer)
	require.True(t, ok)
	require.Equal(t, CodeBudgetExceeded, found.Code)
}

func fWrap(err error) error {
	return &wrapper{err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }
