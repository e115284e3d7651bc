package reqid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_ProducesDistinctIDs(t *testing.T) {
	require.NotEqual(t, New(), New())
}

func TestWithRequestID_RoundTripsThroughContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	require.Equal(t, "req-123", FromContext(ctx))
}

func TestFromContext_EmptyWhenUnset(t *testing.T) {
	require.Equal(t, "", FromContext(context.Background()))
}
