// Package reqid generates and propagates the request identifiers that
// populate contracts.EnvelopeMetadata.RequestID and flow through
// structured log lines, the CLI's non-HTTP analogue of an inbound
// X-Request-ID header.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// New generates a fresh request identifier. The CLI calls this once per
// invocation unless the caller supplies one explicitly (e.g. replaying a
// prior request for a trace comparison).
func New() string {
	return uuid.New().String()
}

// WithRequestID returns a context carrying id, retrievable via FromContext.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// FromContext extracts the request ID previously attached with
// WithRequestID, returning "" if none is set.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
