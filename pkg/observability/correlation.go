package observability

import (
	"context"

	"github.com/google/uuid"
)

type correlationKey struct{}

// CorrelationIDKey is the log attribute carrying the correlation id.
const CorrelationIDKey = "correlation_id"

// WithCorrelationID tags ctx with id, generating one when id is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
