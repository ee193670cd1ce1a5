package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const correlationIDCtxKey contextKey = "correlation_id"

// Attribute keys shared by logs and metrics.
const (
	CorrelationIDKey = "correlation_id"
	OperationKey     = "operation"
	DurationKey      = "duration_ms"
	ErrorKey         = "error"
)

// WithCorrelationID stores id in ctx, generating a UUID when id is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext returns the correlation id in ctx, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDCtxKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
