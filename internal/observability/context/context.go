package context

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	carrierKey
)

// WithRequestID stores the inbound request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithCarrier tags the context with the carrier a request operates on.
func WithCarrier(ctx context.Context, carrier string) context.Context {
	return context.WithValue(ctx, carrierKey, carrier)
}

func CarrierFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(carrierKey).(string)
	return v
}
