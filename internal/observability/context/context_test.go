package context

import (
	"context"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := CarrierFromContext(ctx); got != "" {
		t.Fatalf("expected empty carrier, got %q", got)
	}
}

func TestFromNilContext(t *testing.T) {
	//nolint:staticcheck
	if got := RequestIDFromContext(nil); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}
