package tracing

import (
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSubscriberFields(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/usage"),
		attribute.String("phone_number", "5551234"),
		attribute.String("user_id", "7"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("expected only http.route, got %v", attrs)
	}
}

func TestSafeErrorTruncates(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	long := errors.New(strings.Repeat("x", 400))
	if got := SafeError(long); len(got.Error()) != 256 {
		t.Fatalf("expected truncated message, got %d chars", len(got.Error()))
	}
}
