package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/telcousage/internal/observability/context"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-42")
	ctx = obscontext.WithCarrier(ctx, "att")
	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "req-42", fields["request_id"])
	require.Equal(t, "att", fields["carrier"])
	require.NotContains(t, fields, "trace_id")
}

func TestOperationFromSQL(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{sql: "SELECT 1", want: "SELECT"},
		{sql: "  update agg_data_usage SET price = 1", want: "UPDATE"},
		{sql: "INSERT INTO agg_voice_usage (id) VALUES (1)", want: "INSERT"},
		{sql: "", want: "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := operationFromSQL(tc.sql); got != tc.want {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", tc.sql, got, tc.want)
		}
	}
}
