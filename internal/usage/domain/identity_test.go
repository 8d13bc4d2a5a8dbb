package domain

import (
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionRefIdentity(t *testing.T) {
	att := snowflake.ID(11)
	sprint := snowflake.ID(22)

	identity, err := SubscriptionRef{ATTSubscriptionID: &att}.Identity()
	require.NoError(t, err)
	assert.Equal(t, Identity{Field: FieldATTSubscription, Value: att}, identity)

	identity, err = SubscriptionRef{SprintSubscriptionID: &sprint}.Identity()
	require.NoError(t, err)
	assert.Equal(t, Identity{Field: FieldSprintSubscription, Value: sprint}, identity)
}

func TestSubscriptionRefIntegrityViolations(t *testing.T) {
	att := snowflake.ID(11)
	sprint := snowflake.ID(22)

	_, err := SubscriptionRef{ATTSubscriptionID: &att, SprintSubscriptionID: &sprint}.Identity()
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error for both keys, got %v", err)
	}
	if err := (SubscriptionRef{}).Validate(); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected integrity error for no keys, got %v", err)
	}
}

func TestIdentityRefRoundTrip(t *testing.T) {
	for _, carrier := range []subscriptiondomain.Carrier{subscriptiondomain.CarrierATT, subscriptiondomain.CarrierSprint} {
		ref := RefFor(carrier, 99)
		identity, err := ref.Identity()
		require.NoError(t, err)
		assert.Equal(t, IdentityFor(carrier, 99), identity)

		got, err := identity.Field.Carrier()
		require.NoError(t, err)
		assert.Equal(t, carrier, got)
	}

	_, err := Identity{Field: "tmobile_subscription", Value: 1}.Ref()
	assert.ErrorIs(t, err, ErrIntegrity)
	_, err = IdentityField("tmobile_subscription").Carrier()
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestIdentityExpressions(t *testing.T) {
	assert.Equal(t,
		"CASE WHEN u.att_subscription_id IS NOT NULL THEN 'att_subscription' ELSE 'sprint_subscription' END",
		IdentityFieldExpr("u"),
	)
	assert.Equal(t, "COALESCE(att_subscription_id, sprint_subscription_id)", IdentityValueExpr(""))
}

func TestKindTables(t *testing.T) {
	kind, err := ParseKind(" Voice ")
	require.NoError(t, err)
	assert.Equal(t, KindVoice, kind)
	assert.Equal(t, "voice_usage_records", kind.RawTable())
	assert.Equal(t, "agg_voice_usage", kind.AggregateTable())
	assert.Equal(t, "seconds_used", kind.QuantityColumn())
	assert.Equal(t, "kilobytes_used", KindData.QuantityColumn())

	_, err = ParseKind("sms")
	assert.ErrorIs(t, err, ErrInvalidKind)
}
