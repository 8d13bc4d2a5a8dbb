package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcousage/internal/clock"
	"github.com/smallbiznis/telcousage/internal/migration"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	"github.com/smallbiznis/telcousage/internal/subscription/repository"
	"github.com/smallbiznis/telcousage/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (subscriptiondomain.Service, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, fake
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sprintID := "SP-1"

	variant, err := svc.Create(ctx, subscriptiondomain.CreateRequest{
		Carrier:     subscriptiondomain.CarrierSprint,
		UserID:      3,
		PhoneNumber: " 555-0100 ",
		SprintID:    &sprintID,
	})
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.CarrierSprint, variant.Carrier())

	got, err := svc.Get(ctx, subscriptiondomain.CarrierSprint, variant.Base().ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusNew, got.Status)
	assert.Equal(t, "555-0100", got.PhoneNumber)
	assert.Equal(t, int64(3), got.UserID)

	// ids are carrier scoped
	_, err = svc.Get(ctx, subscriptiondomain.CarrierATT, variant.Base().ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionNotFound)
}

func TestCreateValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, subscriptiondomain.CreateRequest{Carrier: "tmobile", UserID: 1})
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidCarrier)

	_, err = svc.Create(ctx, subscriptiondomain.CreateRequest{Carrier: subscriptiondomain.CarrierATT})
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidUser)
}

func TestTransitionFollowsCarrierStatusMachine(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	att, err := svc.Create(ctx, subscriptiondomain.CreateRequest{Carrier: subscriptiondomain.CarrierATT, UserID: 1})
	require.NoError(t, err)
	attID := att.Base().ID

	_, err = svc.Transition(ctx, subscriptiondomain.CarrierATT, attID, subscriptiondomain.StatusSuspended)
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidStatus)

	fake.Advance(time.Hour)
	got, err := svc.Transition(ctx, subscriptiondomain.CarrierATT, attID, subscriptiondomain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StatusActive, got.Status)
	assert.True(t, fake.Now().Equal(got.UpdatedAt))

	_, err = svc.Transition(ctx, subscriptiondomain.CarrierATT, attID, subscriptiondomain.StatusExpired)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, subscriptiondomain.CarrierATT, attID, subscriptiondomain.StatusActive)
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidTransition)

	sprint, err := svc.Create(ctx, subscriptiondomain.CreateRequest{Carrier: subscriptiondomain.CarrierSprint, UserID: 1})
	require.NoError(t, err)
	sprintID := sprint.Base().ID
	for _, status := range []subscriptiondomain.Status{
		subscriptiondomain.StatusActive,
		subscriptiondomain.StatusSuspended,
		subscriptiondomain.StatusActive,
		subscriptiondomain.StatusExpired,
	} {
		got, err := svc.Transition(ctx, subscriptiondomain.CarrierSprint, sprintID, status)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
	}
}

func TestDeleteIsSoft(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	variant, err := svc.Create(ctx, subscriptiondomain.CreateRequest{Carrier: subscriptiondomain.CarrierATT, UserID: 1})
	require.NoError(t, err)
	id := variant.Base().ID

	require.NoError(t, svc.Delete(ctx, subscriptiondomain.CarrierATT, id))
	require.NoError(t, svc.Delete(ctx, subscriptiondomain.CarrierATT, id))

	got, err := svc.Get(ctx, subscriptiondomain.CarrierATT, id)
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	_, err = svc.Transition(ctx, subscriptiondomain.CarrierATT, id, subscriptiondomain.StatusActive)
	assert.ErrorIs(t, err, subscriptiondomain.ErrSubscriptionDeleted)
}
