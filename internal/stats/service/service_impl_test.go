package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telcousage/internal/config"
	"github.com/smallbiznis/telcousage/internal/migration"
	statsdomain "github.com/smallbiznis/telcousage/internal/stats/domain"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"github.com/smallbiznis/telcousage/internal/usage/rollup"
	"github.com/smallbiznis/telcousage/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	today     = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	tomorrow  = today.AddDate(0, 0, 1)
	yesterday = today.AddDate(0, 0, -1)
)

type env struct {
	svc    statsdomain.Service
	rollup *rollup.Service
	db     *gorm.DB
	seq    int64
}

func newEnv(t *testing.T) *env {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	return &env{
		svc: NewService(ServiceParam{DB: conn, Log: zap.NewNop()}),
		rollup: rollup.NewService(rollup.Params{
			DB:     conn,
			Log:    zap.NewNop(),
			GenID:  node,
			Config: config.NewStaticRollupConfig(config.RollupConfig{BatchSize: 50, MaxRetries: 1}),
		}),
		db:  conn,
		seq: 100,
	}
}

func (e *env) next() snowflake.ID {
	e.seq++
	return snowflake.ID(e.seq)
}

func (e *env) subscription(t *testing.T, carrier subscriptiondomain.Carrier) snowflake.ID {
	t.Helper()
	base := subscriptiondomain.Subscription{
		ID:        e.next(),
		UserID:    1,
		Status:    subscriptiondomain.StatusActive,
		CreatedAt: today,
		UpdatedAt: today,
	}
	var model subscriptiondomain.Variant = &subscriptiondomain.ATTSubscription{Subscription: base}
	if carrier == subscriptiondomain.CarrierSprint {
		model = &subscriptiondomain.SprintSubscription{Subscription: base}
	}
	require.NoError(t, e.db.Create(model).Error)
	return base.ID
}

func (e *env) usage(t *testing.T, kind usagedomain.Kind, carrier subscriptiondomain.Carrier, sub snowflake.ID, quantity int64, price string, at time.Time) {
	t.Helper()
	rec := usagedomain.Record{
		ID:        e.next(),
		Kind:      kind,
		Ref:       usagedomain.RefFor(carrier, sub),
		Quantity:  quantity,
		Price:     decimal.RequireFromString(price),
		UsageDate: at,
	}
	require.NoError(t, e.db.Create(rec.Model()).Error)
}

func amount(m interface{ String() string }) string {
	return m.String()
}

func TestFindExceedingScenario(t *testing.T) {
	e := newEnv(t)
	a := e.subscription(t, subscriptiondomain.CarrierATT)
	b := e.subscription(t, subscriptiondomain.CarrierSprint)
	quiet := e.subscription(t, subscriptiondomain.CarrierATT)

	for _, price := range []string{"1", "10", "100"} {
		e.usage(t, usagedomain.KindData, subscriptiondomain.CarrierATT, a, 1, price, today)
	}
	e.usage(t, usagedomain.KindVoice, subscriptiondomain.CarrierATT, a, 1, "5", today)
	for _, price := range []string{"0", "2", "20", "200"} {
		e.usage(t, usagedomain.KindData, subscriptiondomain.CarrierSprint, b, 1, price, today)
	}
	e.usage(t, usagedomain.KindData, subscriptiondomain.CarrierATT, quiet, 1, "1.5", today)

	rows, err := e.svc.FindExceeding(context.Background(), decimal.RequireFromString("2"))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, int64(a), rows[0].ID)
	assert.Equal(t, "ATTSubscription", rows[0].SubscriptionType)
	require.NotNil(t, rows[0].DataUsageExceeds)
	assert.Equal(t, "109.00", amount(rows[0].DataUsageExceeds))
	require.NotNil(t, rows[0].VoiceUsageExceeds)
	assert.Equal(t, "3.00", amount(rows[0].VoiceUsageExceeds))

	assert.Equal(t, int64(b), rows[1].ID)
	assert.Equal(t, "SprintSubscription", rows[1].SubscriptionType)
	require.NotNil(t, rows[1].DataUsageExceeds)
	assert.Equal(t, "220.00", amount(rows[1].DataUsageExceeds))
	assert.Nil(t, rows[1].VoiceUsageExceeds)
}

func TestFindExceedingUnchangedByRollup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.subscription(t, subscriptiondomain.CarrierATT)

	e.usage(t, usagedomain.KindData, subscriptiondomain.CarrierATT, a, 10, "4.25", yesterday)
	e.usage(t, usagedomain.KindData, subscriptiondomain.CarrierATT, a, 10, "0.80", today)
	e.usage(t, usagedomain.KindVoice, subscriptiondomain.CarrierATT, a, 10, "1.10", yesterday)

	limit := decimal.RequireFromString("1")
	before, err := e.svc.FindExceeding(ctx, limit)
	require.NoError(t, err)

	_, err = e.rollup.PopulateAll(ctx, yesterday)
	require.NoError(t, err)

	after, err := e.svc.FindExceeding(ctx, limit)
	require.NoError(t, err)

	require.Len(t, after, 1)
	assert.Equal(t, before, after)
	assert.Equal(t, "4.05", amount(after[0].DataUsageExceeds))
	assert.Equal(t, "0.10", amount(after[0].VoiceUsageExceeds))
}

func TestFindExceedingBoundary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	exact := e.subscription(t, subscriptiondomain.CarrierSprint)
	above := e.subscription(t, subscriptiondomain.CarrierSprint)

	e.usage(t, usagedomain.KindVoice, subscriptiondomain.CarrierSprint, exact, 1, "2.50", today)
	e.usage(t, usagedomain.KindVoice, subscriptiondomain.CarrierSprint, above, 1, "2.51", today)

	rows, err := e.svc.FindExceedingForCarrier(ctx, subscriptiondomain.CarrierSprint, decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(above), rows[0].ID)
	assert.Nil(t, rows[0].DataUsageExceeds)
	assert.Equal(t, "0.01", amount(rows[0].VoiceUsageExceeds))

	rows, err = e.svc.FindExceedingForCarrier(ctx, subscriptiondomain.CarrierATT, decimal.Zero)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = e.svc.FindExceedingForCarrier(ctx, "tmobile", decimal.Zero)
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidCarrier)
}

func TestUsageMetricsWindow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.subscription(t, subscriptiondomain.CarrierATT)
	b := e.subscription(t, subscriptiondomain.CarrierSprint)

	e.usage(t, usagedomain.KindData, subscriptiondomain.CarrierATT, a, 1, "0.10", today)
	e.usage(t, usagedomain.KindData, subscriptiondomain.CarrierATT, a, 100, "1.00", today)
	e.usage(t, usagedomain.KindData, subscriptiondomain.CarrierATT, a, 10, "0.50", tomorrow)
	e.usage(t, usagedomain.KindVoice, subscriptiondomain.CarrierSprint, b, 30, "0.05", today)

	rows, err := e.svc.UsageMetrics(ctx, usagedomain.KindData, today, today)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ATT", rows[0].SubscriptionType)
	assert.Equal(t, int64(a), rows[0].SubscriptionID)
	assert.Equal(t, int64(101), rows[0].Usage)
	assert.Equal(t, "1.10", rows[0].Price.String())

	rows, err = e.svc.UsageMetrics(ctx, usagedomain.KindVoice, yesterday, tomorrow)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Sprint", rows[0].SubscriptionType)
	assert.Equal(t, int64(b), rows[0].SubscriptionID)
	assert.Equal(t, int64(30), rows[0].Usage)
}

func TestUsageMetricsSkipsZeroUsage(t *testing.T) {
	e := newEnv(t)
	a := e.subscription(t, subscriptiondomain.CarrierATT)
	e.usage(t, usagedomain.KindData, subscriptiondomain.CarrierATT, a, 0, "0.25", today)

	rows, err := e.svc.UsageMetrics(context.Background(), usagedomain.KindData, yesterday, tomorrow)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUsageMetricsInvertedRangeIsEmpty(t *testing.T) {
	e := newEnv(t)
	a := e.subscription(t, subscriptiondomain.CarrierATT)
	e.usage(t, usagedomain.KindData, subscriptiondomain.CarrierATT, a, 5, "1", today)

	rows, err := e.svc.UsageMetrics(context.Background(), usagedomain.KindData, tomorrow, yesterday)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	_, err = e.svc.UsageMetrics(context.Background(), "sms", yesterday, tomorrow)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidKind)
}

func TestMetricTypeRejectsUnknownField(t *testing.T) {
	_, err := statsdomain.MetricType("tmobile_subscription")
	assert.ErrorIs(t, err, usagedomain.ErrIntegrity)
}
