package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telcousage/internal/observability/metrics"
	statsdomain "github.com/smallbiznis/telcousage/internal/stats/domain"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"github.com/smallbiznis/telcousage/internal/usage/query"
	"github.com/smallbiznis/telcousage/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) statsdomain.Service {
	m := p.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("stats.service"),
		metrics: m,
	}
}

type exceedingRow struct {
	ID                int64               `gorm:"column:id"`
	DataUsageExceeds  decimal.NullDecimal `gorm:"column:data_usage_exceeds"`
	VoiceUsageExceeds decimal.NullDecimal `gorm:"column:voice_usage_exceeds"`
	SubscriptionType  string              `gorm:"column:subscription_type"`
}

// FindExceeding reports subscriptions of both carriers whose data or voice
// spend is strictly above limit.
func (s *Service) FindExceeding(ctx context.Context, limit decimal.Decimal) ([]statsdomain.ExceedingSubscription, error) {
	q := query.Concat(
		exceedingQuery(subscriptiondomain.CarrierATT, limit),
		query.Q("UNION"),
		exceedingQuery(subscriptiondomain.CarrierSprint, limit),
		query.Q("ORDER BY subscription_type, id"),
	)
	return s.runExceeding(ctx, q)
}

func (s *Service) FindExceedingForCarrier(ctx context.Context, carrier subscriptiondomain.Carrier, limit decimal.Decimal) ([]statsdomain.ExceedingSubscription, error) {
	if !carrier.Valid() {
		return nil, subscriptiondomain.ErrInvalidCarrier
	}
	q := query.Concat(exceedingQuery(carrier, limit), query.Q("ORDER BY id"))
	return s.runExceeding(ctx, q)
}

func (s *Service) runExceeding(ctx context.Context, q query.Query) ([]statsdomain.ExceedingSubscription, error) {
	s.metrics.RecordReportQuery(ctx, "exceeded")

	var rows []exceedingRow
	if err := s.db.WithContext(ctx).Raw(q.SQL, q.Args...).Scan(&rows).Error; err != nil {
		s.log.Error("exceeding query failed", zap.Error(err))
		return nil, err
	}

	return lo.Map(rows, func(row exceedingRow, _ int) statsdomain.ExceedingSubscription {
		return statsdomain.ExceedingSubscription{
			ID:                row.ID,
			DataUsageExceeds:  positive(row.DataUsageExceeds),
			VoiceUsageExceeds: positive(row.VoiceUsageExceeds),
			SubscriptionType:  row.SubscriptionType,
		}
	}), nil
}

func positive(value decimal.NullDecimal) *money.Money {
	if !value.Valid {
		return nil
	}
	return money.PositiveOrNil(value.Decimal)
}

// exceedingQuery computes, per subscription of carrier, the raw plus rolled
// up price of each kind minus limit. Correlated sums keep the two kinds and
// the two sources from multiplying each other's rows.
func exceedingQuery(carrier subscriptiondomain.Carrier, limit decimal.Decimal) query.Query {
	outer := query.ByCarrier(carrier, "s.id")
	overLimit := func(kind usagedomain.Kind) query.Query {
		return query.Concat(
			query.Q("ROUND("),
			query.CorrelatedSum(kind, query.Raw, query.Price, outer, query.All()),
			query.Q("+"),
			query.CorrelatedSum(kind, query.Aggregated, query.Price, outer, query.All()),
			query.Q("- ?, 2)", limit),
		)
	}

	return query.Concat(
		query.Q(fmt.Sprintf(
			"SELECT x.id AS id, x.data_usage_exceeds AS data_usage_exceeds, x.voice_usage_exceeds AS voice_usage_exceeds, '%s' AS subscription_type FROM (SELECT s.id AS id,",
			statsdomain.ExceedingType(carrier),
		)),
		overLimit(usagedomain.KindData),
		query.Q("AS data_usage_exceeds,"),
		overLimit(usagedomain.KindVoice),
		query.Q(fmt.Sprintf(
			"AS voice_usage_exceeds FROM %s s) x WHERE x.data_usage_exceeds > 0 OR x.voice_usage_exceeds > 0",
			carrier.Table(),
		)),
	)
}

type metricRow struct {
	IDField    string          `gorm:"column:id_field"`
	IDValue    int64           `gorm:"column:id_value"`
	UsageTotal int64           `gorm:"column:usage_total"`
	PriceTotal decimal.Decimal `gorm:"column:price_total"`
}

// UsageMetrics sums raw usage of kind per subscription over [from, to].
// An inverted window is empty.
func (s *Service) UsageMetrics(ctx context.Context, kind usagedomain.Kind, from, to time.Time) ([]statsdomain.UsageMetric, error) {
	if !kind.Valid() {
		return nil, usagedomain.ErrInvalidKind
	}
	if from.After(to) {
		return []statsdomain.UsageMetric{}, nil
	}
	s.metrics.RecordReportQuery(ctx, "usage_metrics")

	q := query.Aggregation{
		Kind:         kind,
		Window:       query.Between(from, to),
		PositiveOnly: true,
	}.Build()

	var rows []metricRow
	if err := s.db.WithContext(ctx).Raw(q.SQL, q.Args...).Scan(&rows).Error; err != nil {
		s.log.Error("usage metrics query failed", zap.Error(err))
		return nil, err
	}

	out := make([]statsdomain.UsageMetric, 0, len(rows))
	for _, row := range rows {
		subscriptionType, err := statsdomain.MetricType(usagedomain.IdentityField(row.IDField))
		if err != nil {
			s.log.Error("usage row cannot be attributed",
				zap.String("id_field", row.IDField),
				zap.Int64("id_value", row.IDValue),
				zap.Error(err),
			)
			return nil, err
		}
		out = append(out, statsdomain.UsageMetric{
			SubscriptionType: subscriptionType,
			SubscriptionID:   row.IDValue,
			Usage:            row.UsageTotal,
			Price:            money.New(row.PriceTotal),
		})
	}
	return out, nil
}
