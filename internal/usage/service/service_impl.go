package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telcousage/internal/clock"
	"github.com/smallbiznis/telcousage/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	metrics          *metrics.Metrics
	repo             usagedomain.Repository
	subscriptionRepo subscriptiondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	Metrics          *metrics.Metrics `optional:"true"`
	Repo             usagedomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
}

func NewService(p ServiceParam) usagedomain.Service {
	m := p.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("usage.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		metrics:          m,
		repo:             p.Repo,
		subscriptionRepo: p.SubscriptionRepo,
	}
}

func (s *Service) Record(ctx context.Context, req usagedomain.RecordRequest) (usagedomain.Record, error) {
	if !req.Kind.Valid() {
		return usagedomain.Record{}, usagedomain.ErrInvalidKind
	}
	if !req.Carrier.Valid() {
		return usagedomain.Record{}, subscriptiondomain.ErrInvalidCarrier
	}
	if req.Quantity < 0 {
		return usagedomain.Record{}, usagedomain.ErrInvalidQuantity
	}

	price := req.Carrier.UnitRate().Mul(decimal.NewFromInt(req.Quantity)).Round(2)
	if req.Price != nil {
		price = req.Price.Round(2)
	}
	if price.IsNegative() || price.GreaterThan(usagedomain.MaxRecordPrice) {
		return usagedomain.Record{}, usagedomain.ErrInvalidPrice
	}

	usageDate := s.clock.Now().UTC()
	if req.UsageDate != nil {
		usageDate = req.UsageDate.UTC()
	}

	record := usagedomain.Record{
		ID:        s.genID.Generate(),
		Kind:      req.Kind,
		Ref:       usagedomain.RefFor(req.Carrier, req.SubscriptionID),
		Quantity:  req.Quantity,
		Price:     price,
		UsageDate: usageDate,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.subscriptionRepo.FindByID(ctx, tx, req.Carrier, req.SubscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if subscription.Deleted {
			return subscriptiondomain.ErrSubscriptionDeleted
		}
		if subscription.Status == subscriptiondomain.StatusExpired {
			return subscriptiondomain.ErrSubscriptionNotUsable
		}
		return s.repo.Insert(ctx, tx, record)
	})
	if err != nil {
		return usagedomain.Record{}, err
	}

	s.metrics.RecordUsage(ctx, string(req.Kind), string(req.Carrier))
	s.log.Debug("usage recorded",
		zap.String("kind", string(req.Kind)),
		zap.String("carrier", string(req.Carrier)),
		zap.Int64("subscription_id", req.SubscriptionID.Int64()),
		zap.Int64("quantity", req.Quantity),
		zap.String("price", price.StringFixed(2)),
	)
	return record, nil
}
