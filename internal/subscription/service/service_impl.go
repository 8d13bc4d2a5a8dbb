package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcousage/internal/clock"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  subscriptiondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  subscriptiondomain.Repository
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateRequest) (subscriptiondomain.Variant, error) {
	if !req.Carrier.Valid() {
		return nil, subscriptiondomain.ErrInvalidCarrier
	}
	if req.UserID <= 0 {
		return nil, subscriptiondomain.ErrInvalidUser
	}

	now := s.clock.Now().UTC()
	base := subscriptiondomain.Subscription{
		ID:            s.genID.Generate(),
		UserID:        req.UserID,
		PlanID:        req.PlanID,
		DeviceID:      strings.TrimSpace(req.DeviceID),
		PhoneNumber:   strings.TrimSpace(req.PhoneNumber),
		PhoneModel:    strings.TrimSpace(req.PhoneModel),
		EffectiveDate: req.EffectiveDate,
		Status:        subscriptiondomain.StatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var variant subscriptiondomain.Variant
	switch req.Carrier {
	case subscriptiondomain.CarrierATT:
		variant = &subscriptiondomain.ATTSubscription{
			Subscription: base,
			NetworkType:  strings.TrimSpace(req.NetworkType),
		}
	case subscriptiondomain.CarrierSprint:
		variant = &subscriptiondomain.SprintSubscription{
			Subscription: base,
			SprintID:     req.SprintID,
		}
	}

	if err := s.repo.Insert(ctx, s.db, variant); err != nil {
		return nil, err
	}

	s.log.Info("subscription created",
		zap.String("carrier", string(req.Carrier)),
		zap.Int64("subscription_id", base.ID.Int64()),
	)
	return variant, nil
}

func (s *Service) Get(ctx context.Context, carrier subscriptiondomain.Carrier, id snowflake.ID) (subscriptiondomain.Subscription, error) {
	subscription, err := s.repo.FindByID(ctx, s.db, carrier, id)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if subscription == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return *subscription, nil
}

func (s *Service) Transition(ctx context.Context, carrier subscriptiondomain.Carrier, id snowflake.ID, target subscriptiondomain.Status) (subscriptiondomain.Subscription, error) {
	if !carrier.Valid() {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidCarrier
	}
	if !carrier.ValidStatus(target) {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidStatus
	}

	var result subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, carrier, id)
		if err != nil {
			return err
		}
		if subscription == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if subscription.Deleted {
			return subscriptiondomain.ErrSubscriptionDeleted
		}

		if subscription.Status == target {
			result = *subscription
			return nil
		}
		if !carrier.CanTransition(subscription.Status, target) {
			return subscriptiondomain.ErrInvalidTransition
		}

		now := s.clock.Now().UTC()
		if err := s.repo.UpdateStatus(ctx, tx, carrier, id, target, now); err != nil {
			return err
		}

		s.log.Info("subscription transitioned",
			zap.String("carrier", string(carrier)),
			zap.Int64("subscription_id", id.Int64()),
			zap.String("from", string(subscription.Status)),
			zap.String("to", string(target)),
		)

		subscription.Status = target
		subscription.UpdatedAt = now
		result = *subscription
		return nil
	})
	return result, err
}

// Delete soft-deletes the subscription; usage history keeps referencing it.
func (s *Service) Delete(ctx context.Context, carrier subscriptiondomain.Carrier, id snowflake.ID) error {
	subscription, err := s.Get(ctx, carrier, id)
	if err != nil {
		return err
	}
	if subscription.Deleted {
		return nil
	}
	return s.repo.MarkDeleted(ctx, s.db, carrier, id, s.clock.Now().UTC())
}
