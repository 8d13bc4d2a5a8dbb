// Package rollup folds raw usage rows of one day into the per-subscription
// daily aggregate tables.
package rollup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	"github.com/smallbiznis/telcousage/internal/config"
	"github.com/smallbiznis/telcousage/internal/observability/metrics"
	"github.com/smallbiznis/telcousage/internal/ratelimit"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"github.com/smallbiznis/telcousage/internal/usage/query"
	"github.com/smallbiznis/telcousage/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Config  *config.RollupConfigHolder
	Metrics *metrics.Metrics  `optional:"true"`
	Locker  *ratelimit.Locker `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	config  *config.RollupConfigHolder
	metrics *metrics.Metrics
	locker  *ratelimit.Locker
}

// Result counts the rows touched by one populate run.
type Result struct {
	Kind    usagedomain.Kind `json:"kind"`
	Date    time.Time        `json:"date"`
	Created int64            `json:"created"`
	Updated int64            `json:"updated"`
	Deleted int64            `json:"deleted"`
}

func NewService(p Params) *Service {
	holder := p.Config
	if holder == nil {
		holder = config.NewStaticRollupConfig(config.DefaultRollupConfig())
	}
	m := p.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("usage.rollup"),
		genID:   p.GenID,
		config:  holder,
		metrics: m,
		locker:  p.Locker,
	}
}

// PopulateAll rolls up data then voice for the given day.
func (s *Service) PopulateAll(ctx context.Context, date time.Time) ([]Result, error) {
	results := make([]Result, 0, len(usagedomain.Kinds))
	for _, kind := range usagedomain.Kinds {
		result, err := s.Populate(ctx, kind, date)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Populate moves every raw row of kind dated on the UTC day of date into the
// aggregate table. It creates missing aggregates, adds the day's sums to
// existing ones, then deletes the raw rows, all in one transaction. Running it
// again for the same day is a no-op.
func (s *Service) Populate(ctx context.Context, kind usagedomain.Kind, date time.Time) (Result, error) {
	if !kind.Valid() {
		return Result{}, usagedomain.ErrInvalidKind
	}
	day := usagedomain.StartOfDay(date)
	cfg := s.config.Get()
	started := time.Now()

	log := s.log.With(
		zap.String("kind", string(kind)),
		zap.String("date", day.Format(time.DateOnly)),
	)

	if cfg.LockEnabled && s.locker != nil {
		key := ratelimit.RollupKey(string(kind), day)
		token, ok, err := s.locker.TryLock(ctx, key, cfg.LockTTL)
		if err != nil {
			return Result{}, fmt.Errorf("acquire rollup lock: %w", err)
		}
		if !ok {
			s.metrics.RecordRollup(ctx, string(kind), metrics.RollupLocked, 0, 0, 0, time.Since(started))
			return Result{}, usagedomain.ErrRollupInProgress
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				log.Warn("failed to release rollup lock", zap.Error(err))
			}
		}()
	}

	var result Result
	operation := func() error {
		var err error
		result, err = s.populateOnce(ctx, kind, day, cfg.BatchSize)
		if err == nil {
			return nil
		}
		// A concurrent populate may have created the same aggregate row first.
		if db.IsSerializationFailure(err) || db.IsDuplicateKeyErr(err) {
			log.Warn("rollup transaction conflict, retrying", zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		s.metrics.RecordRollup(ctx, string(kind), metrics.RollupFailed, 0, 0, 0, time.Since(started))
		log.Error("rollup failed", zap.Error(err))
		return Result{}, err
	}

	s.metrics.RecordRollup(ctx, string(kind), metrics.RollupSuccess, result.Created, result.Updated, result.Deleted, time.Since(started))
	log.Info("rollup completed",
		zap.Int64("created", result.Created),
		zap.Int64("updated", result.Updated),
		zap.Int64("deleted", result.Deleted),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

type missingRow struct {
	IDField string `gorm:"column:id_field"`
	IDValue int64  `gorm:"column:id_value"`
}

func (s *Service) populateOnce(ctx context.Context, kind usagedomain.Kind, day time.Time, batchSize int) (Result, error) {
	result := Result{Kind: kind, Date: day}

	var opts []*sql.TxOptions
	if db.SupportsSerializable(s.db) {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		missing := query.MissingAggregates(kind, day)
		var rows []missingRow
		if err := tx.Raw(missing.SQL, missing.Args...).Scan(&rows).Error; err != nil {
			return err
		}

		// Created rows start at zero and receive their totals from the
		// accumulate step below, like every pre-existing row of the day.
		if len(rows) > 0 {
			models, err := s.newAggregates(kind, day, rows)
			if err != nil {
				return err
			}
			if err := tx.CreateInBatches(models, batchSize).Error; err != nil {
				return err
			}
			result.Created = int64(len(rows))
		}

		accumulate := query.Accumulate(kind, day)
		updated := tx.Exec(accumulate.SQL, accumulate.Args...)
		if updated.Error != nil {
			return updated.Error
		}
		result.Updated = updated.RowsAffected - result.Created

		deleteRaw := query.DeleteRaw(kind, day)
		deleted := tx.Exec(deleteRaw.SQL, deleteRaw.Args...)
		if deleted.Error != nil {
			return deleted.Error
		}
		result.Deleted = deleted.RowsAffected
		return nil
	}, opts...)
	if err != nil {
		return Result{}, err
	}
	if result.Updated < 0 {
		result.Updated = 0
	}
	return result, nil
}

func (s *Service) newAggregates(kind usagedomain.Kind, day time.Time, rows []missingRow) (any, error) {
	refs := make([]usagedomain.SubscriptionRef, 0, len(rows))
	for _, row := range rows {
		identity := usagedomain.Identity{
			Field: usagedomain.IdentityField(row.IDField),
			Value: snowflake.ID(row.IDValue),
		}
		ref, err := identity.Ref()
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	base := func(ref usagedomain.SubscriptionRef) usagedomain.AggregatedUsage {
		return usagedomain.AggregatedUsage{
			ID:              s.genID.Generate(),
			SubscriptionRef: ref,
			UsageDate:       day,
		}
	}

	switch kind {
	case usagedomain.KindVoice:
		models := lo.Map(refs, func(ref usagedomain.SubscriptionRef, _ int) usagedomain.AggVoiceUsage {
			return usagedomain.AggVoiceUsage{AggregatedUsage: base(ref)}
		})
		return &models, nil
	case usagedomain.KindData:
		models := lo.Map(refs, func(ref usagedomain.SubscriptionRef, _ int) usagedomain.AggDataUsage {
			return usagedomain.AggDataUsage{AggregatedUsage: base(ref)}
		})
		return &models, nil
	default:
		return nil, errors.Join(usagedomain.ErrInvalidKind, fmt.Errorf("kind %q", kind))
	}
}
