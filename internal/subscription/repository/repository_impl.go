package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription subscriptiondomain.Variant) error {
	return db.WithContext(ctx).Create(subscription).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, carrier subscriptiondomain.Carrier, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.find(ctx, db, carrier, id, false)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, carrier subscriptiondomain.Carrier, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.find(ctx, db, carrier, id, db.Dialector.Name() != "sqlite")
}

func (r *repo) find(ctx context.Context, db *gorm.DB, carrier subscriptiondomain.Carrier, id snowflake.ID, forUpdate bool) (*subscriptiondomain.Subscription, error) {
	if !carrier.Valid() {
		return nil, subscriptiondomain.ErrInvalidCarrier
	}

	query := fmt.Sprintf(
		`SELECT id, user_id, plan_id, device_id, phone_number, phone_model, effective_date,
		 status, deleted, created_at, updated_at
		 FROM %s WHERE id = ?`,
		carrier.Table(),
	)
	if forUpdate {
		query += " FOR UPDATE"
	}

	var subscription subscriptiondomain.Subscription
	if err := db.WithContext(ctx).Raw(query, id).Scan(&subscription).Error; err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, carrier subscriptiondomain.Carrier, id snowflake.ID, status subscriptiondomain.Status, at time.Time) error {
	if !carrier.Valid() {
		return subscriptiondomain.ErrInvalidCarrier
	}
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE %s SET status = ?, updated_at = ? WHERE id = ?`, carrier.Table()),
		status,
		at,
		id,
	).Error
}

func (r *repo) MarkDeleted(ctx context.Context, db *gorm.DB, carrier subscriptiondomain.Carrier, id snowflake.ID, at time.Time) error {
	if !carrier.Valid() {
		return subscriptiondomain.ErrInvalidCarrier
	}
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE %s SET deleted = ?, updated_at = ? WHERE id = ?`, carrier.Table()),
		true,
		at,
		id,
	).Error
}
