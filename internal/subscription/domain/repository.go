package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription Variant) error
	FindByID(ctx context.Context, db *gorm.DB, carrier Carrier, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, carrier Carrier, id snowflake.ID) (*Subscription, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, carrier Carrier, id snowflake.ID, status Status, at time.Time) error
	MarkDeleted(ctx context.Context, db *gorm.DB, carrier Carrier, id snowflake.ID, at time.Time) error
}
