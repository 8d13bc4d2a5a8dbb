package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	"gorm.io/gorm"
)

// RecordRequest describes one raw usage event. Price and UsageDate are
// optional and default to the carrier rate and the current time.
type RecordRequest struct {
	Kind           Kind
	Carrier        subscriptiondomain.Carrier
	SubscriptionID snowflake.ID
	Quantity       int64
	Price          *decimal.Decimal
	UsageDate      *time.Time
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (Record, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record Record) error
}
