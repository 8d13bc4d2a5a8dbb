package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateRequest struct {
	Carrier       Carrier       `json:"carrier" validate:"required,oneof=att sprint"`
	UserID        int64         `json:"user_id" validate:"required,gt=0"`
	PlanID        *snowflake.ID `json:"plan_id,omitempty"`
	DeviceID      string        `json:"device_id" validate:"max=20"`
	PhoneNumber   string        `json:"phone_number" validate:"max=20"`
	PhoneModel    string        `json:"phone_model" validate:"max=128"`
	EffectiveDate *time.Time    `json:"effective_date,omitempty"`
	NetworkType   string        `json:"network_type,omitempty" validate:"max=5"`
	SprintID      *string       `json:"sprint_id,omitempty" validate:"omitempty,max=16"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Variant, error)
	Get(ctx context.Context, carrier Carrier, id snowflake.ID) (Subscription, error)
	Transition(ctx context.Context, carrier Carrier, id snowflake.ID, target Status) (Subscription, error)
	Delete(ctx context.Context, carrier Carrier, id snowflake.ID) error
}

var (
	ErrInvalidCarrier        = errors.New("invalid_carrier")
	ErrInvalidUser           = errors.New("invalid_user")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrInvalidTransition     = errors.New("invalid_transition")
	ErrSubscriptionNotFound  = errors.New("subscription_not_found")
	ErrSubscriptionDeleted   = errors.New("subscription_deleted")
	ErrSubscriptionNotUsable = errors.New("subscription_not_usable")
)
