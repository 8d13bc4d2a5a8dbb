// Package domain describes the read-only usage reports.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"github.com/smallbiznis/telcousage/pkg/money"
)

var ErrInvalidLimit = errors.New("invalid_limit")

// ExceedingSubscription reports how far a subscription's accumulated spend
// is above the requested limit. A nil amount means that kind is not above it.
type ExceedingSubscription struct {
	ID                int64        `json:"id"`
	DataUsageExceeds  *money.Money `json:"data_usage_exceeds"`
	VoiceUsageExceeds *money.Money `json:"voice_usage_exceeds"`
	SubscriptionType  string       `json:"subscription_type"`
}

// UsageMetric is one subscription's usage inside a date window.
type UsageMetric struct {
	SubscriptionType string      `json:"subscription_type"`
	SubscriptionID   int64       `json:"subscription_id"`
	Usage            int64       `json:"usage"`
	Price            money.Money `json:"price"`
}

type Service interface {
	FindExceeding(ctx context.Context, limit decimal.Decimal) ([]ExceedingSubscription, error)
	FindExceedingForCarrier(ctx context.Context, carrier subscriptiondomain.Carrier, limit decimal.Decimal) ([]ExceedingSubscription, error)
	UsageMetrics(ctx context.Context, kind usagedomain.Kind, from, to time.Time) ([]UsageMetric, error)
}

// ExceedingType tags exceeding rows with the subscription model they came from.
func ExceedingType(carrier subscriptiondomain.Carrier) string {
	if carrier == subscriptiondomain.CarrierSprint {
		return "SprintSubscription"
	}
	return "ATTSubscription"
}

// MetricType maps a normalized identity field to the short carrier tag used
// by usage metrics.
func MetricType(field usagedomain.IdentityField) (string, error) {
	switch field {
	case usagedomain.FieldATTSubscription:
		return "ATT", nil
	case usagedomain.FieldSprintSubscription:
		return "Sprint", nil
	default:
		_, err := field.Carrier()
		return "", err
	}
}
