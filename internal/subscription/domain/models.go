// Package domain contains persistence models for carrier subscriptions.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Carrier names the integration a subscription belongs to.
type Carrier string

const (
	CarrierATT    Carrier = "att"
	CarrierSprint Carrier = "sprint"
)

func ParseCarrier(value string) (Carrier, error) {
	switch Carrier(strings.ToLower(strings.TrimSpace(value))) {
	case CarrierATT:
		return CarrierATT, nil
	case CarrierSprint:
		return CarrierSprint, nil
	default:
		return "", ErrInvalidCarrier
	}
}

func (c Carrier) Valid() bool {
	return c == CarrierATT || c == CarrierSprint
}

// Table is the subscription table for the carrier.
func (c Carrier) Table() string {
	if c == CarrierSprint {
		return SprintSubscription{}.TableName()
	}
	return ATTSubscription{}.TableName()
}

// UnitRate is the price per kilobyte of data or per second of voice.
func (c Carrier) UnitRate() decimal.Decimal {
	if c == CarrierSprint {
		return sprintUnitRate
	}
	return attUnitRate
}

var (
	attUnitRate    = decimal.RequireFromString("0.001")
	sprintUnitRate = decimal.RequireFromString("0.0015")
)

// Status represents lifecycle states for a subscription.
type Status string

const (
	StatusNew       Status = "new"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusExpired   Status = "expired"
)

// ValidStatus reports whether status exists for the carrier. Only Sprint
// subscriptions can be suspended.
func (c Carrier) ValidStatus(status Status) bool {
	switch status {
	case StatusNew, StatusActive, StatusExpired:
		return true
	case StatusSuspended:
		return c == CarrierSprint
	default:
		return false
	}
}

// CanTransition reports whether the carrier allows moving between statuses.
// Expired is terminal.
func (c Carrier) CanTransition(from, to Status) bool {
	if !c.ValidStatus(from) || !c.ValidStatus(to) {
		return false
	}
	switch from {
	case StatusNew:
		return to == StatusActive || to == StatusExpired
	case StatusActive:
		return to == StatusSuspended || to == StatusExpired
	case StatusSuspended:
		return to == StatusActive || to == StatusExpired
	default:
		return false
	}
}

// Subscription holds the columns shared by both carrier tables.
type Subscription struct {
	ID            snowflake.ID  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID        int64         `gorm:"not null;index" json:"user_id"`
	PlanID        *snowflake.ID `gorm:"index" json:"plan_id,omitempty"`
	DeviceID      string        `gorm:"type:varchar(20);not null;default:''" json:"device_id"`
	PhoneNumber   string        `gorm:"type:varchar(20);not null;default:''" json:"phone_number"`
	PhoneModel    string        `gorm:"type:varchar(128);not null;default:''" json:"phone_model"`
	EffectiveDate *time.Time    `json:"effective_date,omitempty"`
	Status        Status        `gorm:"type:varchar(10);not null;default:'new'" json:"status"`
	Deleted       bool          `gorm:"not null;default:false" json:"deleted"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updated_at"`
}

// Variant is implemented by each carrier's subscription model.
type Variant interface {
	Carrier() Carrier
	Base() *Subscription
}

type ATTSubscription struct {
	Subscription
	NetworkType string `gorm:"type:varchar(5);not null;default:''" json:"network_type"`
}

func (ATTSubscription) TableName() string { return "subscriptions_att" }

func (ATTSubscription) Carrier() Carrier { return CarrierATT }

func (s *ATTSubscription) Base() *Subscription { return &s.Subscription }

type SprintSubscription struct {
	Subscription
	SprintID *string `gorm:"type:varchar(16)" json:"sprint_id,omitempty"`
}

func (SprintSubscription) TableName() string { return "subscriptions_sprint" }

func (SprintSubscription) Carrier() Carrier { return CarrierSprint }

func (s *SprintSubscription) Base() *Subscription { return &s.Subscription }

// Plan is reference data a subscription may point at.
type Plan struct {
	ID            snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	Price         decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"price"`
	DataAvailable int64           `gorm:"not null;default:0" json:"data_available"`
}

func (Plan) TableName() string { return "plans" }
