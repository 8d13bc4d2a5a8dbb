// Package domain contains persistence models for raw and aggregated carrier usage.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MaxRecordPrice is the largest price a single raw record can hold (NUMERIC(5,2)).
var MaxRecordPrice = decimal.RequireFromString("999.99")

// UsageRecord stores a single billable event.
type UsageRecord struct {
	ID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	SubscriptionRef
	Price     decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"price"`
	UsageDate *time.Time      `gorm:"index" json:"usage_date"`
}

type DataUsageRecord struct {
	UsageRecord
	KilobytesUsed int64 `gorm:"not null;default:0;check:chk_kilobytes_used_non_negative,kilobytes_used >= 0" json:"kilobytes_used"`
}

func (DataUsageRecord) TableName() string { return KindData.RawTable() }

type VoiceUsageRecord struct {
	UsageRecord
	SecondsUsed int64 `gorm:"not null;default:0;check:chk_seconds_used_non_negative,seconds_used >= 0" json:"seconds_used"`
}

func (VoiceUsageRecord) TableName() string { return KindVoice.RawTable() }

// AggregatedUsage is one subscription's cumulative total for one day.
type AggregatedUsage struct {
	ID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	SubscriptionRef
	UsageDate time.Time       `gorm:"type:date;not null;index" json:"usage_date"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"price"`
}

type AggDataUsage struct {
	AggregatedUsage
	KilobytesUsed int64 `gorm:"not null;default:0" json:"kilobytes_used"`
}

func (AggDataUsage) TableName() string { return KindData.AggregateTable() }

type AggVoiceUsage struct {
	AggregatedUsage
	SecondsUsed int64 `gorm:"not null;default:0" json:"seconds_used"`
}

func (AggVoiceUsage) TableName() string { return KindVoice.AggregateTable() }

// Record is the kind-independent view of a raw usage row.
type Record struct {
	ID        snowflake.ID
	Kind      Kind
	Ref       SubscriptionRef
	Quantity  int64
	Price     decimal.Decimal
	UsageDate time.Time
}

// Model returns the persistence model for the record's kind.
func (r Record) Model() any {
	date := r.UsageDate
	base := UsageRecord{
		ID:              r.ID,
		SubscriptionRef: r.Ref,
		Price:           r.Price,
		UsageDate:       &date,
	}
	if r.Kind == KindVoice {
		return &VoiceUsageRecord{UsageRecord: base, SecondsUsed: r.Quantity}
	}
	return &DataUsageRecord{UsageRecord: base, KilobytesUsed: r.Quantity}
}
