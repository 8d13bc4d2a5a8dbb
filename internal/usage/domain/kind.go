package domain

import (
	"strings"
	"time"
)

// Kind selects one of the two usage record families.
type Kind string

const (
	KindData  Kind = "data"
	KindVoice Kind = "voice"
)

var Kinds = []Kind{KindData, KindVoice}

func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindData:
		return KindData, nil
	case KindVoice:
		return KindVoice, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) Valid() bool {
	return k == KindData || k == KindVoice
}

// RawTable holds individual usage events of this kind.
func (k Kind) RawTable() string {
	if k == KindVoice {
		return "voice_usage_records"
	}
	return "data_usage_records"
}

// AggregateTable holds per-day rollups of this kind.
func (k Kind) AggregateTable() string {
	if k == KindVoice {
		return "agg_voice_usage"
	}
	return "agg_data_usage"
}

// QuantityColumn is kilobytes for data and seconds for voice.
func (k Kind) QuantityColumn() string {
	if k == KindVoice {
		return "seconds_used"
	}
	return "kilobytes_used"
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
