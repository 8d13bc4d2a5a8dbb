package ratelimit

import (
	"context"
	"fmt"

	"github.com/smallbiznis/telcousage/internal/config"
)

const keyUsageIngestSubscription = "usage:ingest:%s:%d"

// UsageIngestLimiter bounds how fast a single subscription may record usage.
// A nil limiter allows everything.
type UsageIngestLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewUsageIngestLimiter(cfg config.Config, bucket *TokenBucket) *UsageIngestLimiter {
	if bucket == nil || cfg.UsageIngestRate <= 0 {
		return nil
	}
	burst := cfg.UsageIngestBurst
	if burst <= 0 {
		burst = cfg.UsageIngestRate
	}
	return &UsageIngestLimiter{
		bucket: bucket,
		rate:   float64(cfg.UsageIngestRate),
		burst:  int(burst),
	}
}

func (l *UsageIngestLimiter) Enabled() bool {
	return l != nil
}

func (l *UsageIngestLimiter) AllowSubscription(ctx context.Context, carrier string, subscriptionID int64) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUsageIngestSubscription, carrier, subscriptionID), l.rate, l.burst)
}
