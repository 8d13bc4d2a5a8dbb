package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/telcousage/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/telcousage/internal/observability/metrics"
	"go.uber.org/zap"
)

const rateLimitReasonSubscriptionRate = "subscription-rate"

type usageIngestRateLimitKey struct {
	Carrier        field `json:"carrier"`
	SubscriptionID field `json:"subscription_id"`
}

// UsageIngestRateLimit throttles usage recording per subscription. Requests
// whose body does not name a subscription pass through to validation.
func (s *Server) UsageIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.usageLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		carrier, subscriptionID, err := readUsageIngestKey(c)
		if err != nil {
			logger.FromContext(ctx).Warn("usage ingest rate limit read body failed", zap.Error(err))
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		if carrier == "" || subscriptionID == 0 {
			c.Next()
			return
		}

		result, err := s.usageLimiter.AllowSubscription(ctx, carrier, subscriptionID)
		if err != nil {
			logger.FromContext(ctx).Warn("usage ingest rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			denyUsageIngestRateLimit(c, endpoint, rateLimitReasonSubscriptionRate, result.RetryAfter, s.obsMetrics)
			return
		}

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyUsageIngestRateLimit(c *gin.Context, endpoint, reason string, retryAfter time.Duration, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("usage ingest rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, metrics)

	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

// readUsageIngestKey peeks at the JSON body and restores it for the handler.
func readUsageIngestKey(c *gin.Context) (string, int64, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", 0, err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 || !strings.Contains(c.ContentType(), "json") {
		return "", 0, nil
	}

	var payload usageIngestRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", 0, nil
	}

	id, err := strconv.ParseInt(strings.TrimSpace(payload.SubscriptionID.String()), 10, 64)
	if err != nil {
		return "", 0, nil
	}
	return strings.ToLower(strings.TrimSpace(payload.Carrier.String())), id, nil
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
