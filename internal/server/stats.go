package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	statsdomain "github.com/smallbiznis/telcousage/internal/stats/domain"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"github.com/smallbiznis/telcousage/pkg/money"
)

type exceededRequest struct {
	Limit   field `json:"limit" form:"limit"`
	Carrier field `json:"carrier" form:"carrier"`
}

type exceededInput struct {
	Limit   string `json:"limit" validate:"required,amount"`
	Carrier string `json:"carrier" validate:"omitempty,oneof=att sprint"`
}

// ExceededSubscriptions lists subscriptions whose spend is above the limit,
// optionally restricted to one carrier.
func (s *Server) ExceededSubscriptions(c *gin.Context) {
	var req exceededRequest
	if err := bindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	input := exceededInput{
		Limit:   req.Limit.String(),
		Carrier: strings.ToLower(strings.TrimSpace(req.Carrier.String())),
	}
	if err := s.validate(input); err != nil {
		AbortWithError(c, err)
		return
	}
	limit, err := money.Parse(input.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var rows []statsdomain.ExceedingSubscription
	if input.Carrier == "" {
		rows, err = s.statsSvc.FindExceeding(c.Request.Context(), limit)
	} else {
		withCarrier(c, subscriptiondomain.Carrier(input.Carrier))
		rows, err = s.statsSvc.FindExceedingForCarrier(c.Request.Context(), subscriptiondomain.Carrier(input.Carrier), limit)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type usageMetricsRequest struct {
	UsageType field `json:"usage_type" form:"usage_type"`
	FromDate  field `json:"from_date" form:"from_date"`
	ToDate    field `json:"to_date" form:"to_date"`
}

type usageMetricsInput struct {
	UsageType string `json:"usage_type" validate:"required,oneof=data voice"`
	FromDate  string `json:"from_date" validate:"required,timestamp"`
	ToDate    string `json:"to_date" validate:"required,timestamp"`
}

// UsageMetrics sums raw usage per subscription inside [from_date, to_date].
func (s *Server) UsageMetrics(c *gin.Context) {
	var req usageMetricsRequest
	if err := bindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	input := usageMetricsInput{
		UsageType: req.UsageType.String(),
		FromDate:  req.FromDate.String(),
		ToDate:    req.ToDate.String(),
	}
	if err := s.validate(input); err != nil {
		AbortWithError(c, err)
		return
	}

	kind, err := usagedomain.ParseKind(input.UsageType)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	from, err := parseTimestamp(input.FromDate)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	to, err := parseTimestamp(input.ToDate)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	rows, err := s.statsSvc.UsageMetrics(c.Request.Context(), kind, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
