package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"github.com/smallbiznis/telcousage/pkg/money"
)

type recordUsageRequest struct {
	UsageType      field `json:"usage_type" form:"usage_type"`
	Carrier        field `json:"carrier" form:"carrier"`
	SubscriptionID field `json:"subscription_id" form:"subscription_id"`
	Quantity       field `json:"quantity" form:"quantity"`
	Price          field `json:"price" form:"price"`
	UsageDate      field `json:"usage_date" form:"usage_date"`
}

type recordUsageInput struct {
	UsageType      string `json:"usage_type" validate:"required,oneof=data voice"`
	Carrier        string `json:"carrier" validate:"required,oneof=att sprint"`
	SubscriptionID string `json:"subscription_id" validate:"required,int64"`
	Quantity       string `json:"quantity" validate:"required,int64"`
	Price          string `json:"price" validate:"omitempty,amount"`
	UsageDate      string `json:"usage_date" validate:"omitempty,timestamp"`
}

type usageRecordResponse struct {
	ID             string      `json:"id"`
	UsageType      string      `json:"usage_type"`
	Carrier        string      `json:"carrier"`
	SubscriptionID int64       `json:"subscription_id"`
	Quantity       int64       `json:"quantity"`
	Price          money.Money `json:"price"`
	UsageDate      time.Time   `json:"usage_date"`
}

// RecordUsage stores one raw data or voice event for a subscription.
func (s *Server) RecordUsage(c *gin.Context) {
	var req recordUsageRequest
	if err := bindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	input := recordUsageInput{
		UsageType:      req.UsageType.String(),
		Carrier:        req.Carrier.String(),
		SubscriptionID: req.SubscriptionID.String(),
		Quantity:       req.Quantity.String(),
		Price:          req.Price.String(),
		UsageDate:      req.UsageDate.String(),
	}
	if err := s.validate(input); err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := parseRecordInput(input)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	withCarrier(c, record.Carrier)

	stored, err := s.usageSvc.Record(c.Request.Context(), record)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	identity, err := stored.Ref.Identity()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, usageRecordResponse{
		ID:             stored.ID.String(),
		UsageType:      string(stored.Kind),
		Carrier:        string(record.Carrier),
		SubscriptionID: identity.Value.Int64(),
		Quantity:       stored.Quantity,
		Price:          money.New(stored.Price),
		UsageDate:      stored.UsageDate,
	})
}

func parseRecordInput(input recordUsageInput) (usagedomain.RecordRequest, error) {
	kind, err := usagedomain.ParseKind(input.UsageType)
	if err != nil {
		return usagedomain.RecordRequest{}, err
	}
	carrier, err := subscriptiondomain.ParseCarrier(input.Carrier)
	if err != nil {
		return usagedomain.RecordRequest{}, err
	}

	subscriptionID, err := strconv.ParseInt(strings.TrimSpace(input.SubscriptionID), 10, 64)
	if err != nil {
		return usagedomain.RecordRequest{}, ErrInvalidRequest
	}
	quantity, err := strconv.ParseInt(strings.TrimSpace(input.Quantity), 10, 64)
	if err != nil {
		return usagedomain.RecordRequest{}, ErrInvalidRequest
	}
	if quantity < 0 {
		vErr := &ValidationErrors{}
		vErr.Add("quantity", "Ensure this value is greater than or equal to 0.")
		return usagedomain.RecordRequest{}, vErr
	}

	req := usagedomain.RecordRequest{
		Kind:           kind,
		Carrier:        carrier,
		SubscriptionID: snowflake.ID(subscriptionID),
		Quantity:       quantity,
	}
	if input.Price != "" {
		price, err := money.Parse(input.Price)
		if err != nil {
			return usagedomain.RecordRequest{}, ErrInvalidRequest
		}
		req.Price = &price
	}
	if input.UsageDate != "" {
		at, err := parseTimestamp(input.UsageDate)
		if err != nil {
			return usagedomain.RecordRequest{}, ErrInvalidRequest
		}
		req.UsageDate = &at
	}
	return req, nil
}
