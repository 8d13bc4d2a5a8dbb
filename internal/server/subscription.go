package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/telcousage/internal/observability/context"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
)

func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.Carrier = subscriptiondomain.Carrier(strings.ToLower(strings.TrimSpace(string(req.Carrier))))
	if err := s.validate(req); err != nil {
		AbortWithError(c, err)
		return
	}

	subscription, err := s.subscriptionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": subscription})
}

func (s *Server) GetSubscription(c *gin.Context) {
	carrier, id, ok := subscriptionPath(c)
	if !ok {
		return
	}

	subscription, err := s.subscriptionSvc.Get(c.Request.Context(), carrier, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subscription})
}

type transitionRequest struct {
	Status string `json:"status" validate:"required,oneof=new active suspended expired"`
}

func (s *Server) TransitionSubscription(c *gin.Context) {
	carrier, id, ok := subscriptionPath(c)
	if !ok {
		return
	}

	var req transitionRequest
	if err := bindBody(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := s.validate(req); err != nil {
		AbortWithError(c, err)
		return
	}

	subscription, err := s.subscriptionSvc.Transition(c.Request.Context(), carrier, id, subscriptiondomain.Status(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subscription})
}

func (s *Server) DeleteSubscription(c *gin.Context) {
	carrier, id, ok := subscriptionPath(c)
	if !ok {
		return
	}

	if err := s.subscriptionSvc.Delete(c.Request.Context(), carrier, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func subscriptionPath(c *gin.Context) (subscriptiondomain.Carrier, snowflake.ID, bool) {
	carrier, err := subscriptiondomain.ParseCarrier(c.Param("carrier"))
	if err != nil {
		AbortWithError(c, err)
		return "", 0, false
	}
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return "", 0, false
	}
	withCarrier(c, carrier)
	return carrier, id, true
}

// withCarrier tags the request context so downstream logs carry the carrier.
func withCarrier(c *gin.Context, carrier subscriptiondomain.Carrier) {
	c.Request = c.Request.WithContext(obscontext.WithCarrier(c.Request.Context(), string(carrier)))
}
