package server

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/telcousage/internal/observability/logger"
	statsdomain "github.com/smallbiznis/telcousage/internal/stats/domain"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"github.com/smallbiznis/telcousage/pkg/money"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ValidationErrors collects every invalid request field. It is rendered as
// {"field": ["message", ...]}.
type ValidationErrors struct {
	Fields map[string][]string
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Fields) == 0 {
		return "validation error"
	}
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation error: " + strings.Join(names, ", ")
}

func (v *ValidationErrors) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = map[string][]string{}
	}
	v.Fields[field] = append(v.Fields[field], message)
}

func (v *ValidationErrors) Empty() bool {
	return v == nil || len(v.Fields) == 0
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		c.Header("Content-Type", "application/json")
		if vErr := asValidationErrors(lastErr.Err); vErr != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, vErr.Fields)
			return
		}

		status, payload := mapError(lastErr.Err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(c.Request.Context()).Error("request failed",
				zap.String("error_type", payload.Type),
				zap.Error(lastErr.Err),
			)
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if asValidationErrors(err) != nil || isValidationError(err) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Code:    errorCode(err),
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
			Code:    errorCode(err),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
			Code:    errorCode(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, usagedomain.ErrIntegrity):
		return http.StatusInternalServerError, errorPayload{
			Type:    "integrity_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	return payload.Type, errorCode(err)
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, statsdomain.ErrInvalidLimit),
		errors.Is(err, subscriptiondomain.ErrInvalidCarrier),
		errors.Is(err, subscriptiondomain.ErrInvalidUser),
		errors.Is(err, subscriptiondomain.ErrInvalidStatus),
		errors.Is(err, usagedomain.ErrInvalidKind),
		errors.Is(err, usagedomain.ErrInvalidQuantity),
		errors.Is(err, usagedomain.ErrInvalidPrice):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, subscriptiondomain.ErrInvalidTransition),
		errors.Is(err, subscriptiondomain.ErrSubscriptionDeleted),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotUsable),
		errors.Is(err, usagedomain.ErrRollupInProgress):
		return true
	default:
		return false
	}
}

// errorCode exposes sentinel codes such as "invalid_carrier"; wrapped or
// driver errors are reported without a code.
func errorCode(err error) string {
	if err == nil || asValidationErrors(err) != nil {
		return ""
	}
	code := err.Error()
	if strings.ContainsAny(code, " :") {
		return ""
	}
	return code
}
