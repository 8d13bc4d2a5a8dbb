package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/telcousage/pkg/money"
)

const (
	msgRequired       = "This field is required."
	msgInvalidNumber  = "A valid number is required."
	msgInvalidInteger = "A valid integer is required."
	msgInvalidChoice  = "%q is not a valid choice."
	msgInvalidDate    = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."
)

// field holds a request value as text whether it arrived as a JSON string,
// a JSON number or a form value.
type field struct {
	raw string
	set bool
}

func (f *field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = field{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = field{raw: s, set: true}
		return nil
	}
	*f = field{raw: string(data), set: true}
	return nil
}

// UnmarshalParam lets gin's form binding fill the field.
func (f *field) UnmarshalParam(param string) error {
	*f = field{raw: param, set: true}
	return nil
}

func (f field) String() string {
	if !f.set {
		return ""
	}
	return f.raw
}

// bindBody decodes JSON or form bodies into obj. An empty body, including an
// empty chunked one, leaves obj untouched so the missing fields are reported
// by validation.
func bindBody(c *gin.Context, obj any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBind(obj); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04Z07:00",
}

var naiveTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// parseTimestamp accepts ISO 8601 date-times; values without an offset are UTC.
func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveTimestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid timestamp")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return sf.Name
		}
		return name
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := money.Parse(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
		_, err := parseTimestamp(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("int64", func(fl validator.FieldLevel) bool {
		_, err := strconv.ParseInt(strings.TrimSpace(fl.Field().String()), 10, 64)
		return err == nil
	})
	return v
}

// validate checks obj and reports every failing field at once.
func (s *Server) validate(obj any) error {
	err := s.validator.Struct(obj)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	out := &ValidationErrors{}
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), validationMessage(fe))
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "amount":
		return msgInvalidNumber
	case "int64", "gt", "gte":
		return msgInvalidInteger
	case "oneof":
		return fmt.Sprintf(msgInvalidChoice, fmt.Sprint(fe.Value()))
	case "timestamp":
		return msgInvalidDate
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	default:
		return "Invalid value."
	}
}
