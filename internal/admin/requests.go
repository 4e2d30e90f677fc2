package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type searchRequest struct {
	Username string `json:"username" validate:"required"`
}

type quotaRequest struct {
	Free    int `json:"free" validate:"gte=0"`
	Premium int `json:"premium" validate:"gte=0"`
}

// Days falls back to the configured default when zero. An explicit
// is_premium false revokes instead of granting.
type premiumRequest struct {
	IsPremium  *bool `json:"is_premium"`
	Days       int   `json:"days" validate:"omitempty,gt=0,lte=3650"`
	ResetUsage bool  `json:"reset_usage"`
}

type resetUsageRequest struct {
	Free    bool `json:"free"`
	Premium bool `json:"premium"`
}

type adminRequest struct {
	TelegramID int64 `json:"telegram_id" validate:"required,gt=0"`
}

type broadcastRequest struct {
	Message string `json:"message" validate:"required,max=4096"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. On failure the response
// has already been written and false is returned.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.badRequest(w, "invalid json")
		return false
	}
	err := s.validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		s.internalErrorf(w, "validate request: %w", err)
		return false
	}
	body := errorBody{Error: "validation failed"}
	for _, fe := range verrs {
		body.Fields = append(body.Fields, fieldError{Field: fe.Field(), Message: messageFor(fe)})
	}
	s.writeJSON(w, http.StatusBadRequest, body)
	return false
}

func (s *Server) internalErrorf(w http.ResponseWriter, format string, args ...any) {
	s.writeError(w, fmt.Errorf(format, args...))
}

func messageFor(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation for tag: %s", field, fe.Tag())
	}
}
