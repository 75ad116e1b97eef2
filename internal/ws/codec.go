package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"chat-gateway/internal/errs"
)

// codec splits inbound frames into event name and payload, then decodes and
// validates payloads into the request structs of the models package.
type codec struct {
	validate *validator.Validate
}

func newCodec() *codec {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &codec{validate: v}
}

// peek returns the event name and the raw data object of frame.
func (c *codec) peek(frame []byte) (string, []byte, error) {
	if !gjson.ValidBytes(frame) {
		return "", nil, fmt.Errorf("frame is not valid JSON: %w", errs.ErrValidation)
	}
	name := gjson.GetBytes(frame, "event")
	if name.Type != gjson.String || name.String() == "" {
		return "", nil, fmt.Errorf("frame has no event name: %w", errs.ErrValidation)
	}
	data := gjson.GetBytes(frame, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return name.String(), []byte("{}"), nil
	}
	if !data.IsObject() {
		return name.String(), nil, fmt.Errorf("data must be an object: %w", errs.ErrValidation)
	}
	return name.String(), []byte(data.Raw), nil
}

// decode unmarshals data into dst and runs its validate tags.
func (c *codec) decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("malformed payload: %v: %w", err, errs.ErrValidation)
	}
	if err := c.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s: %w", describe(verrs[0]), errs.ErrValidation)
		}
		return fmt.Errorf("invalid payload: %w", errs.ErrValidation)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " is too long"
	case "gt":
		return fe.Field() + " must be positive"
	default:
		return fe.Field() + " is invalid"
	}
}
