package common

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldErrors maps a JSON field name to a user-facing message.
type FieldErrors map[string]string

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator instance. Field names in errors follow json tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// ValidateFields runs struct validation on v and converts failures into FieldErrors using
// messages keyed by json field name. Fields without a configured message fall back to
// fallback. A nil result means v is valid.
func ValidateFields(v any, messages map[string]string, fallback string) FieldErrors {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	out := FieldErrors{}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		out["_"] = fallback
		return out
	}
	for _, fe := range ve {
		key := fe.Field()
		if _, seen := out[key]; seen {
			continue
		}
		if msg, ok := messages[key]; ok {
			out[key] = msg
			continue
		}
		out[key] = fallback
	}
	return out
}
