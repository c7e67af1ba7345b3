package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator that reports json field names and knows
// the "ttl" and "scopes" tags.
func newValidator(minTTL, maxTTL time.Duration) *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})

	min, max := int64(minTTL.Seconds()), int64(maxTTL.Seconds())
	_ = v.RegisterValidation("ttl", func(fl validator.FieldLevel) bool {
		s := fl.Field().Int()
		return s >= min && s <= max
	})

	_ = v.RegisterValidation("scopes", func(fl validator.FieldLevel) bool {
		for _, s := range strings.Fields(fl.Field().String()) {
			if s != ScopeCustomer && s != ScopeAdmin {
				return false
			}
		}
		return true
	})

	return v
}

// validationMessage renders validator errors as "field: reason" lines
func validationMessage(err error, minTTL, maxTTL time.Duration) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		var reason string
		switch fe.Tag() {
		case "required":
			reason = "is required"
		case "ttl":
			reason = fmt.Sprintf("must be between %d and %d", int(minTTL.Seconds()), int(maxTTL.Seconds()))
		case "scopes":
			reason = "must contain only 'customer' and 'admin'"
		case "datetime":
			reason = "must be a date formatted YYYY-MM-DD"
		case "max":
			reason = fmt.Sprintf("must be at most %s characters", fe.Param())
		default:
			reason = "is invalid"
		}
		msgs = append(msgs, fe.Field()+": "+reason)
	}
	return strings.Join(msgs, "; ")
}
