package config

import (
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"

	scerr "github.com/YuminosukeSato/semigbr/pkg/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report problems under the configuration key, not the Go field name
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return f.Tag.Get("cfg")
		})
	})
	return validate
}

// Validate checks required keys, bound ordering, positive crossover
// constants and enumerated values. Each violation is returned as a
// ValidationError; the caller decides whether they are fatal.
func (c *TrainingConfig) Validate() []error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !scerr.As(err, &fieldErrs) {
		return []error{scerr.Wrap(err, "validating configuration")}
	}

	out := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, scerr.NewValidationError(fe.Field(), describe(fe), fe.Value()))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "key is required"
	case "ltefield":
		return "lower limit must not exceed " + keyOf(fe.Param())
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed " + fe.Tag() + " constraint"
	}
}

func keyOf(fieldName string) string {
	if f, ok := reflect.TypeOf(TrainingConfig{}).FieldByName(fieldName); ok {
		return f.Tag.Get("cfg")
	}
	return fieldName
}
