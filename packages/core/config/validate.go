package config

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()

		// Report fields by their config file names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// validateStruct checks the validate tags and converts the first failure
// into a ConfigError named by its config path, e.g. "fields[0].name".
func validateStruct(c *Config) error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &uerrors.ConfigError{Message: err.Error()}
	}

	e := verrs[0]
	field := e.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	cfgErr := &uerrors.ConfigError{Field: field, Value: e.Value(), Message: fieldMessage(e)}
	switch e.Tag() {
	case "required":
		cfgErr.Value = nil
	case "oneof":
		cfgErr.Hint = "use one of: " + e.Param()
	}
	return cfgErr
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		if e.Param() == "0" {
			return "must not be negative"
		}
		return "must be at least " + e.Param()
	case "oneof":
		return "unknown value"
	default:
		return "is invalid"
	}
}
