package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leapstack-labs/sparkify/pkg/core"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their config keys.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the settings every command relies on. Stage locations are
// checked separately by ValidateRun.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err, "")
	}
	if _, ok := core.ParseWriteMode(c.Pipeline.WriteMode); !ok {
		return fmt.Errorf("pipeline.write_mode must be one of: error_if_exists overwrite (got %q)", c.Pipeline.WriteMode)
	}
	if c.Engine != nil {
		if err := c.Engine.Validate(); err != nil {
			return fmt.Errorf("invalid engine configuration: %w", err)
		}
	}
	return nil
}

// ValidateRun checks that both stage location pairs are set.
func (c *Config) ValidateRun() error {
	if err := validate.Struct(c.Pipeline); err != nil {
		return fmt.Errorf("%w\nHint: set pipeline.songs and pipeline.logs in %s or pass --song-input, --song-output, --log-input and --log-output",
			formatValidationError(err, "pipeline."), ConfigFileName)
	}
	return nil
}

// formatValidationError formats validation errors into readable messages.
func formatValidationError(err error, prefix string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e, prefix))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError, prefix string) string {
	field := e.Namespace()
	// Drop the struct type name.
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	field = prefix + field

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s (got %q)", field, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
