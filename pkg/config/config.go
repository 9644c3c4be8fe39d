package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

const (
	OutputJSON  = "json"
	OutputTable = "table"
)

// Config is built once from the global flags and never mutated afterwards.
type Config struct {
	Username    string        `flag:"username" validate:"required"`
	Password    string        `flag:"password" validate:"required"`
	Endpoint    string        `flag:"endpoint" validate:"required,url"`
	Timeout     time.Duration `flag:"timeout" validate:"gt=0"`
	Output      string        `flag:"output" validate:"oneof=json table"`
	Verbose     int           `flag:"verbose" validate:"gte=0"`
	Pushgateway string        `flag:"pushgateway" validate:"omitempty,url"`
}

// String keeps the password out of anything that formats a Config.
func (c Config) String() string {
	password := ""
	if c.Password != "" {
		password = "<redacted>"
	}
	return fmt.Sprintf("{Username:%s Password:%s Endpoint:%s Timeout:%s Output:%s Verbose:%d Pushgateway:%s}",
		c.Username, password, c.Endpoint, c.Timeout, c.Output, c.Verbose, c.Pushgateway)
}

func (c Config) GoString() string {
	return "config.Config" + c.String()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("flag"); name != "" {
			return name
		}
		return strings.ToLower(field.Name)
	})
	return v
}

// Validate checks the validate tags on s and phrases failures in terms of
// the flag each field was parsed from.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "validate options")
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.Newf("%s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	flag := "--" + fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", flag)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", flag, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", flag, fe.Value())
	case "gt", "gte":
		return fmt.Sprintf("%s must be positive", flag)
	default:
		return fmt.Sprintf("%s failed %s validation", flag, fe.Tag())
	}
}
