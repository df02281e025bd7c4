// Package validation registers the request validators shared by gin binding
// and the services.
package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/JunoAX/familytasks-go/internal/models"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// validate is used for checks outside request binding, e.g. patch fields.
var validate = New()

// New returns a validator with the task enum rules registered.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Register adds the custom tags to v.
func Register(v *validator.Validate) error {
	rules := map[string][]string{
		"taskstatus":   models.Statuses,
		"taskpriority": models.Priorities,
		"tasktype":     models.TaskTypes,
	}
	for tag, allowed := range rules {
		if err := v.RegisterValidation(tag, oneOf(allowed)); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

func oneOf(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return slices.Contains(allowed, fl.Field().String())
	}
}

// RegisterGin installs the custom tags on gin's default binding validator.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding validator is not go-playground/validator")
	}
	return Register(v)
}

// Var validates a single value against a tag expression.
func Var(value any, tag string) error {
	return validate.Var(value, tag)
}

// Describe renders binding errors as short field messages.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeField(fe))
	}
	return strings.Join(msgs, "; ")
}

func describeField(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	case "datetime":
		return field + " must be a date in YYYY-MM-DD format"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "taskstatus":
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(models.Statuses, ", "))
	case "taskpriority":
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(models.Priorities, ", "))
	case "tasktype":
		return fmt.Sprintf("%s must be one of %s", field, strings.Join(models.TaskTypes, ", "))
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
