// Package validation binds request bodies and query strings and turns validator failures into
// per-field messages. It registers the custom tags used by request structs on
// gin's validator engine.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/projecthub/projecthub/internal/apierr"
	"github.com/projecthub/projecthub/internal/db/models"
)

// MaxSubdomainLength is the longest subdomain accepted (one DNS label).
const MaxSubdomainLength = 63

var subdomainRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

var registerOnce sync.Once

// ValidSubdomain reports whether s is a lowercase alphanumeric slug with inner hyphens.
func ValidSubdomain(s string) bool {
	return len(s) >= 1 && len(s) <= MaxSubdomainLength && subdomainRe.MatchString(s)
}

// Register installs the custom tags and json field naming on gin's validator.
// It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("subdomain", func(fl validator.FieldLevel) bool {
			return ValidSubdomain(fl.Field().String())
		})
		v.RegisterCustomTypeFunc(nullableString, models.Nullable[string]{})
	})
}

// nullableString exposes the value inside a Nullable[string] to field tags, so
// `binding:"omitempty,uuid"` checks a present value and skips absent or null.
func nullableString(field reflect.Value) interface{} {
	n, ok := field.Interface().(models.Nullable[string])
	if !ok || n.Value == nil {
		return nil
	}
	return *n.Value
}

// jsonFieldName reports fields by their JSON name so messages match the request body.
func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
	}
	if name == "" {
		return f.Name
	}
	return name
}

// BindQuery decodes query parameters into dst and validates them the same way
// BindJSON does for bodies.
func BindQuery(c *gin.Context, dst any) error {
	Register()

	err := c.ShouldBindQuery(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apierr.Validation(FieldErrors(verrs))
	}
	return apierr.BadRequest("Invalid query parameters")
}

// BindJSON decodes the request body into dst and validates it. Every invalid
// field is reported, and an empty body is validated like an empty object.
func BindJSON(c *gin.Context, dst any) error {
	Register()

	err := c.ShouldBindJSON(dst)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(dst)
	}
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apierr.Validation(FieldErrors(verrs))
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apierr.Validation(map[string]string{
			typeErr.Field: fmt.Sprintf("%s has an invalid type", typeErr.Field),
		})
	}
	return apierr.BadRequest("Invalid request body")
}

// FieldErrors maps each failing field to a human readable message.
func FieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Valid email is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "subdomain":
		return "Subdomain must be lowercase alphanumeric with hyphens (1-63 characters)"
	case "uuid", "uuid4":
		return field + " must be a valid id"
	case "datetime":
		return field + " must be a date in YYYY-MM-DD format"
	default:
		return field + " is invalid"
	}
}
