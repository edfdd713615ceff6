package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	segmentPattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.-]*$`)
)

// Validate is the shared validator instance
var Validate *validator.Validate

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	_ = Validate.RegisterValidation("identifier", validateIdentifier)
	_ = Validate.RegisterValidation("segment", validateSegment)
	_ = Validate.RegisterValidation("finite", validateFinite)
	_ = Validate.RegisterValidation("ascending", validateAscending)

	// Field names follow the yaml keys users write in config files.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"yaml", "json"} {
			name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
}

// Struct validates s against its `validate` tags.
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return formatValidationErrors(verrs)
	}
	return err
}

// Identifier reports whether s can be used as an experiment name.
// Identifiers end up in directory names.
func Identifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Segment reports whether s can be one part of a checkpoint name. Parts are
// joined with '_', so it is not allowed.
func Segment(s string) bool {
	return segmentPattern.MatchString(s)
}

func formatValidationErrors(verrs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fieldPath(fe),
			Value:   fe.Value(),
			Message: getErrorMessage(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name from the namespace, so nested config
// fields read as "store.backend".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("minimum value/length is %s", fe.Param())
	case "max":
		return fmt.Sprintf("maximum value/length is %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "identifier":
		return "must start with a letter or digit and contain only letters, digits, '.', '_' or '-'"
	case "segment":
		return "must start with a letter or digit and contain only letters, digits, '.' or '-'"
	case "finite":
		return "must be a finite number"
	case "ascending":
		return "must be strictly ascending"
	case "hostname_port":
		return "must be host:port"
	default:
		return fmt.Sprintf("validation failed: %s", fe.Tag())
	}
}

func validateIdentifier(fl validator.FieldLevel) bool {
	return Identifier(fl.Field().String())
}

func validateSegment(fl validator.FieldLevel) bool {
	return Segment(fl.Field().String())
}

func validateFinite(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		v := f.Float()
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	default:
		return true
	}
}

func validateAscending(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.Slice && f.Kind() != reflect.Array {
		return false
	}
	for i := 1; i < f.Len(); i++ {
		if f.Index(i).Int() <= f.Index(i-1).Int() {
			return false
		}
	}
	return true
}
