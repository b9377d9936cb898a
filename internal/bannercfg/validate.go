package bannercfg

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields under their banner-file key names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkRanges validates field ranges of one node and records each
// violation as a warning under path.
func checkRanges(ds *Diagnostics, banner, path string, node any) {
	err := validate.Struct(node)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		ds.warnf(banner, path, "%v", err)
		return
	}
	for _, fe := range verrs {
		// namespace starts with the struct type name
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		ds.warnf(banner, joinPath(path, field), "%s", formatFieldError(fe))
	}
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s, got %v", fe.Param(), deref(fe.Value()))
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s, got %v", fe.Param(), deref(fe.Value()))
	case "required":
		return "is required"
	default:
		return fmt.Sprintf("failed validation '%s'", fe.Tag())
	}
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return v
}

func joinPath(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}
