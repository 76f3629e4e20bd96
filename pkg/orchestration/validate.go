package orchestration

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var dns1123Label = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// newValidator builds the request validator with the dns1123 rule used by
// resource names and namespaces.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("dns1123", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) <= 63 && dns1123Label.MatchString(s)
	})
	return v
}

// commonFieldViolations renders validator errors as the developer-facing
// messages carried in validation failures.
func commonFieldViolations(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out = append(out, fmt.Sprintf("%s is required", field))
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "dns1123":
			out = append(out, fmt.Sprintf("%s must be a lowercase DNS-1123 label", field))
		default:
			out = append(out, fmt.Sprintf("%s is invalid", field))
		}
	}
	return out
}
