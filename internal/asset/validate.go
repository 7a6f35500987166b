package asset

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/joescharf/auditwise/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a submission before it is handed to a scan.
func Validate(in models.DesignInput) error {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid design input: field %q failed %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid design input: %w", err)
	}

	switch in.Type {
	case models.DesignTypeFigma:
		if !strings.Contains(in.URL, "figma.com") {
			return fmt.Errorf("invalid design input: %q is not a figma.com link", in.URL)
		}
	case models.DesignTypeURL:
		if !strings.HasPrefix(in.URL, "http") {
			return fmt.Errorf("invalid design input: url must start with http")
		}
	case models.DesignTypePNG, models.DesignTypePDF:
		if _, err := ParseDataURL(in.FileData); err != nil {
			return fmt.Errorf("invalid design input: fileData: %w", err)
		}
	}
	return nil
}
