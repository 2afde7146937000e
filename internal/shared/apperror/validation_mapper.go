package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// leave_type -> Leave Type
func formatFieldName(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	caser := cases.Title(language.English)
	return caser.String(s)
}

func MapValidationError(err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		e := errs[0]
		humanReadableField := formatFieldName(e.Field())

		switch e.Tag() {
		case "required", "notblank":
			return RequiredField(humanReadableField)
		case "max":
			return New(
				CodeInvalidInput,
				fmt.Sprintf("%s must be at most %s characters", humanReadableField, e.Param()),
				http.StatusBadRequest,
			)
		default:
			return InvalidField(humanReadableField)
		}
	}

	return New(
		CodeInvalidInput,
		"Invalid input",
		http.StatusBadRequest,
	)
}
