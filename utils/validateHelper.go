package utils

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidatePayload runs struct-tag validation (`validate:"..."`) on input
// structs that arrive outside gin's binding path (workflow entry points).
func ValidatePayload(input any) error {
	if err := validate.Struct(input); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return fmt.Errorf("%w: field %s failed on %s", ErrorValidation, errs[0].Field(), errs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrorValidation, err)
	}
	return nil
}

func IsValidEmail(email string) bool {
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}
