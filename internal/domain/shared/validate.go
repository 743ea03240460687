package shared

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct runs tag validation and maps failures to ErrInvalidInput
func ValidateStruct(v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
		}
		return NewDomainError(CodeInvalidInput, "invalid fields: "+strings.Join(fields, ", "))
	}
	return WrapDomainError(CodeInvalidInput, "validation failed", err)
}

// NormalizeName trims whitespace and composes the name to Unicode NFC so
// visually identical names compare equal in the unique index.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
