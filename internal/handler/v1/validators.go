package v1

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ICD-10 code shape: one letter, two digits, optional dot and up to four
// more alphanumerics (e.g. O72, O72.1, S06.5X1A).
var icd10Pattern = regexp.MustCompile(`^[A-Z][0-9]{2}(\.[0-9A-Z]{1,4})?$`)

func validICD10(fl validator.FieldLevel) bool {
	return icd10Pattern.MatchString(fl.Field().String())
}

// RegisterValidators installs custom binding tags on gin's validator
// engine. Call once before routes are mounted.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("icd10", validICD10)
	}
}
