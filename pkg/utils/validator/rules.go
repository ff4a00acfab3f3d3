package validator

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagNotBlank     = "notblank"     // Not empty after trimming whitespace
	TagNoWhitespace = "nowhitespace" // No whitespace characters
	TagTrimmed      = "trimmed"      // No leading/trailing spaces
)

var customRules = []struct {
	tag  string
	fn   validator.Func
	text map[string]string
}{
	{TagNotBlank, validateNotBlank, map[string]string{
		LangEN: "{0} must not be blank",
		LangZH: "{0}不能为空白",
	}},
	{TagNoWhitespace, validateNoWhitespace, map[string]string{
		LangEN: "{0} must not contain whitespace characters",
		LangZH: "{0}不能包含空白字符",
	}},
	{TagTrimmed, validateTrimmed, map[string]string{
		LangEN: "{0} must not have leading or trailing spaces",
		LangZH: "{0}不能有前导或尾随空格",
	}},
}

// validateNotBlank 去除空白后不能为空。
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateNoWhitespace(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func validateTrimmed(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == strings.TrimSpace(value)
}
