package validator

import "strings"

// FieldError 单个字段的校验失败。
type FieldError struct {
	Field   string      `json:"field"`
	Tag     string      `json:"tag"`
	Value   interface{} `json:"value,omitempty"`
	Param   string      `json:"param,omitempty"`
	Message string      `json:"message"`
}

// ValidationErrors is the translated result of a failed validation. It is
// carried as the cause of a 400 response.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// NewValidationError wraps one message as a failed validation.
func NewValidationError(field, tag, message string) *ValidationErrors {
	return &ValidationErrors{Errors: []FieldError{{Field: field, Tag: tag, Message: message}}}
}

func (v *ValidationErrors) Error() string {
	msgs := v.Messages()
	if len(msgs) == 0 {
		return ""
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v *ValidationErrors) HasErrors() bool {
	return v != nil && len(v.Errors) > 0
}

// First returns the message of the first failed field.
func (v *ValidationErrors) First() string {
	if msgs := v.Messages(); len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (v *ValidationErrors) Messages() []string {
	if !v.HasErrors() {
		return nil
	}
	out := make([]string, 0, len(v.Errors))
	for _, fe := range v.Errors {
		out = append(out, fe.Message)
	}
	return out
}
