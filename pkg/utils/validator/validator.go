// Package validator 在 go-playground/validator 之上提供按 JSON 标签命名字段、
// 中英文错误信息以及 gin 绑定集成。
package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Supported message languages.
const (
	LangEN = "en"
	LangZH = "zh"
)

type language struct {
	locale   locales.Translator
	register func(*validator.Validate, ut.Translator) error
}

var languages = map[string]language{
	LangEN: {en.New(), en_translations.RegisterDefaultTranslations},
	LangZH: {zh.New(), zh_translations.RegisterDefaultTranslations},
}

// Validator validates request structs and renders failures per language.
// It is immutable after New apart from registered rules.
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
}

var global = sync.OnceValue(New)

// Global returns the process-wide validator, also used by gin binding.
func Global() *Validator { return global() }

func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		trans:    make(map[string]ut.Translator, len(languages)),
	}
	v.validate.RegisterTagNameFunc(fieldName)

	fallback := languages[LangEN].locale
	uni := ut.New(fallback, fallback, languages[LangZH].locale)
	for lang, l := range languages {
		t, _ := uni.GetTranslator(lang)
		_ = l.register(v.validate, t)
		v.trans[lang] = t
	}

	for _, r := range customRules {
		if err := v.RegisterValidationWithTranslation(r.tag, r.fn, r.text); err != nil {
			panic("validator: register " + r.tag + ": " + err.Error())
		}
	}
	return v
}

// fieldName reports fields by their json name, then form name, then Go
// name. Fields tagged json:"-" report "".
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func (v *Validator) Validate(s interface{}) error {
	return v.validate.Struct(s)
}

// translator picks the language of an Accept-Language style value such as
// "zh-CN,zh;q=0.9". Anything not Chinese is English.
func (v *Validator) translator(lang string) ut.Translator {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), LangZH) {
		return v.trans[LangZH]
	}
	return v.trans[LangEN]
}

// RegisterValidationWithTranslation adds rule tag with messages keyed by
// language. {0} in a message is replaced by the field name.
func (v *Validator) RegisterValidationWithTranslation(tag string, fn validator.Func, messages map[string]string) error {
	if err := v.validate.RegisterValidation(tag, fn); err != nil {
		return err
	}
	for lang, msg := range messages {
		err := v.validate.RegisterTranslation(tag, v.translator(lang),
			func(t ut.Translator) error { return t.Add(tag, msg, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(tag, fe.Field())
				return s
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Translate renders err from Validate in lang. Any other error, such as a
// malformed body, becomes one entry for field "body".
func (v *Validator) Translate(err error, lang string) *ValidationErrors {
	if err == nil {
		return nil
	}
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return NewValidationError("body", "invalid", err.Error())
	}

	t := v.translator(lang)
	out := &ValidationErrors{Errors: make([]FieldError, len(fes))}
	for i, fe := range fes {
		out.Errors[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Param:   fe.Param(),
			Message: fe.Translate(t),
		}
	}
	return out
}
