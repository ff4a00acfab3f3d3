package validator

import (
	"reflect"

	"github.com/gin-gonic/gin/binding"
)

// ginValidator adapts Validator to gin's binding.StructValidator.
type ginValidator struct {
	v *Validator
}

var _ binding.StructValidator = (*ginValidator)(nil)

// ValidateStruct validates structs and pointers to structs; other values
// pass.
func (g *ginValidator) ValidateStruct(obj interface{}) error {
	if obj == nil {
		return nil
	}
	val := reflect.ValueOf(obj)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}
	return g.v.Validate(obj)
}

// Engine returns the underlying validator.Validate instance.
func (g *ginValidator) Engine() interface{} {
	return g.v.validate
}

// InstallGinBinding makes gin's ShouldBind* helpers validate with v.
func InstallGinBinding(v *Validator) {
	binding.Validator = &ginValidator{v: v}
}
