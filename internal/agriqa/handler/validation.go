package handler

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"

	uvalidator "github.com/kart-io/agriqa/pkg/utils/validator"
)

// TagDatasetKey 校验数据集键格式：小写字母开头，仅含小写字母、数字与下划线。
// 键是否存在由数据集服务判断（不存在时返回 404）。
const TagDatasetKey = "dataset_key"

var (
	datasetKeyRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
	registerOnce sync.Once
)

type rule struct {
	tag      string
	fn       validator.Func
	messages map[string]string
}

var datasetKeyRule = rule{
	tag: TagDatasetKey,
	fn:  validateDatasetKey,
	messages: map[string]string{
		uvalidator.LangEN: "{0} must be a dataset key such as crop_production",
		uvalidator.LangZH: "{0}必须是数据集键，例如 crop_production",
	},
}

// RegisterValidation installs the agriqa rules on the global validator and
// makes it gin's binding validator. It panics when a rule cannot be
// registered.
func RegisterValidation() {
	registerOnce.Do(func() {
		v := uvalidator.Global()
		if err := registerRules(v, datasetKeyRule); err != nil {
			panic(err)
		}
		uvalidator.InstallGinBinding(v)
	})
}

func registerRules(v *uvalidator.Validator, rules ...rule) error {
	for _, r := range rules {
		if err := v.RegisterValidationWithTranslation(r.tag, r.fn, r.messages); err != nil {
			return fmt.Errorf("register validation %q: %w", r.tag, err)
		}
	}
	return nil
}

func validateDatasetKey(fl validator.FieldLevel) bool {
	return datasetKeyRe.MatchString(fl.Field().String())
}
