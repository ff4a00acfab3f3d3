package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Reloadable is a component that applies configuration changes without a
// restart. OnConfigChange receives the freshly decoded section and must
// leave the component unchanged when it returns an error.
type Reloadable interface {
	OnConfigChange(newConfig interface{}) error
}

// Section returns a ChangeHandler that decodes the configuration at key into
// a value produced by newTarget and passes it to component.
func Section(component Reloadable, key string, newTarget func() interface{}) ChangeHandler {
	return func(v *viper.Viper) error {
		target := newTarget()
		if err := v.UnmarshalKey(key, target); err != nil {
			return fmt.Errorf("failed to decode config key %q: %w", key, err)
		}
		if err := component.OnConfigChange(target); err != nil {
			return fmt.Errorf("config key %q rejected: %w", key, err)
		}
		return nil
	}
}
