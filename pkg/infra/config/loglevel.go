package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
)

// LogSection is the part of the log configuration that can change at
// runtime.
type LogSection struct {
	Level string `mapstructure:"level"`
}

// LogLevel applies log.level changes to the running logger.
type LogLevel struct {
	mu      sync.Mutex
	current string
	set     func(core.Level)
}

// NewLogLevel 创建日志级别热更新组件。set 为 nil 时作用于全局 logger。
func NewLogLevel(initial string, set func(core.Level)) *LogLevel {
	if set == nil {
		set = func(l core.Level) { logger.Global().SetLevel(l) }
	}
	return &LogLevel{current: strings.ToLower(initial), set: set}
}

// OnConfigChange implements Reloadable.
func (l *LogLevel) OnConfigChange(newConfig interface{}) error {
	section, ok := newConfig.(*LogSection)
	if !ok {
		return fmt.Errorf("unexpected log config type %T", newConfig)
	}
	next := strings.ToLower(strings.TrimSpace(section.Level))
	if next == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if next == l.current {
		return nil
	}
	level, err := core.ParseLevel(next)
	if err != nil {
		return err
	}
	l.set(level)
	logger.Infow("Log level changed", "from", l.current, "to", next)
	l.current = next
	return nil
}

// Current returns the level last applied.
func (l *LogLevel) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Handler subscribes the component to the "log" section.
func (l *LogLevel) Handler() ChangeHandler {
	return Section(l, "log", func() interface{} { return &LogSection{} })
}
