// Package database provides options for the SQL database holding dataset snapshots.
package database

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 支持的方言
const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// Options 数据库连接配置。
type Options struct {
	// Dialect 数据库类型（sqlite, mysql, postgres）。
	Dialect string `json:"dialect" mapstructure:"dialect"`

	// DSN 连接串；sqlite 时为文件路径。
	DSN string `json:"-" mapstructure:"dsn"`

	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`

	// LogLevel gorm 日志级别（1=silent … 4=info）。
	LogLevel int `json:"log-level" mapstructure:"log-level"`

	// SlowThreshold 超过该耗时的语句按 warn 记录，0 关闭慢查询日志。
	SlowThreshold time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		Dialect:               DialectSQLite,
		DSN:                   "./data/agriqa.db",
		MaxIdleConnections:    10,
		MaxOpenConnections:    20,
		MaxConnectionLifeTime: 10 * time.Minute,
		LogLevel:              1,
		SlowThreshold:         200 * time.Millisecond,
	}
}

// AddFlags adds flags for database options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "db."
	fs.StringVar(&o.Dialect, p+"dialect", o.Dialect, "Database dialect (sqlite|mysql|postgres).")
	fs.StringVar(&o.DSN, p+"dsn", o.DSN, "Database DSN, or the file path for sqlite.")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "Maximum idle connections.")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "Maximum open connections.")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "Maximum connection lifetime.")
	fs.IntVar(&o.LogLevel, p+"log-level", o.LogLevel, "gorm log level (1=silent, 2=error, 3=warn, 4=info).")
	fs.DurationVar(&o.SlowThreshold, p+"slow-threshold", o.SlowThreshold, "Log statements slower than this at warn level. 0 disables.")
}

// Validate validates the database options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Dialect {
	case DialectSQLite, DialectMySQL, DialectPostgres:
	default:
		errs = append(errs, fmt.Errorf("db.dialect %q is not supported", o.Dialect))
	}
	if o.DSN == "" {
		errs = append(errs, fmt.Errorf("db.dsn is required"))
	}
	if o.LogLevel < 1 || o.LogLevel > 4 {
		errs = append(errs, fmt.Errorf("db.log-level must be within [1, 4]"))
	}
	if o.SlowThreshold < 0 {
		errs = append(errs, fmt.Errorf("db.slow-threshold cannot be negative"))
	}
	return errs
}
