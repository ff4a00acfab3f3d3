// Package redis 定义 Redis 连接配置，被查询分解缓存与向量缓存共用。
package redis

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options Redis 连接与连接池参数。
type Options struct {
	Host     string         `json:"host" mapstructure:"host"`
	Port     int            `json:"port" mapstructure:"port"`
	Password options.Secret `json:"password" mapstructure:"password"`
	Database int            `json:"database" mapstructure:"database"`

	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`
	PoolSize     int           `json:"pool-size" mapstructure:"pool-size"`
	MinIdleConns int           `json:"min-idle-conns" mapstructure:"min-idle-conns"`
	DialTimeout  time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	ReadTimeout  time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
}

func NewOptions() *Options {
	return &Options{
		Host:         "127.0.0.1",
		Port:         6379,
		MaxRetries:   3,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns host:port.
func (o *Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

func (o *Options) String() string {
	return fmt.Sprintf("redis://%s/%d (password %s)", o.Addr(), o.Database, o.Password)
}

// Complete takes the password from REDIS_PASSWORD when none is configured.
func (o *Options) Complete() error {
	o.Password.FallbackEnv("REDIS_PASSWORD")
	return nil
}

func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Host == "" {
		errs = append(errs, fmt.Errorf("redis.host cannot be empty"))
	}
	if o.Port <= 0 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("redis.port %d out of range", o.Port))
	}
	if o.Database < 0 {
		errs = append(errs, fmt.Errorf("redis.database must be >= 0"))
	}
	return errs
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "redis."
	fs.StringVar(&o.Host, p+"host", o.Host, "Redis server host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Redis server port.")
	options.SecretVar(fs, &o.Password, p+"password", "Redis password. REDIS_PASSWORD is read when unset.")
	fs.IntVar(&o.Database, p+"database", o.Database, "Redis logical database.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Retries of a failed command; -1 disables.")
	fs.IntVar(&o.PoolSize, p+"pool-size", o.PoolSize, "Connections kept in the pool.")
	fs.IntVar(&o.MinIdleConns, p+"min-idle-conns", o.MinIdleConns, "Idle connections kept open.")
	fs.DurationVar(&o.DialTimeout, p+"dial-timeout", o.DialTimeout, "Timeout for establishing a connection.")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "Timeout for reading a reply.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "Timeout for writing a command.")
}
