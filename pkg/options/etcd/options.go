// Package etcd 定义服务注册使用的 etcd 连接配置。
package etcd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

type Options struct {
	Endpoints []string       `json:"endpoints" mapstructure:"endpoints"`
	Username  string         `json:"username" mapstructure:"username"`
	Password  options.Secret `json:"password" mapstructure:"password"`

	// DialTimeout bounds connection setup; RequestTimeout bounds each KV or
	// lease call.
	DialTimeout    time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`
}

func NewOptions() *Options {
	return &Options{
		Endpoints:      []string{"127.0.0.1:2379"},
		DialTimeout:    5 * time.Second,
		RequestTimeout: 2 * time.Second,
	}
}

func (o *Options) String() string {
	return fmt.Sprintf("etcd%v user=%q password=%s", o.Endpoints, o.Username, o.Password)
}

// Complete takes the password from ETCD_PASSWORD when none is configured.
func (o *Options) Complete() error {
	o.Password.FallbackEnv("ETCD_PASSWORD")
	return nil
}

func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if len(o.Endpoints) == 0 {
		errs = append(errs, errors.New("etcd.endpoints cannot be empty"))
	}
	if o.DialTimeout <= 0 || o.RequestTimeout <= 0 {
		errs = append(errs, errors.New("etcd.dial-timeout and etcd.request-timeout must be positive"))
	}
	return errs
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "etcd."
	fs.StringSliceVar(&o.Endpoints, p+"endpoints", o.Endpoints, "etcd cluster endpoints.")
	fs.StringVar(&o.Username, p+"username", o.Username, "etcd user.")
	options.SecretVar(fs, &o.Password, p+"password", "etcd password. ETCD_PASSWORD is read when unset.")
	fs.DurationVar(&o.DialTimeout, p+"dial-timeout", o.DialTimeout, "Timeout for connecting to the cluster.")
	fs.DurationVar(&o.RequestTimeout, p+"request-timeout", o.RequestTimeout, "Timeout of a single etcd call.")
}
