// Package discovery provides service registration options.
package discovery

import (
	"fmt"
	"net/url"

	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
	etcdopts "github.com/kart-io/agriqa/pkg/options/etcd"
)

var _ options.IOptions = (*Options)(nil)

// Options 服务注册配置。启用后实例以租约写入 etcd，供 Traefik 的 KV provider 路由。
type Options struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// ServiceName names the Traefik router and service.
	ServiceName string `json:"service-name" mapstructure:"service-name"`

	// AdvertiseURL is the URL other hosts reach this instance at, for
	// example http://10.0.0.5:8000.
	AdvertiseURL string `json:"advertise-url" mapstructure:"advertise-url"`

	// Rule is the Traefik router rule. Empty routes the API base path.
	Rule string `json:"rule" mapstructure:"rule"`

	// LeaseTTL 租约秒数，实例失联后注册信息在此时间后过期。
	LeaseTTL int64 `json:"lease-ttl" mapstructure:"lease-ttl"`

	Etcd *etcdopts.Options `json:"etcd" mapstructure:"etcd"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Enabled:     false,
		ServiceName: "agriqa",
		LeaseTTL:    10,
		Etcd:        etcdopts.NewOptions(),
	}
}

// Complete fills the router rule from the API base path.
func (o *Options) Complete(basePath string) error {
	if o.Rule == "" {
		if basePath == "" {
			basePath = "/"
		}
		o.Rule = fmt.Sprintf("PathPrefix(`%s`)", basePath)
	}
	return o.Etcd.Complete()
}

// Validate checks the options when registration is enabled.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}
	var errs []error
	if o.ServiceName == "" {
		errs = append(errs, fmt.Errorf("discovery.service-name cannot be empty"))
	}
	if u, err := url.Parse(o.AdvertiseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("discovery.advertise-url must be an absolute http(s) URL"))
	}
	if o.LeaseTTL < 5 {
		errs = append(errs, fmt.Errorf("discovery.lease-ttl must be at least 5 seconds"))
	}
	errs = append(errs, o.Etcd.Validate()...)
	return errs
}

// AddFlags adds flags for discovery options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "discovery."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Register this instance in etcd for Traefik.")
	fs.StringVar(&o.ServiceName, p+"service-name", o.ServiceName, "Traefik router and service name.")
	fs.StringVar(&o.AdvertiseURL, p+"advertise-url", o.AdvertiseURL, "URL other hosts reach this instance at.")
	fs.StringVar(&o.Rule, p+"rule", o.Rule, "Traefik router rule. Empty routes the API base path.")
	fs.Int64Var(&o.LeaseTTL, p+"lease-ttl", o.LeaseTTL, "Registration lease TTL in seconds.")
	o.Etcd.AddFlags(fs, options.Join(prefixes...)+"discovery")
}
