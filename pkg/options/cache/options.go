// Package cache provides Redis-backed cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
	redisopts "github.com/kart-io/agriqa/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// Options 缓存配置，同时作用于问题分解缓存与向量缓存。
type Options struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 问题分解缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 问题分解缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// EmbeddingTTL 向量缓存过期时间。
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		Enabled:      false,
		TTL:          time.Hour,
		KeyPrefix:    "agriqa:decompose:",
		EmbeddingTTL: 24 * time.Hour,
		Redis:        redisopts.NewOptions(),
	}
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.BoolVar(&o.Enabled, p+"cache.enabled", o.Enabled, "Enable Redis caching of decompositions and embeddings.")
	fs.DurationVar(&o.TTL, p+"cache.ttl", o.TTL, "Decomposition cache TTL.")
	fs.StringVar(&o.KeyPrefix, p+"cache.key-prefix", o.KeyPrefix, "Decomposition cache key prefix.")
	fs.DurationVar(&o.EmbeddingTTL, p+"cache.embedding-ttl", o.EmbeddingTTL, "Embedding cache TTL.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, append(prefixes, "cache")...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive"))
	}
	if o.EmbeddingTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.embedding-ttl must be positive"))
	}
	if o.Redis != nil {
		errs = append(errs, o.Redis.Validate()...)
	}
	return errs
}

// Complete completes the cache options.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
