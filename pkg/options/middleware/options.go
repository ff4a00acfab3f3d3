// Package middleware provides middleware configuration options.
package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 中间件名称常量。
const (
	MiddlewareRecovery  = "recovery"
	MiddlewareRequestID = "request-id"
	MiddlewareTracing   = "tracing"
	MiddlewareLogger    = "logger"
	MiddlewareCORS      = "cors"
	MiddlewareTimeout   = "timeout"
	MiddlewareRateLimit = "rate-limit"
)

// DefaultOrder 默认中间件顺序。
var DefaultOrder = []string{
	MiddlewareRecovery,
	MiddlewareRequestID,
	MiddlewareTracing,
	MiddlewareLogger,
	MiddlewareCORS,
	MiddlewareTimeout,
}

// Available lists every middleware Build understands. rate-limit is opt-in.
var Available = append(append([]string(nil), DefaultOrder...), MiddlewareRateLimit)

// Options 中间件配置。
// Middleware 指定启用的中间件及其应用顺序，为空时使用 DefaultOrder。
type Options struct {
	Middleware []string          `json:"order" mapstructure:"order"`
	Recovery   *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
	RequestID  *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Logger     *LoggerOptions    `json:"logger" mapstructure:"logger"`
	CORS       *CORSOptions      `json:"cors" mapstructure:"cors"`
	Timeout    *TimeoutOptions   `json:"timeout" mapstructure:"timeout"`
	RateLimit  *RateLimitOptions `json:"rate-limit" mapstructure:"rate-limit"`
}

// RecoveryOptions defines recovery middleware options.
type RecoveryOptions struct {
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

// RequestIDOptions defines request ID middleware options.
type RequestIDOptions struct {
	Header string `json:"header" mapstructure:"header"`
}

// LoggerOptions defines logger middleware options.
type LoggerOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// CORSOptions defines CORS middleware options.
type CORSOptions struct {
	AllowOrigins     []string `json:"allow-origins" mapstructure:"allow-origins"`
	AllowMethods     []string `json:"allow-methods" mapstructure:"allow-methods"`
	AllowHeaders     []string `json:"allow-headers" mapstructure:"allow-headers"`
	AllowCredentials bool     `json:"allow-credentials" mapstructure:"allow-credentials"`
	MaxAge           int      `json:"max-age" mapstructure:"max-age"`
}

// TimeoutOptions defines timeout middleware options.
// /chat 自带更长的处理时限，默认跳过。
type TimeoutOptions struct {
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	SkipPaths []string      `json:"skip-paths" mapstructure:"skip-paths"`
}

// RateLimitOptions 按客户端 IP 的令牌桶限流。只作用于 Paths 匹配的路径，
// 空列表表示全部路径。
type RateLimitOptions struct {
	RPS   float64  `json:"rps" mapstructure:"rps"`
	Burst int      `json:"burst" mapstructure:"burst"`
	Paths []string `json:"paths" mapstructure:"paths"`

	// IdleTTL 客户端空闲多久后回收其令牌桶。
	IdleTTL time.Duration `json:"idle-ttl" mapstructure:"idle-ttl"`
}

// NewOptions 创建默认中间件选项。
func NewOptions() *Options {
	return &Options{
		Middleware: append([]string(nil), DefaultOrder...),
		Recovery:   &RecoveryOptions{},
		RequestID:  &RequestIDOptions{Header: "X-Request-ID"},
		Logger: &LoggerOptions{
			SkipPaths: []string{"/health", "/api/v1/health", "/api/v1/metrics"},
		},
		CORS: &CORSOptions{
			AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           86400,
		},
		Timeout: &TimeoutOptions{
			Timeout:   30 * time.Second,
			SkipPaths: []string{"/api/v1/chat", "/api/v1/entities"},
		},
		RateLimit: &RateLimitOptions{
			RPS:     2,
			Burst:   10,
			Paths:   []string{"/api/v1/chat", "/api/v1/entities", "/api/v1/datasets/query"},
			IdleTTL: 10 * time.Minute,
		},
	}
}

// AddFlags adds flags for middleware options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "middleware."
	fs.StringSliceVar(&o.Middleware, p+"order", o.Middleware, "Enabled middleware in the order they apply.")
	fs.BoolVar(&o.Recovery.EnableStackTrace, p+"recovery.enable-stack-trace", o.Recovery.EnableStackTrace, "Include the stack trace in panic responses.")
	fs.StringVar(&o.RequestID.Header, p+"request-id.header", o.RequestID.Header, "Request ID header name.")
	fs.StringSliceVar(&o.Logger.SkipPaths, p+"logger.skip-paths", o.Logger.SkipPaths, "Paths to skip logging.")
	fs.StringSliceVar(&o.CORS.AllowOrigins, p+"cors.allow-origins", o.CORS.AllowOrigins, "CORS allowed origins.")
	fs.StringSliceVar(&o.CORS.AllowMethods, p+"cors.allow-methods", o.CORS.AllowMethods, "CORS allowed methods.")
	fs.StringSliceVar(&o.CORS.AllowHeaders, p+"cors.allow-headers", o.CORS.AllowHeaders, "CORS allowed headers.")
	fs.BoolVar(&o.CORS.AllowCredentials, p+"cors.allow-credentials", o.CORS.AllowCredentials, "CORS allow credentials.")
	fs.IntVar(&o.CORS.MaxAge, p+"cors.max-age", o.CORS.MaxAge, "CORS preflight max age in seconds.")
	fs.DurationVar(&o.Timeout.Timeout, p+"timeout.timeout", o.Timeout.Timeout, "Request timeout.")
	fs.StringSliceVar(&o.Timeout.SkipPaths, p+"timeout.skip-paths", o.Timeout.SkipPaths, "Paths without the request timeout.")
	fs.Float64Var(&o.RateLimit.RPS, p+"rate-limit.rps", o.RateLimit.RPS, "Sustained requests per second allowed per client IP.")
	fs.IntVar(&o.RateLimit.Burst, p+"rate-limit.burst", o.RateLimit.Burst, "Requests a client IP may burst above the rate.")
	fs.StringSliceVar(&o.RateLimit.Paths, p+"rate-limit.paths", o.RateLimit.Paths, "Rate limited paths; a trailing * matches a prefix. Empty limits all paths.")
	fs.DurationVar(&o.RateLimit.IdleTTL, p+"rate-limit.idle-ttl", o.RateLimit.IdleTTL, "Forget a client's bucket after this long without requests.")
}

// Validate validates the middleware options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	known := map[string]bool{}
	for _, name := range Available {
		known[name] = true
	}
	for _, name := range o.Middleware {
		if !known[name] {
			errs = append(errs, fmt.Errorf("unknown middleware %q", name))
		}
	}
	if o.RequestID != nil && o.RequestID.Header == "" {
		errs = append(errs, errors.New("request ID header name is required"))
	}
	if o.Enabled(MiddlewareCORS) && (o.CORS == nil || len(o.CORS.AllowOrigins) == 0) {
		errs = append(errs, errors.New("CORS: AllowOrigins must be explicitly configured, empty list not allowed"))
	}
	if o.Enabled(MiddlewareTimeout) && (o.Timeout == nil || o.Timeout.Timeout <= 0) {
		errs = append(errs, errors.New("middleware timeout must be positive"))
	}
	if o.Enabled(MiddlewareRateLimit) && (o.RateLimit == nil || o.RateLimit.RPS <= 0 || o.RateLimit.Burst < 1) {
		errs = append(errs, errors.New("rate-limit needs a positive rps and a burst of at least 1"))
	}
	return errs
}

// Complete completes the middleware options with defaults.
func (o *Options) Complete() error {
	d := NewOptions()
	if len(o.Middleware) == 0 {
		o.Middleware = d.Middleware
	}
	if o.Recovery == nil {
		o.Recovery = d.Recovery
	}
	if o.RequestID == nil {
		o.RequestID = d.RequestID
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.CORS == nil {
		o.CORS = d.CORS
	}
	if o.Timeout == nil {
		o.Timeout = d.Timeout
	}
	if o.RateLimit == nil {
		o.RateLimit = d.RateLimit
	}
	return nil
}

// Enabled 判断中间件是否启用。
func (o *Options) Enabled(name string) bool {
	for _, n := range o.Middleware {
		if n == name {
			return true
		}
	}
	return false
}
