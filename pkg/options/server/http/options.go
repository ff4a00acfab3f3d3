// Package http 定义 HTTP 服务的监听与超时配置。
package http

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

type Options struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	BasePath string `json:"base-path" mapstructure:"base-path"`
	Mode     string `json:"mode" mapstructure:"mode"`

	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	// WriteTimeout 须大于问答处理时限，否则超时响应发不出去。
	WriteTimeout    time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	IdleTimeout     time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`

	// Swagger serves the API description and UI under /swagger/.
	Swagger bool `json:"swagger" mapstructure:"swagger"`
}

func NewOptions() *Options {
	return &Options{
		Addr:            ":8000",
		BasePath:        "/api/v1",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    150 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		Swagger:         true,
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "http."
	fs.StringVar(&o.Addr, p+"addr", o.Addr, "Listen address, host:port.")
	fs.StringVar(&o.BasePath, p+"base-path", o.BasePath, "Prefix of every API route.")
	fs.StringVar(&o.Mode, p+"mode", o.Mode, "Gin mode: debug, release or test.")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "Timeout for reading a whole request.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "Timeout for writing a response. Keep it above the chat timeout.")
	fs.DurationVar(&o.IdleTimeout, p+"idle-timeout", o.IdleTimeout, "Keep-alive idle timeout.")
	fs.DurationVar(&o.ShutdownTimeout, p+"shutdown-timeout", o.ShutdownTimeout, "Time allowed for in-flight requests on shutdown.")
	fs.BoolVar(&o.Swagger, p+"swagger", o.Swagger, "Serve the Swagger UI at /swagger/index.html.")
}

// Complete strips a trailing slash from the base path.
func (o *Options) Complete() error {
	o.BasePath = strings.TrimRight(o.BasePath, "/")
	return nil
}

func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if _, _, err := net.SplitHostPort(o.Addr); err != nil {
		errs = append(errs, fmt.Errorf("http.addr %q is not host:port", o.Addr))
	}
	if o.BasePath != "" && o.BasePath[0] != '/' {
		errs = append(errs, errors.New("http.base-path must start with '/'"))
	}
	if o.ReadTimeout <= 0 || o.WriteTimeout <= 0 {
		errs = append(errs, errors.New("http.read-timeout and http.write-timeout must be positive"))
	}
	switch o.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("http.mode %q is invalid", o.Mode))
	}
	return errs
}
