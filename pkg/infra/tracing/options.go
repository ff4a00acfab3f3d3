// Package tracing 负责 OpenTelemetry 的配置、TracerProvider 的安装以及问答流程各阶段的 span。
package tracing

import (
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/version"
	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// SamplerType 采样策略。
type SamplerType string

// 支持的采样策略。
const (
	SamplerAlwaysOn    SamplerType = "always_on"
	SamplerAlwaysOff   SamplerType = "always_off"
	SamplerRatio       SamplerType = "ratio"
	SamplerParentBased SamplerType = "parent_based"
)

// ExporterType 导出方式。
type ExporterType string

// 支持的导出方式。otlp_* 需要 Endpoint，gRPC 形如 localhost:4317，HTTP 形如 localhost:4318。
const (
	ExporterOTLPGRPC ExporterType = "otlp_grpc"
	ExporterOTLPHTTP ExporterType = "otlp_http"
	ExporterStdout   ExporterType = "stdout"
	ExporterNoop     ExporterType = "noop"
)

// Options 链路追踪配置。
type Options struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	ServiceName      string `json:"service-name" mapstructure:"service-name"`
	ServiceVersion   string `json:"service-version" mapstructure:"service-version"`
	ServiceNamespace string `json:"service-namespace" mapstructure:"service-namespace"`
	Environment      string `json:"environment" mapstructure:"environment"`

	ExporterType ExporterType      `json:"exporter-type" mapstructure:"exporter-type"`
	Endpoint     string            `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool              `json:"insecure" mapstructure:"insecure"`
	Headers      map[string]string `json:"headers" mapstructure:"headers"`

	SamplerType  SamplerType `json:"sampler-type" mapstructure:"sampler-type"`
	SamplerRatio float64     `json:"sampler-ratio" mapstructure:"sampler-ratio"`

	// 批量导出参数。
	BatchTimeout  time.Duration `json:"batch-timeout" mapstructure:"batch-timeout"`
	BatchMaxSize  int           `json:"batch-max-size" mapstructure:"batch-max-size"`
	ExportTimeout time.Duration `json:"export-timeout" mapstructure:"export-timeout"`
	MaxQueueSize  int           `json:"max-queue-size" mapstructure:"max-queue-size"`

	// ResourceAttributes are attached to every exported span.
	ResourceAttributes map[string]string `json:"resource-attributes" mapstructure:"resource-attributes"`
}

// NewOptions returns tracing disabled, exporting to a local OTLP collector
// once enabled.
func NewOptions() *Options {
	return &Options{
		ServiceName:        "agriqa",
		Environment:        "development",
		ExporterType:       ExporterOTLPGRPC,
		Endpoint:           "localhost:4317",
		Insecure:           true,
		Headers:            map[string]string{},
		SamplerType:        SamplerParentBased,
		SamplerRatio:       1.0,
		BatchTimeout:       5 * time.Second,
		BatchMaxSize:       512,
		ExportTimeout:      30 * time.Second,
		MaxQueueSize:       2048,
		ResourceAttributes: map[string]string{},
	}
}

// AddFlags adds flags for tracing options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "tracing."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Export OpenTelemetry spans for HTTP requests and pipeline stages.")
	fs.StringVar(&o.ServiceName, p+"service-name", o.ServiceName, "service.name resource attribute.")
	fs.StringVar(&o.ServiceVersion, p+"service-version", o.ServiceVersion, "service.version resource attribute. Defaults to the build version.")
	fs.StringVar(&o.ServiceNamespace, p+"service-namespace", o.ServiceNamespace, "service.namespace resource attribute.")
	fs.StringVar(&o.Environment, p+"environment", o.Environment, "deployment.environment resource attribute.")
	fs.StringVar((*string)(&o.ExporterType), p+"exporter-type", string(o.ExporterType), "Exporter: otlp_grpc, otlp_http, stdout or noop.")
	fs.StringVar(&o.Endpoint, p+"endpoint", o.Endpoint, "OTLP collector endpoint.")
	fs.BoolVar(&o.Insecure, p+"insecure", o.Insecure, "Use plaintext to reach the collector.")
	fs.StringToStringVar(&o.Headers, p+"headers", o.Headers, "Extra OTLP request headers.")
	fs.StringVar((*string)(&o.SamplerType), p+"sampler-type", string(o.SamplerType), "Sampler: always_on, always_off, ratio or parent_based.")
	fs.Float64Var(&o.SamplerRatio, p+"sampler-ratio", o.SamplerRatio, "Fraction of root traces sampled, 0 to 1.")
	fs.DurationVar(&o.BatchTimeout, p+"batch-timeout", o.BatchTimeout, "Longest wait before a batch is exported.")
	fs.IntVar(&o.BatchMaxSize, p+"batch-max-size", o.BatchMaxSize, "Spans per exported batch.")
	fs.DurationVar(&o.ExportTimeout, p+"export-timeout", o.ExportTimeout, "Deadline of one export call.")
	fs.IntVar(&o.MaxQueueSize, p+"max-queue-size", o.MaxQueueSize, "Spans buffered before new ones are dropped.")
}

// Complete fills nil maps and the build version.
func (o *Options) Complete() error {
	if o.Headers == nil {
		o.Headers = map[string]string{}
	}
	if o.ResourceAttributes == nil {
		o.ResourceAttributes = map[string]string{}
	}
	if o.ServiceVersion == "" {
		o.ServiceVersion = version.Get().GitVersion
	}
	return nil
}

// Validate checks the options; disabled tracing is always valid.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.ServiceName == "" {
		errs = append(errs, errors.New("tracing: service-name is required"))
	}
	switch o.ExporterType {
	case ExporterOTLPGRPC, ExporterOTLPHTTP:
		if o.Endpoint == "" {
			errs = append(errs, fmt.Errorf("tracing: endpoint is required for %s", o.ExporterType))
		}
	case ExporterStdout, ExporterNoop:
	default:
		errs = append(errs, fmt.Errorf("tracing: unknown exporter-type %q", o.ExporterType))
	}
	switch o.SamplerType {
	case SamplerAlwaysOn, SamplerAlwaysOff, SamplerRatio, SamplerParentBased:
	default:
		errs = append(errs, fmt.Errorf("tracing: unknown sampler-type %q", o.SamplerType))
	}
	if o.SamplerRatio < 0 || o.SamplerRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing: sampler-ratio must be within [0, 1], got %g", o.SamplerRatio))
	}
	if o.BatchTimeout <= 0 || o.ExportTimeout <= 0 {
		errs = append(errs, errors.New("tracing: batch-timeout and export-timeout must be positive"))
	}
	if o.BatchMaxSize <= 0 || o.MaxQueueSize <= 0 {
		errs = append(errs, errors.New("tracing: batch-max-size and max-queue-size must be positive"))
	}
	return errs
}

func (o *Options) validate() error {
	return errors.Join(o.Validate()...)
}
