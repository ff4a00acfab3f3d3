// Package options contains flags and options for initializing the agriqa server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/agriqa/internal/agriqa"
	"github.com/kart-io/agriqa/pkg/app/cliflag"
	"github.com/kart-io/agriqa/pkg/infra/tracing"
	cacheopts "github.com/kart-io/agriqa/pkg/options/cache"
	dbopts "github.com/kart-io/agriqa/pkg/options/database"
	datasetopts "github.com/kart-io/agriqa/pkg/options/dataset"
	discoveryopts "github.com/kart-io/agriqa/pkg/options/discovery"
	llmopts "github.com/kart-io/agriqa/pkg/options/llm"
	logopts "github.com/kart-io/agriqa/pkg/options/logger"
	middlewareopts "github.com/kart-io/agriqa/pkg/options/middleware"
	milvusopts "github.com/kart-io/agriqa/pkg/options/milvus"
	pipelineopts "github.com/kart-io/agriqa/pkg/options/pipeline"
	httpopts "github.com/kart-io/agriqa/pkg/options/server/http"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// MiddlewareOptions contains the middleware chain configuration.
	MiddlewareOptions *middlewareopts.Options `json:"middleware" mapstructure:"middleware"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// DatasetOptions contains dataset store configuration.
	DatasetOptions *datasetopts.Options `json:"dataset" mapstructure:"dataset"`

	// DatabaseOptions is used when snapshots are kept in SQL.
	DatabaseOptions *dbopts.Options `json:"db" mapstructure:"db"`

	// CacheOptions contains Redis cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// MilvusOptions is used when the relevance index lives in Milvus.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// PipelineOptions contains question processing limits.
	PipelineOptions *pipelineopts.Options `json:"pipeline" mapstructure:"pipeline"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracing.Options `json:"tracing" mapstructure:"tracing"`

	// DiscoveryOptions controls registration in etcd for Traefik.
	DiscoveryOptions *discoveryopts.Options `json:"discovery" mapstructure:"discovery"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		MiddlewareOptions: middlewareopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		DatasetOptions:    datasetopts.NewOptions(),
		DatabaseOptions:   dbopts.NewOptions(),
		CacheOptions:      cacheopts.NewOptions(),
		MilvusOptions:     milvusopts.NewOptions(),
		ChatOptions:       llmopts.NewChatOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		PipelineOptions:   pipelineopts.NewOptions(),
		TracingOptions:    tracing.NewOptions(),
		DiscoveryOptions:  discoveryopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.DatasetOptions.AddFlags(fss.FlagSet("dataset"))
	o.DatabaseOptions.AddFlags(fss.FlagSet("db"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.PipelineOptions.AddFlags(fss.FlagSet("pipeline"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.DiscoveryOptions.AddFlags(fss.FlagSet("discovery"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.MiddlewareOptions.Complete(); err != nil {
		return fmt.Errorf("middleware: %w", err)
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.DiscoveryOptions.Complete(o.HTTPOptions.BasePath); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	return o.TracingOptions.Complete()
}

// Validate checks whether the options in ServerOptions are valid. Backend
// options are only checked when their backend is selected.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.MiddlewareOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.DatasetOptions.Validate()...)
	if o.DatasetOptions.Backend == datasetopts.BackendDB {
		errs = append(errs, o.DatabaseOptions.Validate()...)
	}
	errs = append(errs, o.CacheOptions.Validate()...)
	if o.PipelineOptions.VectorStore == pipelineopts.VectorStoreMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	errs = append(errs, prefixed("chat", o.ChatOptions.Validate())...)
	errs = append(errs, prefixed("embedding", o.EmbeddingOptions.Validate())...)
	errs = append(errs, o.PipelineOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.DiscoveryOptions.Validate()...)

	if o.HTTPOptions.WriteTimeout > 0 && o.HTTPOptions.WriteTimeout <= o.PipelineOptions.RequestTimeout {
		errs = append(errs, fmt.Errorf("http.write-timeout must exceed pipeline.request-timeout"))
	}

	return utilerrors.NewAggregate(errs)
}

func prefixed(section string, errs []error) []error {
	out := make([]error, len(errs))
	for i, err := range errs {
		out[i] = fmt.Errorf("%s: %w", section, err)
	}
	return out
}

// Config builds an agriqa.Config based on ServerOptions.
func (o *ServerOptions) Config() (*agriqa.Config, error) {
	return &agriqa.Config{
		HTTPOptions:       o.HTTPOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		LogOptions:        o.LogOptions,
		DatasetOptions:    o.DatasetOptions,
		DatabaseOptions:   o.DatabaseOptions,
		CacheOptions:      o.CacheOptions,
		MilvusOptions:     o.MilvusOptions,
		ChatOptions:       o.ChatOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		PipelineOptions:   o.PipelineOptions,
		TracingOptions:    o.TracingOptions,
		DiscoveryOptions:  o.DiscoveryOptions,
	}, nil
}
