// Package milvusopts provides options for the Milvus vector store.
package milvusopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Milvus client configuration.
type Options struct {
	// Address is the Milvus server address (host:port).
	Address string `json:"address" mapstructure:"address"`

	// Database is the database name to use.
	Database string `json:"database" mapstructure:"database"`

	// Username for authentication.
	Username string `json:"username" mapstructure:"username"`

	Password options.Secret `json:"password" mapstructure:"password"`

	// Collection holds the dataset and column documents.
	Collection string `json:"collection" mapstructure:"collection"`

	// Timeout for connection and operations.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Address:    "localhost:19530",
		Database:   "default",
		Collection: "agriqa_datasets",
		Timeout:    30 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Address, p+"milvus.address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, p+"milvus.database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"milvus.username", o.Username, "Milvus username for authentication.")
	options.SecretVar(fs, &o.Password, p+"milvus.password", "Milvus password for authentication.")
	fs.StringVar(&o.Collection, p+"milvus.collection", o.Collection, "Collection holding the relevance index.")
	fs.DurationVar(&o.Timeout, p+"milvus.timeout", o.Timeout, "Connection and operation timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus address is required"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("milvus collection is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus timeout must be positive"))
	}
	return errs
}
