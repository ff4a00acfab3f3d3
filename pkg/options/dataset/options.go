// Package dataset provides options for the dataset store.
package dataset

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 快照存储后端
const (
	BackendFile = "file"
	BackendDB   = "db"
)

// Options 数据集存储配置。
type Options struct {
	// TTL 快照有效期。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// Backend 快照持久化方式（file 或 db）。
	Backend string `json:"backend" mapstructure:"backend"`

	// DataDir file 后端的快照目录。
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// RemoteBaseURL 远程数据源地址。
	RemoteBaseURL string `json:"remote-base-url" mapstructure:"remote-base-url"`

	// APIKey 远程数据源密钥，可为空。
	APIKey string `json:"-" mapstructure:"api-key"`

	// FetchLimit 单次拉取的最大记录数。
	FetchLimit int `json:"fetch-limit" mapstructure:"fetch-limit"`

	// FetchTimeout 单次拉取超时。
	FetchTimeout time.Duration `json:"fetch-timeout" mapstructure:"fetch-timeout"`

	// FetchRetries 远程拉取的重试次数。
	FetchRetries int `json:"fetch-retries" mapstructure:"fetch-retries"`

	// LoadOnStart 启动时批量加载全部数据集。
	LoadOnStart bool `json:"load-on-start" mapstructure:"load-on-start"`

	// Workers 批量加载数据集的并发数。
	Workers int `json:"workers" mapstructure:"workers"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		TTL:           24 * time.Hour,
		Backend:       BackendFile,
		DataDir:       "./data",
		RemoteBaseURL: "https://api.data.gov.in/resource",
		FetchLimit:    10000,
		FetchTimeout:  30 * time.Second,
		FetchRetries:  0,
		LoadOnStart:   true,
		Workers:       8,
	}
}

// AddFlags adds flags for dataset options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "dataset."
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "How long a dataset snapshot stays fresh.")
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Snapshot persistence backend (file|db).")
	fs.StringVar(&o.DataDir, p+"data-dir", o.DataDir, "Directory for snapshot files when backend=file.")
	fs.StringVar(&o.RemoteBaseURL, p+"remote-base-url", o.RemoteBaseURL, "Base URL of the open data API.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "API key sent in the api-key header.")
	fs.IntVar(&o.FetchLimit, p+"fetch-limit", o.FetchLimit, "Maximum records requested per dataset fetch.")
	fs.DurationVar(&o.FetchTimeout, p+"fetch-timeout", o.FetchTimeout, "Timeout of one remote fetch.")
	fs.IntVar(&o.FetchRetries, p+"fetch-retries", o.FetchRetries, "Retries for remote fetches answering 5xx.")
	fs.BoolVar(&o.LoadOnStart, p+"load-on-start", o.LoadOnStart, "Load every dataset when the server starts.")
	fs.IntVar(&o.Workers, p+"workers", o.Workers, "Concurrent dataset loads in bulk loading.")
}

// Validate validates the dataset options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("dataset.ttl must be positive"))
	}
	switch o.Backend {
	case BackendFile:
		if o.DataDir == "" {
			errs = append(errs, fmt.Errorf("dataset.data-dir is required for the file backend"))
		}
	case BackendDB:
	default:
		errs = append(errs, fmt.Errorf("dataset.backend must be %q or %q", BackendFile, BackendDB))
	}
	if o.FetchLimit <= 0 {
		errs = append(errs, fmt.Errorf("dataset.fetch-limit must be positive"))
	}
	if o.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("dataset.fetch-timeout must be positive"))
	}
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("dataset.workers must be positive"))
	}
	return errs
}
