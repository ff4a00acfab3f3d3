// Package pipeline provides options for question processing.
package pipeline

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/agriqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 向量存储后端
const (
	VectorStoreMemory = "memory"
	VectorStoreMilvus = "milvus"
)

// MaxTopDatasets 单个问题最多取数的数据集数。
const MaxTopDatasets = 3

// Options 问答流水线配置。
type Options struct {
	// SearchK 相关性检索返回的数据集数。
	SearchK int `json:"search-k" mapstructure:"search-k"`

	// TopDatasets 参与取数的数据集数。
	TopDatasets int `json:"top-datasets" mapstructure:"top-datasets"`

	// QueryLimit 单数据集查询行数上限。
	QueryLimit int `json:"query-limit" mapstructure:"query-limit"`

	// SummaryThreshold 超过该行数时汇总。
	SummaryThreshold int `json:"summary-threshold" mapstructure:"summary-threshold"`

	// MaxGroups 汇总结果的最大分组数。
	MaxGroups int `json:"max-groups" mapstructure:"max-groups"`

	// SampleSize 无法分组时的采样行数。
	SampleSize int `json:"sample-size" mapstructure:"sample-size"`

	// PromptRows 每个数据源写入提示词的最大行数。
	PromptRows int `json:"prompt-rows" mapstructure:"prompt-rows"`

	// Temperature 模型温度。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// RequestTimeout 单个问题的处理时限。
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`

	// VectorStore 相关性索引后端（memory 或 milvus）。
	VectorStore string `json:"vector-store" mapstructure:"vector-store"`

	// IndexSampleRows 数据集文档中的样例行数。
	IndexSampleRows int `json:"index-sample-rows" mapstructure:"index-sample-rows"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
		SearchK:          5,
		TopDatasets:      3,
		QueryLimit:       1000,
		SummaryThreshold: 100,
		MaxGroups:        100,
		SampleSize:       50,
		PromptRows:       50,
		Temperature:      0.3,
		RequestTimeout:   120 * time.Second,
		VectorStore:      VectorStoreMemory,
		IndexSampleRows:  3,
	}
}

// AddFlags adds flags for pipeline options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pipeline."
	fs.IntVar(&o.SearchK, p+"search-k", o.SearchK, "Datasets returned by relevance search.")
	fs.IntVar(&o.TopDatasets, p+"top-datasets", o.TopDatasets, "Ranked datasets queried for data.")
	fs.IntVar(&o.QueryLimit, p+"query-limit", o.QueryLimit, "Row limit of each dataset query.")
	fs.IntVar(&o.SummaryThreshold, p+"summary-threshold", o.SummaryThreshold, "Results larger than this are summarized.")
	fs.IntVar(&o.MaxGroups, p+"max-groups", o.MaxGroups, "Maximum groups kept in a summary.")
	fs.IntVar(&o.SampleSize, p+"sample-size", o.SampleSize, "Rows sampled when a result cannot be grouped.")
	fs.IntVar(&o.PromptRows, p+"prompt-rows", o.PromptRows, "Rows per data source written into the synthesis prompt.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Model temperature.")
	fs.DurationVar(&o.RequestTimeout, p+"request-timeout", o.RequestTimeout, "Time budget of one question.")
	fs.StringVar(&o.VectorStore, p+"vector-store", o.VectorStore, "Relevance index backend (memory|milvus).")
	fs.IntVar(&o.IndexSampleRows, p+"index-sample-rows", o.IndexSampleRows, "Sample rows embedded in each dataset document.")
}

// Validate validates the pipeline options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	positive := map[string]int{
		"search-k":          o.SearchK,
		"top-datasets":      o.TopDatasets,
		"query-limit":       o.QueryLimit,
		"summary-threshold": o.SummaryThreshold,
		"max-groups":        o.MaxGroups,
		"sample-size":       o.SampleSize,
		"prompt-rows":       o.PromptRows,
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("pipeline.%s must be positive", name))
		}
	}
	if o.TopDatasets > MaxTopDatasets {
		errs = append(errs, fmt.Errorf("pipeline.top-datasets cannot exceed %d", MaxTopDatasets))
	}
	if o.TopDatasets > o.SearchK {
		errs = append(errs, fmt.Errorf("pipeline.top-datasets cannot exceed pipeline.search-k"))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("pipeline.temperature must be within [0, 2]"))
	}
	if o.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.request-timeout must be positive"))
	}
	if o.VectorStore != VectorStoreMemory && o.VectorStore != VectorStoreMilvus {
		errs = append(errs, fmt.Errorf("pipeline.vector-store must be %q or %q", VectorStoreMemory, VectorStoreMilvus))
	}
	return errs
}
