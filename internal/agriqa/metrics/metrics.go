// Package metrics 提供问答流水线的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// QAMetrics 问答服务业务指标。
type QAMetrics struct {
	// 查询指标
	queriesTotal  uint64
	queriesErrors uint64
	queryDuration float64

	// 分解缓存
	decomposeCacheHits   uint64
	decomposeCacheMisses uint64

	// 数据检索
	retrievalTotal     uint64
	retrievalErrors    uint64
	retrievalSummaries uint64
	retrievalDuration  float64

	// 数据集拉取
	remoteFetches      uint64
	syntheticFallbacks uint64
	snapshotHits       uint64

	// LLM 调用
	llmCallsTotal   uint64
	llmCallsErrors  uint64
	llmDuration     float64
	llmTokensTotal  uint64
	llmParseFailure uint64

	// 索引
	documentsIndexed uint64
	indexErrors      uint64

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	globalQAMetrics *QAMetrics
	qaMetricsMu     sync.Mutex
)

// GetQAMetrics 获取全局指标实例。
func GetQAMetrics() *QAMetrics {
	qaMetricsMu.Lock()
	defer qaMetricsMu.Unlock()
	if globalQAMetrics == nil {
		globalQAMetrics = &QAMetrics{startTime: time.Now()}
	}
	return globalQAMetrics
}

// Reset 用新实例替换全局指标，主要用于测试。
func Reset() *QAMetrics {
	qaMetricsMu.Lock()
	defer qaMetricsMu.Unlock()
	globalQAMetrics = &QAMetrics{startTime: time.Now()}
	return globalQAMetrics
}

func (m *QAMetrics) addDuration(target *float64, d time.Duration) {
	m.durationMu.Lock()
	*target += d.Seconds()
	m.durationMu.Unlock()
}

// RecordQuery 记录一次完整查询。
func (m *QAMetrics) RecordQuery(duration time.Duration, err error) {
	atomic.AddUint64(&m.queriesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.queriesErrors, 1)
		return
	}
	m.addDuration(&m.queryDuration, duration)
}

// RecordDecomposeCache 记录分解缓存命中情况。
func (m *QAMetrics) RecordDecomposeCache(hit bool) {
	if hit {
		atomic.AddUint64(&m.decomposeCacheHits, 1)
		return
	}
	atomic.AddUint64(&m.decomposeCacheMisses, 1)
}

// RecordRetrieval 记录单个数据集的检索。
func (m *QAMetrics) RecordRetrieval(duration time.Duration, summarized bool, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}
	if summarized {
		atomic.AddUint64(&m.retrievalSummaries, 1)
	}
	m.addDuration(&m.retrievalDuration, duration)
}

// RecordFetch 记录数据集拉取的来源。
func (m *QAMetrics) RecordFetch(origin string) {
	switch origin {
	case "remote":
		atomic.AddUint64(&m.remoteFetches, 1)
	case "synthetic":
		atomic.AddUint64(&m.syntheticFallbacks, 1)
	case "cache":
		atomic.AddUint64(&m.snapshotHits, 1)
	}
}

// RecordLLMCall 记录 LLM 调用。
func (m *QAMetrics) RecordLLMCall(duration time.Duration, tokens int, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}
	m.addDuration(&m.llmDuration, duration)
	if tokens > 0 {
		atomic.AddUint64(&m.llmTokensTotal, uint64(tokens))
	}
}

// RecordParseFailure 记录模型输出无法解析为 JSON。
func (m *QAMetrics) RecordParseFailure() {
	atomic.AddUint64(&m.llmParseFailure, 1)
}

// RecordIndexing 记录索引操作。
func (m *QAMetrics) RecordIndexing(documents int, err error) {
	if err != nil {
		atomic.AddUint64(&m.indexErrors, 1)
		return
	}
	atomic.AddUint64(&m.documentsIndexed, uint64(documents))
}

func writeMetric(sb *strings.Builder, prefix, name, typ, help string, value interface{}) {
	fmt.Fprintf(sb, "# HELP %s_%s %s\n", prefix, name, help)
	fmt.Fprintf(sb, "# TYPE %s_%s %s\n", prefix, name, typ)
	switch v := value.(type) {
	case float64:
		fmt.Fprintf(sb, "%s_%s %.6f\n\n", prefix, name, v)
	default:
		fmt.Fprintf(sb, "%s_%s %v\n\n", prefix, name, v)
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *QAMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	m.durationMu.Lock()
	queryDuration, retrievalDuration, llmDuration := m.queryDuration, m.retrievalDuration, m.llmDuration
	m.durationMu.Unlock()

	var sb strings.Builder
	writeMetric(&sb, prefix, "queries_total", "counter", "Total number of questions processed.", atomic.LoadUint64(&m.queriesTotal))
	writeMetric(&sb, prefix, "queries_errors_total", "counter", "Number of failed questions.", atomic.LoadUint64(&m.queriesErrors))
	writeMetric(&sb, prefix, "query_duration_seconds_total", "counter", "Total question processing time.", queryDuration)
	writeMetric(&sb, prefix, "decompose_cache_hits_total", "counter", "Decomposition cache hits.", atomic.LoadUint64(&m.decomposeCacheHits))
	writeMetric(&sb, prefix, "decompose_cache_misses_total", "counter", "Decomposition cache misses.", atomic.LoadUint64(&m.decomposeCacheMisses))
	writeMetric(&sb, prefix, "retrieval_total", "counter", "Dataset retrievals attempted.", atomic.LoadUint64(&m.retrievalTotal))
	writeMetric(&sb, prefix, "retrieval_errors_total", "counter", "Dataset retrievals skipped after failure.", atomic.LoadUint64(&m.retrievalErrors))
	writeMetric(&sb, prefix, "retrieval_summaries_total", "counter", "Retrievals reduced to a grouped summary or sample.", atomic.LoadUint64(&m.retrievalSummaries))
	writeMetric(&sb, prefix, "retrieval_duration_seconds_total", "counter", "Total retrieval time.", retrievalDuration)
	writeMetric(&sb, prefix, "dataset_remote_fetches_total", "counter", "Snapshots fetched from the remote source.", atomic.LoadUint64(&m.remoteFetches))
	writeMetric(&sb, prefix, "dataset_synthetic_fallbacks_total", "counter", "Snapshots generated after a remote failure.", atomic.LoadUint64(&m.syntheticFallbacks))
	writeMetric(&sb, prefix, "dataset_snapshot_hits_total", "counter", "Fetches served by a fresh snapshot.", atomic.LoadUint64(&m.snapshotHits))
	writeMetric(&sb, prefix, "llm_calls_total", "counter", "Total number of LLM calls.", atomic.LoadUint64(&m.llmCallsTotal))
	writeMetric(&sb, prefix, "llm_calls_errors_total", "counter", "Number of LLM call errors.", atomic.LoadUint64(&m.llmCallsErrors))
	writeMetric(&sb, prefix, "llm_calls_duration_seconds_total", "counter", "Total LLM call duration.", llmDuration)
	writeMetric(&sb, prefix, "llm_tokens_total", "counter", "Total tokens reported by the provider.", atomic.LoadUint64(&m.llmTokensTotal))
	writeMetric(&sb, prefix, "llm_parse_failures_total", "counter", "Model outputs that were not valid JSON.", atomic.LoadUint64(&m.llmParseFailure))
	writeMetric(&sb, prefix, "documents_indexed_total", "counter", "Documents added to the relevance index.", atomic.LoadUint64(&m.documentsIndexed))
	writeMetric(&sb, prefix, "index_errors_total", "counter", "Number of indexing errors.", atomic.LoadUint64(&m.indexErrors))
	writeMetric(&sb, prefix, "uptime_seconds", "gauge", "Service uptime in seconds.", time.Since(m.startTime).Seconds())
	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *QAMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	queryDuration, retrievalDuration, llmDuration := m.queryDuration, m.retrievalDuration, m.llmDuration
	m.durationMu.Unlock()

	avg := func(total float64, n uint64) float64 {
		if n == 0 {
			return 0
		}
		return total / float64(n)
	}

	queries := atomic.LoadUint64(&m.queriesTotal)
	queryErrors := atomic.LoadUint64(&m.queriesErrors)
	retrievals := atomic.LoadUint64(&m.retrievalTotal)
	retrievalErrors := atomic.LoadUint64(&m.retrievalErrors)
	llmCalls := atomic.LoadUint64(&m.llmCallsTotal)
	llmErrors := atomic.LoadUint64(&m.llmCallsErrors)
	hits := atomic.LoadUint64(&m.decomposeCacheHits)
	misses := atomic.LoadUint64(&m.decomposeCacheMisses)

	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	return map[string]interface{}{
		"queries": map[string]interface{}{
			"total":                queries,
			"errors":               queryErrors,
			"avg_duration_seconds": avg(queryDuration, queries-queryErrors),
		},
		"decompose_cache": map[string]interface{}{
			"hits":     hits,
			"misses":   misses,
			"hit_rate": hitRate,
		},
		"retrieval": map[string]interface{}{
			"total":                retrievals,
			"errors":               retrievalErrors,
			"summarized":           atomic.LoadUint64(&m.retrievalSummaries),
			"avg_duration_seconds": avg(retrievalDuration, retrievals-retrievalErrors),
		},
		"datasets": map[string]interface{}{
			"remote_fetches":      atomic.LoadUint64(&m.remoteFetches),
			"synthetic_fallbacks": atomic.LoadUint64(&m.syntheticFallbacks),
			"snapshot_hits":       atomic.LoadUint64(&m.snapshotHits),
		},
		"llm": map[string]interface{}{
			"calls":                llmCalls,
			"errors":               llmErrors,
			"tokens":               atomic.LoadUint64(&m.llmTokensTotal),
			"parse_failures":       atomic.LoadUint64(&m.llmParseFailure),
			"avg_duration_seconds": avg(llmDuration, llmCalls-llmErrors),
		},
		"index": map[string]interface{}{
			"documents": atomic.LoadUint64(&m.documentsIndexed),
			"errors":    atomic.LoadUint64(&m.indexErrors),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}
