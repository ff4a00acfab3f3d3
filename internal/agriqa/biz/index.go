package biz

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/agriqa/internal/agriqa/catalog"
	"github.com/kart-io/agriqa/internal/agriqa/metrics"
	"github.com/kart-io/agriqa/internal/agriqa/store"
	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/llm"
)

const (
	// DefaultSampleRows 数据集文档中的样例行数。
	DefaultSampleRows = 3

	// maxColumnSamples 列文档中的样例取值上限。
	maxColumnSamples = 10

	// overFetchFactor 检索时的超额倍数，保证去重后仍能得到 k 个数据集。
	overFetchFactor = 3

	// embedBatchSize 单次向量化的文档数。
	embedBatchSize = 64

	contextDocuments = 10
	contextParts     = 5
)

// DatasetReader is the part of the dataset store the pipeline reads from.
type DatasetReader interface {
	Fetch(ctx context.Context, key string, forceRefresh bool) (*model.Table, error)
	Query(ctx context.Context, key string, filters store.Filters, limit int) (*model.Table, error)
}

// IndexConfig 相关性索引配置。
type IndexConfig struct {
	// SampleRows 数据集文档中的样例行数。
	SampleRows int
}

// RelevanceIndex ranks catalog datasets by semantic similarity to a question.
type RelevanceIndex struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	datasets DatasetReader
	config   *IndexConfig

	// 串行化建索引
	mu sync.Mutex
}

// NewRelevanceIndex 创建相关性索引实例。
func NewRelevanceIndex(vs store.VectorStore, embedder llm.EmbeddingProvider, datasets DatasetReader, config *IndexConfig) *RelevanceIndex {
	if config == nil {
		config = &IndexConfig{}
	}
	if config.SampleRows <= 0 {
		config.SampleRows = DefaultSampleRows
	}
	return &RelevanceIndex{
		store:    vs,
		embedder: embedder,
		datasets: datasets,
		config:   config,
	}
}

// Count returns the number of indexed documents.
func (x *RelevanceIndex) Count(ctx context.Context) (int64, error) {
	return x.store.Count(ctx)
}

// EnsureIndexed indexes the whole catalog unless the vector store already
// holds documents. It reports whether indexing ran.
func (x *RelevanceIndex) EnsureIndexed(ctx context.Context) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	n, err := x.store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count documents: %w", err)
	}
	if n > 0 {
		logger.Infow("Relevance index already populated, skipping indexing", "documents", n)
		return false, nil
	}

	_, err = x.indexAll(ctx, catalog.All(), x.config.SampleRows)
	return err == nil, err
}

// Rebuild drops every document and indexes the catalog again.
func (x *RelevanceIndex) Rebuild(ctx context.Context) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset vector store: %w", err)
	}
	return x.indexAll(ctx, catalog.All(), x.config.SampleRows)
}

// IndexAll builds and stores the documents of the given datasets. A dataset
// that cannot be fetched is logged and skipped. It returns the number of
// documents written.
func (x *RelevanceIndex) IndexAll(ctx context.Context, descriptors []model.Descriptor, sampleRows int) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.indexAll(ctx, descriptors, sampleRows)
}

func (x *RelevanceIndex) indexAll(ctx context.Context, descriptors []model.Descriptor, sampleRows int) (n int, err error) {
	defer func() { metrics.GetQAMetrics().RecordIndexing(n, err) }()

	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}

	var docs []store.Document
	for _, desc := range descriptors {
		table, err := x.datasets.Fetch(ctx, desc.Key, false)
		if err != nil {
			logger.Errorw("Failed to index dataset", "dataset", desc.Key, "error", err.Error())
			continue
		}
		docs = append(docs, BuildDocuments(desc, table, sampleRows)...)
	}
	if len(docs) == 0 {
		logger.Warnw("No dataset documents to index")
		return 0, nil
	}

	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		embeddings, err := x.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(batch) {
			return 0, fmt.Errorf("embedding provider returned %d vectors for %d documents", len(embeddings), len(batch))
		}
		for i := range batch {
			batch[i].Embedding = embeddings[i]
		}
	}

	if err := x.store.Ensure(ctx, len(docs[0].Embedding)); err != nil {
		return 0, fmt.Errorf("prepare vector store: %w", err)
	}
	if err := x.store.Add(ctx, docs); err != nil {
		return 0, fmt.Errorf("store documents: %w", err)
	}

	logger.Infow("Indexed dataset documents", "datasets", len(descriptors), "documents", len(docs))
	return len(docs), nil
}

// Search returns at most k distinct datasets closest to the query, best first.
func (x *RelevanceIndex) Search(ctx context.Context, query string, k int) ([]model.Candidate, error) {
	if k <= 0 {
		return []model.Candidate{}, nil
	}

	embedding, err := x.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := x.store.Query(ctx, embedding, k*overFetchFactor, "")
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	seen := make(map[string]bool, k)
	out := make([]model.Candidate, 0, k)
	for _, hit := range hits {
		key := hit.DatasetKey()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		desc, err := catalog.Get(key)
		if err != nil {
			logger.Warnw("Indexed document refers to unknown dataset", "dataset", key)
			continue
		}
		out = append(out, model.Candidate{
			DatasetKey:     desc.Key,
			Name:           desc.Name,
			Category:       desc.Category,
			Description:    desc.Description,
			URL:            desc.URL,
			RelevanceScore: clamp01(1 - hit.Distance),
		})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// DatasetContext returns the indexed text of one dataset most related to
// the query.
func (x *RelevanceIndex) DatasetContext(ctx context.Context, key, query string) (string, error) {
	if _, err := catalog.Get(key); err != nil {
		return "", err
	}

	embedding, err := x.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := x.store.Query(ctx, embedding, contextDocuments, key)
	if err != nil {
		return "", fmt.Errorf("vector search: %w", err)
	}

	parts := make([]string, 0, contextParts)
	for _, hit := range hits {
		if len(parts) == contextParts {
			break
		}
		if hit.Metadata[store.MetaDocumentType] == store.DocumentTypeColumn {
			parts = append(parts, "Column "+hit.Metadata[store.MetaColumnName]+": "+hit.Content)
			continue
		}
		parts = append(parts, hit.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}

// BuildDocuments returns the dataset document followed by one document per
// column.
func BuildDocuments(desc model.Descriptor, table *model.Table, sampleRows int) []store.Document {
	if table == nil {
		table = &model.Table{}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Dataset: %s\n", desc.Name)
	fmt.Fprintf(&sb, "Category: %s\n", desc.Category)
	fmt.Fprintf(&sb, "Description: %s\n", desc.Description)
	fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(table.Columns, ", "))
	fmt.Fprintf(&sb, "Row Count: %d\n", table.Len())
	sb.WriteString("Sample Data:\n")
	sb.WriteString(renderRows(table.Head(sampleRows)))

	docs := make([]store.Document, 0, len(table.Columns)+1)
	docs = append(docs, store.Document{
		ID:       desc.Key,
		Content:  sb.String(),
		Metadata: documentMeta(desc, store.DocumentTypeDataset, ""),
	})

	for _, col := range table.Columns {
		content := fmt.Sprintf("Dataset: %s\nColumn: %s\nSample Values: %s\nData Type: %s",
			desc.Name, col, formatValues(distinctValues(table, col, maxColumnSamples)), inferType(table, col))
		docs = append(docs, store.Document{
			ID:       desc.Key + "_" + col,
			Content:  content,
			Metadata: documentMeta(desc, store.DocumentTypeColumn, col),
		})
	}
	return docs
}

func documentMeta(desc model.Descriptor, docType, column string) map[string]string {
	meta := map[string]string{
		store.MetaDatasetKey:   desc.Key,
		store.MetaDocumentType: docType,
		store.MetaName:         desc.Name,
		store.MetaCategory:     string(desc.Category),
	}
	if column != "" {
		meta[store.MetaColumnName] = column
	}
	return meta
}

// renderRows 以竖线分隔的文本表格输出行。
func renderRows(t *model.Table) string {
	if t.Len() == 0 {
		return "(no rows)\n"
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(t.Columns, " | "))
	sb.WriteByte('\n')
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			cells[i] = formatValue(row[col])
		}
		sb.WriteString(strings.Join(cells, " | "))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func distinctValues(t *model.Table, col string, limit int) []interface{} {
	seen := make(map[string]bool)
	var out []interface{}
	for _, row := range t.Rows {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		s := formatValue(v)
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}

func formatValues(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}

// inferType 推断列类型：全部整数为 int64，含小数为 float64，其余为 object。
func inferType(t *model.Table, col string) string {
	kind := ""
	for _, row := range t.Rows {
		v := row[col]
		var k string
		switch x := v.(type) {
		case nil:
			continue
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			k = "int64"
		case float64:
			k = "float64"
			if x == float64(int64(x)) {
				k = "int64"
			}
		case float32:
			k = "float64"
		default:
			return "object"
		}
		if kind == "" || (kind == "int64" && k == "float64") {
			kind = k
		}
	}
	if kind == "" {
		return "object"
	}
	return kind
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
