package store

import (
	"context"
)

// 文档类型
const (
	DocumentTypeDataset = "dataset"
	DocumentTypeColumn  = "column"
)

// 文档元数据键
const (
	MetaDatasetKey   = "dataset_key"
	MetaDocumentType = "document_type"
	MetaColumnName   = "column_name"
	MetaName         = "name"
	MetaCategory     = "category"
)

// Document is one indexed text with its embedding.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// DatasetKey returns the dataset the document belongs to.
func (d Document) DatasetKey() string {
	return d.Metadata[MetaDatasetKey]
}

// SearchHit is a document with its distance to the query. Smaller is closer.
type SearchHit struct {
	Document
	Distance float64
}

// VectorStore 定义相关性索引使用的向量存储接口。
type VectorStore interface {
	// Ensure 准备存储，dim 为向量维度。
	Ensure(ctx context.Context, dim int) error

	// Add 写入文档，相同 ID 覆盖。
	Add(ctx context.Context, docs []Document) error

	// Query 返回最近的 k 个文档，按距离升序；datasetKey 非空时只在该数据集内检索。
	Query(ctx context.Context, embedding []float32, k int, datasetKey string) ([]SearchHit, error)

	// Count 返回文档数。
	Count(ctx context.Context) (int64, error)

	// Reset 删除全部文档。
	Reset(ctx context.Context) error

	// Close 释放连接。
	Close(ctx context.Context) error
}
