package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/agriqa/pkg/component/milvus"
)

const fieldContent = "content"

var milvusMetaFields = []milvus.MetaField{
	{Name: fieldContent, MaxLen: 65535},
	{Name: MetaDatasetKey, MaxLen: 64},
	{Name: MetaDocumentType, MaxLen: 16},
	{Name: MetaColumnName, MaxLen: 255},
	{Name: MetaName, MaxLen: 255},
	{Name: MetaCategory, MaxLen: 32},
}

// MilvusStore 实现基于 Milvus 的向量存储，使用 COSINE 度量。
type MilvusStore struct {
	client     *milvus.Client
	collection string

	mu  sync.Mutex
	dim int
}

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client, collection string) *MilvusStore {
	return &MilvusStore{client: client, collection: collection}
}

// Ensure 创建集合（已存在时仅加载）。
func (s *MilvusStore) Ensure(ctx context.Context, dim int) error {
	s.mu.Lock()
	s.dim = dim
	s.mu.Unlock()

	return s.client.CreateCollection(ctx, &milvus.CollectionSchema{
		Name:        s.collection,
		Description: "agriqa dataset and column documents",
		Dimension:   dim,
		Metric:      entity.COSINE,
		MetaFields:  milvusMetaFields,
	})
}

// Add 批量写入文档。
func (s *MilvusStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	data := &milvus.UpsertData{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadata:   make(map[string][]string, len(milvusMetaFields)),
	}
	for _, f := range milvusMetaFields {
		data.Metadata[f.Name] = make([]string, len(docs))
	}

	for i, d := range docs {
		data.IDs[i] = d.ID
		data.Embeddings[i] = d.Embedding
		data.Metadata[fieldContent][i] = d.Content
		for _, f := range milvusMetaFields[1:] {
			data.Metadata[f.Name][i] = d.Metadata[f.Name]
		}
	}

	if err := s.client.Upsert(ctx, s.collection, data); err != nil {
		return fmt.Errorf("failed to insert into milvus: %w", err)
	}
	return nil
}

// Query 执行向量检索，distance = 1 - cosine similarity。
func (s *MilvusStore) Query(ctx context.Context, embedding []float32, k int, datasetKey string) ([]SearchHit, error) {
	var expr string
	if datasetKey != "" {
		expr = fmt.Sprintf("%s == %s", MetaDatasetKey, strconv.Quote(datasetKey))
	}

	outputFields := make([]string, 0, len(milvusMetaFields))
	for _, f := range milvusMetaFields {
		outputFields = append(outputFields, f.Name)
	}

	results, err := s.client.Search(ctx, s.collection, embedding, k, expr, outputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		meta := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			if k != fieldContent {
				meta[k] = v
			}
		}
		hits = append(hits, SearchHit{
			Document: Document{ID: r.ID, Content: r.Metadata[fieldContent], Metadata: meta},
			Distance: 1 - float64(r.Score),
		})
	}
	return hits, nil
}

// Count 返回集合中的文档数。
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil || !exists {
		return 0, err
	}
	return s.client.GetCollectionStats(ctx, s.collection)
}

// Reset 删除并重建集合。
func (s *MilvusStore) Reset(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return err
	}
	if exists {
		if err := s.client.DropCollection(ctx, s.collection); err != nil {
			return err
		}
	}

	s.mu.Lock()
	dim := s.dim
	s.mu.Unlock()
	if dim == 0 {
		return nil
	}
	return s.Ensure(ctx, dim)
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

var _ VectorStore = (*MilvusStore)(nil)
