// Package milvus wraps the Milvus v2 SDK client.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/agriqa/pkg/options/milvus"
)

// 字段名
const (
	FieldID        = "doc_id"
	FieldEmbedding = "embedding"
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password.Reveal(),
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// CollectionSchema defines the schema for a vector collection. The primary
// key is the VarChar field FieldID and the vector field is FieldEmbedding.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	Metric      entity.MetricType
	MetaFields  []MetaField
}

// MetaField defines a VarChar metadata field in the collection.
type MetaField struct {
	Name   string
	MaxLen int
}

// CreateCollection creates the collection, its vector index and loads it.
// An existing collection is left untouched.
func (c *Client) CreateCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return c.load(ctx, schema.Name)
	}

	collSchema := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description).
		WithAutoID(false)

	collSchema.WithField(
		entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(256).
			WithIsPrimaryKey(true),
	)
	collSchema.WithField(
		entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)),
	)
	for _, f := range schema.MetaFields {
		collSchema.WithField(
			entity.NewField().
				WithName(f.Name).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(int64(f.MaxLen)),
		)
	}

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	metric := schema.Metric
	if metric == "" {
		metric = entity.COSINE
	}
	idx := index.NewHNSWIndex(metric, 16, 200)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, FieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	return c.load(ctx, schema.Name)
}

func (c *Client) load(ctx context.Context, collection string) error {
	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// UpsertData is a column-oriented batch keyed by IDs.
type UpsertData struct {
	IDs        []string
	Embeddings [][]float32
	Metadata   map[string][]string
}

// Upsert writes the batch and flushes so it is searchable immediately.
func (c *Client) Upsert(ctx context.Context, collection string, data *UpsertData) error {
	if len(data.IDs) == 0 {
		return nil
	}

	columns := make([]column.Column, 0, len(data.Metadata)+2)
	columns = append(columns,
		column.NewColumnVarChar(FieldID, data.IDs),
		column.NewColumnFloatVector(FieldEmbedding, len(data.Embeddings[0]), data.Embeddings),
	)
	for name, values := range data.Metadata {
		columns = append(columns, column.NewColumnVarChar(name, values))
	}

	if _, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection, columns...)); err != nil {
		return fmt.Errorf("failed to upsert data: %w", err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// SearchResult represents a single search hit.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// Search performs a vector similarity search. expr is an optional Milvus
// boolean filter such as `dataset_key == "rainfall_data"`.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int, expr string, outputFields []string) ([]SearchResult, error) {
	opt := milvusclient.NewSearchOption(
		collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(FieldEmbedding).
		WithSearchParam("ef", "64").
		WithOutputFields(outputFields...)
	if expr != "" {
		opt = opt.WithFilter(expr)
	}

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	rs := results[0]
	out := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		r := SearchResult{
			Score:    rs.Scores[i],
			Metadata: make(map[string]string, len(outputFields)),
		}
		if ids, ok := rs.IDs.(*column.ColumnVarChar); ok {
			r.ID = ids.Data()[i]
		}
		for _, field := range rs.Fields {
			if col, ok := field.(*column.ColumnVarChar); ok {
				r.Metadata[col.Name()] = col.Data()[i]
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// HasCollection reports whether the collection exists.
func (c *Client) HasCollection(ctx context.Context, collection string) (bool, error) {
	return c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// GetCollectionStats returns the number of entities in a collection.
func (c *Client) GetCollectionStats(ctx context.Context, collection string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
