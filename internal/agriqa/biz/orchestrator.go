package biz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/agriqa/internal/agriqa/metrics"
	"github.com/kart-io/agriqa/internal/agriqa/store"
	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/infra/pool"
	"github.com/kart-io/agriqa/pkg/infra/tracing"
	apierrors "github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/id"
)

// 产出的农业类数据集才按作物过滤
var cropDatasets = map[string]bool{
	"crop_production": true,
	"area_production": true,
}

var intentQueryTypes = map[model.Intent]model.QueryType{
	model.IntentComparison:     model.QueryTypeComparison,
	model.IntentTrendAnalysis:  model.QueryTypeTrendAnalysis,
	model.IntentCorrelation:    model.QueryTypeCorrelation,
	model.IntentRanking:        model.QueryTypeRanking,
	model.IntentRecommendation: model.QueryTypeRecommendation,
	model.IntentGeneral:        model.QueryTypeGeneral,
}

// Ranker finds the datasets relevant to a question.
type Ranker interface {
	Search(ctx context.Context, query string, k int) ([]model.Candidate, error)
}

// OrchestratorConfig 查询编排配置。
type OrchestratorConfig struct {
	// SearchK 检索的数据集数。
	SearchK int
	// RetrieveTop 实际取数的数据集数。
	RetrieveTop int
	// QueryLimit 单个数据集的取数上限。
	QueryLimit int
	// SummaryThreshold 超过该行数时改为汇总。
	SummaryThreshold int
	// SummaryRows 汇总行数上限。
	SummaryRows int
	// SampleRows 无法汇总时的抽样行数。
	SampleRows int
}

// DefaultOrchestratorConfig 返回默认编排配置。
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		SearchK:          5,
		RetrieveTop:      3,
		QueryLimit:       1000,
		SummaryThreshold: 100,
		SummaryRows:      100,
		SampleRows:       50,
	}
}

// Orchestrator runs the question answering pipeline.
type Orchestrator struct {
	reasoner *Reasoner
	ranker   Ranker
	datasets DatasetReader
	workers  *pool.Pool
	ids      id.Generator
	now      func() time.Time
	config   *OrchestratorConfig
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRetrievalPool fans dataset retrieval out on p.
func WithRetrievalPool(p *pool.Pool) OrchestratorOption {
	return func(o *Orchestrator) { o.workers = p }
}

// WithIDGenerator overrides conversation id generation.
func WithIDGenerator(g id.Generator) OrchestratorOption {
	return func(o *Orchestrator) { o.ids = g }
}

// WithOrchestratorClock overrides the time source.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithOrchestratorConfig overrides the pipeline limits.
func WithOrchestratorConfig(c *OrchestratorConfig) OrchestratorOption {
	return func(o *Orchestrator) {
		if c != nil {
			o.config = c
		}
	}
}

// NewOrchestrator 创建查询编排器。
func NewOrchestrator(reasoner *Reasoner, ranker Ranker, datasets DatasetReader, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		reasoner: reasoner,
		ranker:   ranker,
		datasets: datasets,
		ids:      id.NewULIDGenerator(),
		now:      time.Now,
		config:   DefaultOrchestratorConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process answers one question. Any unrecovered failure aborts the request
// without a partial response.
func (o *Orchestrator) Process(ctx context.Context, query, conversationID string) (resp *model.Response, err error) {
	start := o.now()
	if conversationID == "" {
		conversationID = o.ids.Generate()
	}

	ctx, stage := tracing.StartStage(ctx, "orchestrator.process", attribute.String("conversation.id", conversationID))

	log := logger.Global().WithCtx(ctx)
	log.Infow("Processing query", "conversation_id", conversationID, "query", query)

	defer func() {
		metrics.GetQAMetrics().RecordQuery(o.now().Sub(start), err)
		stage.End(err)
		if err != nil {
			log.Errorw("Query processing failed", "conversation_id", conversationID, "error", err.Error())
			err = fatal(err)
		}
	}()

	decomposition, err := o.decompose(ctx, query)
	if err != nil {
		return nil, err
	}
	queryType := QueryTypeFor(decomposition.Intent)

	candidates, err := o.rank(ctx, query)
	if err != nil {
		return nil, err
	}
	log.Infow("Found relevant datasets", "count", len(candidates))

	data := o.retrieve(ctx, decomposition, candidates)

	answer, citations, err := o.synthesize(ctx, query, data, candidates)
	if err != nil {
		return nil, err
	}

	sources := make([]model.DataSource, len(candidates))
	for i, c := range candidates {
		sources[i] = DataSourceOf(c)
	}

	finished := o.now()
	resp = &model.Response{
		Answer:          answer,
		Citations:       citations,
		QueryType:       queryType,
		SubQueries:      decomposition.SubQueries,
		DataSourcesUsed: sources,
		Confidence:      Confidence(data, citations),
		ProcessingTime:  finished.Sub(start).Seconds(),
		ConversationID:  conversationID,
		Timestamp:       finished.UTC(),
	}
	log.Infow("Query processed", "conversation_id", conversationID,
		"processing_time", resp.ProcessingTime, "confidence", resp.Confidence)
	return resp, nil
}

func (o *Orchestrator) decompose(ctx context.Context, query string) (d *model.Decomposition, err error) {
	ctx, stage := tracing.StartStage(ctx, "orchestrator.decompose")
	defer func() { stage.End(err) }()

	d, err = o.reasoner.Decompose(ctx, query)
	if err != nil {
		return nil, err
	}
	stage.Set(
		attribute.String("query.intent", string(d.Intent)),
		attribute.Int("query.sub_queries", len(d.SubQueries)),
	)
	return d, nil
}

func (o *Orchestrator) rank(ctx context.Context, query string) (candidates []model.Candidate, err error) {
	ctx, stage := tracing.StartStage(ctx, "orchestrator.rank", attribute.Int("search.k", o.config.SearchK))
	defer func() { stage.End(err) }()

	candidates, err = o.ranker.Search(ctx, query, o.config.SearchK)
	if err != nil {
		return nil, apierrors.ErrIndexFailed.WithCause(err)
	}
	stage.Set(attribute.Int("datasets.ranked", len(candidates)))
	return candidates, nil
}

// retrieve queries the top candidates concurrently. A failing dataset is
// logged and left out.
func (o *Orchestrator) retrieve(ctx context.Context, d *model.Decomposition, candidates []model.Candidate) model.DataContext {
	ctx, stage := tracing.StartStage(ctx, "orchestrator.retrieve")
	defer stage.End(nil)

	top := candidates
	if len(top) > o.config.RetrieveTop {
		top = top[:o.config.RetrieveTop]
	}

	var (
		mu   sync.Mutex
		data = make(model.DataContext, len(top))
	)
	tasks := make([]func(context.Context) error, len(top))
	for i, c := range top {
		key := c.DatasetKey
		tasks[i] = func(ctx context.Context) error {
			rows, err := o.retrieveOne(ctx, key, d.RequiredData)
			if err != nil || len(rows) == 0 {
				return err
			}
			mu.Lock()
			data[key] = rows
			mu.Unlock()
			return nil
		}
	}

	for i, err := range o.run(ctx, tasks) {
		if err != nil {
			logger.Global().WithCtx(ctx).Warnw("Failed to retrieve dataset", "dataset", top[i].DatasetKey, "error", err.Error())
			stage.Event("dataset.skipped", attribute.String("dataset", top[i].DatasetKey))
		}
	}
	stage.Set(attribute.Int("datasets.retrieved", len(data)))
	return data
}

func (o *Orchestrator) retrieveOne(ctx context.Context, key string, required model.RequiredData) (rows []model.Row, err error) {
	start := time.Now()
	summarized := false
	defer func() { metrics.GetQAMetrics().RecordRetrieval(time.Since(start), summarized, err) }()

	table, err := o.datasets.Query(ctx, key, BuildFilters(required, key), o.config.QueryLimit)
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, nil
	}
	if table.Len() <= o.config.SummaryThreshold {
		return table.Rows, nil
	}

	summarized = true
	return Summarize(table, SummaryOptions{
		IncludeCrop: len(required.Crops) > 0,
		MaxRows:     o.config.SummaryRows,
		SampleRows:  o.config.SampleRows,
		Seed:        key,
	}), nil
}

func (o *Orchestrator) run(ctx context.Context, tasks []func(context.Context) error) []error {
	if o.workers != nil {
		return o.workers.Run(ctx, tasks...)
	}
	return pool.Go(ctx, tasks...)
}

func (o *Orchestrator) synthesize(ctx context.Context, query string, data model.DataContext, candidates []model.Candidate) (answer string, citations []model.Citation, err error) {
	ctx, stage := tracing.StartStage(ctx, "orchestrator.synthesize", attribute.Int("context.datasets", len(data)))
	defer func() { stage.End(err) }()

	answer, citations, err = o.reasoner.Synthesize(ctx, query, data, candidates)
	if err != nil {
		return "", nil, err
	}
	stage.Set(attribute.Int("answer.citations", len(citations)))
	return answer, citations, nil
}

// ExtractEntities exposes entity extraction of the reasoner.
func (o *Orchestrator) ExtractEntities(ctx context.Context, query string) (*model.Entities, error) {
	e, err := o.reasoner.ExtractEntities(ctx, query)
	if err != nil {
		return nil, fatal(err)
	}
	return e, nil
}

// MaxYearSpan is the widest year range turned into a Year filter.
const MaxYearSpan = 200

// BuildFilters derives dataset filters from the required data. Crops only
// filter crop datasets; years need both bounds and a span of at most
// MaxYearSpan, wider ranges leave Year unfiltered.
func BuildFilters(required model.RequiredData, datasetKey string) store.Filters {
	filters := store.Filters{}
	if len(required.States) > 0 {
		filters["State"] = required.States
	}
	if len(required.Crops) > 0 && cropDatasets[datasetKey] {
		filters["Crop"] = required.Crops
	}
	if tp := required.TimePeriod; tp != nil && tp.StartYear != nil && tp.EndYear != nil {
		start, end := int(*tp.StartYear), int(*tp.EndYear)
		if end-start+1 > MaxYearSpan {
			logger.Warnw("Year range too wide, not filtering by year",
				"dataset", datasetKey, "start_year", start, "end_year", end)
			return filters
		}
		years := make([]int, 0, max(0, end-start+1))
		for y := start; y <= end; y++ {
			years = append(years, y)
		}
		filters["Year"] = years
	}
	return filters
}

// QueryTypeFor maps a decomposition intent to the response query type.
func QueryTypeFor(intent model.Intent) model.QueryType {
	if qt, ok := intentQueryTypes[intent]; ok {
		return qt
	}
	return model.QueryTypeGeneral
}

// Confidence scores an answer from how much data backed it.
func Confidence(data model.DataContext, citations []model.Citation) float64 {
	c := 0.5
	if len(data) > 0 {
		c += 0.2
	}
	c += min(0.2, 0.05*float64(len(data)))
	if len(citations) > 0 {
		c += 0.1
	}
	return clamp01(c)
}

// fatal wraps err as a query failure unless it already carries an errno.
func fatal(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apierrors.ErrRequestTimeout.WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return apierrors.ErrQueryFailed.WithCause(err)
	}
	if e := apierrors.FromError(err); e != nil && e.Code != apierrors.ErrInternal.Code {
		return e
	}
	return apierrors.ErrQueryFailed.WithCause(err)
}
