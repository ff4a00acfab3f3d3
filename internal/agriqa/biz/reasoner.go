package biz

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/agriqa/internal/agriqa/metrics"
	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/llm"
	"github.com/kart-io/agriqa/pkg/utils/json"
)

const (
	// DefaultPromptRows 每个数据集写入提示词的记录上限。
	DefaultPromptRows = 50

	claimReferenced = "Referenced in answer"
	claimUsed       = "Data source used"

	confidenceReferenced = 0.9
	confidenceUsed       = 0.8
)

var (
	fencedJSONRe = regexp.MustCompile("(?s)```json\n(.*?)\n```")
	objectJSONRe = regexp.MustCompile(`(?s)\{.*\}`)
	sourceRe     = regexp.MustCompile(`\[Source:\s*([^\]]+)\]`)
)

const decomposePrompt = `You are an expert at analyzing questions about agricultural and climate data.

Analyze this question and extract:
1. The user's intent (comparison, trend_analysis, correlation, ranking, recommendation, or general)
2. Break it into specific sub-queries that can be answered with data
3. Identify required data elements (states, districts, crops, time periods, metrics)
4. Classify the query type (agricultural, climate, or mixed)

Question: %s

Respond in JSON format:
{
    "intent": "comparison|trend_analysis|correlation|ranking|recommendation|general",
    "sub_queries": ["specific data query 1", "specific data query 2"],
    "required_data": {
        "states": ["state1", "state2"],
        "districts": ["district1"],
        "crops": ["crop1", "crop2"],
        "time_period": {"start_year": 2013, "end_year": 2023},
        "metrics": ["production", "rainfall", "area"]
    },
    "query_type": "agricultural|climate|mixed"
}`

const synthesizePrompt = `You are an expert agricultural policy analyst with deep knowledge of Indian agriculture and climate patterns.

User Question: %s

Available Data:
%s

Data Sources:
%s

Instructions:
1. Provide a comprehensive, accurate answer based ONLY on the provided data
2. Be specific with numbers, percentages, and trends
3. For each claim you make, indicate which data source(s) it comes from using [Source: dataset_name]
4. If the data is insufficient to answer fully, clearly state what's missing
5. Structure your answer clearly with relevant headings
6. Use tables or bullet points where appropriate
7. Provide actionable insights when relevant

Answer:`

const entitiesPrompt = `Extract all mentions of Indian states, districts, crops, and years from this query.

Query: %s

Known states include: Punjab, Haryana, Uttar Pradesh, Maharashtra, West Bengal, Karnataka, Tamil Nadu, Andhra Pradesh, Gujarat, Madhya Pradesh, etc.

Known crops include: Rice, Wheat, Maize, Cotton, Sugarcane, Soybean, Groundnut, Jowar, Bajra, Pulses, Millets, etc.

Respond in JSON format:
{
    "states": ["state1", "state2"],
    "districts": ["district1"],
    "crops": ["crop1", "crop2"],
    "years": [2020, 2021]
}

If none found for a category, use an empty list.`

// Reasoner turns questions and retrieved data into structured readings and
// cited answers using a chat provider.
type Reasoner struct {
	chat        llm.ChatProvider
	temperature float64
	promptRows  int
	cache       *DecompositionCache
}

// ReasonerOption configures a Reasoner.
type ReasonerOption func(*Reasoner)

// WithDecompositionCache caches decompositions in Redis.
func WithDecompositionCache(c *DecompositionCache) ReasonerOption {
	return func(r *Reasoner) { r.cache = c }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) ReasonerOption {
	return func(r *Reasoner) { r.temperature = t }
}

// WithPromptRows limits the records of each dataset written into the
// synthesis prompt.
func WithPromptRows(n int) ReasonerOption {
	return func(r *Reasoner) {
		if n > 0 {
			r.promptRows = n
		}
	}
}

// NewReasoner 创建推理组件。
func NewReasoner(chat llm.ChatProvider, opts ...ReasonerOption) *Reasoner {
	r := &Reasoner{
		chat:        chat,
		temperature: llm.DefaultTemperature,
		promptRows:  DefaultPromptRows,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProviderName returns the name of the underlying chat provider.
func (r *Reasoner) ProviderName() string {
	return r.chat.Name()
}

// Decompose reads intent, sub-queries and required data from a question.
// Unparseable model output yields the default decomposition; provider
// errors are returned.
func (r *Reasoner) Decompose(ctx context.Context, query string) (*model.Decomposition, error) {
	if r.cache.Enabled() {
		cached, err := r.cache.Get(ctx, query)
		if err != nil {
			logger.Warnw("Decomposition cache lookup failed", "error", err.Error())
		}
		metrics.GetQAMetrics().RecordDecomposeCache(cached != nil)
		if cached != nil {
			return cached, nil
		}
	}

	text, err := r.generate(ctx, fmt.Sprintf(decomposePrompt, query))
	if err != nil {
		return nil, err
	}

	var d model.Decomposition
	if err := ExtractJSON(text, &d); err != nil {
		logger.Errorw("Failed to parse query decomposition", "error", err.Error())
		metrics.GetQAMetrics().RecordParseFailure()
		return model.DefaultDecomposition(query), nil
	}
	if len(d.SubQueries) == 0 {
		d.SubQueries = []string{query}
	}
	if d.Intent == "" {
		d.Intent = model.IntentGeneral
	}
	if d.QueryType == "" {
		d.QueryType = "mixed"
	}

	if err := r.cache.Set(ctx, query, &d); err != nil {
		logger.Warnw("Failed to cache decomposition", "error", err.Error())
	}
	return &d, nil
}

// Synthesize asks the model for an answer grounded in the data context and
// extracts the citations it makes.
func (r *Reasoner) Synthesize(ctx context.Context, query string, data model.DataContext, datasets []model.Candidate) (string, []model.Citation, error) {
	contextText, err := FormatDataContext(data, datasets, r.promptRows)
	if err != nil {
		return "", nil, err
	}
	prompt := fmt.Sprintf(synthesizePrompt, query, contextText, FormatDatasets(datasets))

	answer, err := r.generate(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	return answer, ExtractCitations(answer, datasets), nil
}

// ExtractEntities finds states, districts, crops and years mentioned in a
// question. Unparseable output yields empty lists.
func (r *Reasoner) ExtractEntities(ctx context.Context, query string) (*model.Entities, error) {
	text, err := r.generate(ctx, fmt.Sprintf(entitiesPrompt, query))
	if err != nil {
		return nil, err
	}

	e := model.EmptyEntities()
	if err := ExtractJSON(text, e); err != nil {
		logger.Warnw("Failed to parse entities", "error", err.Error())
		metrics.GetQAMetrics().RecordParseFailure()
		return model.EmptyEntities(), nil
	}
	if e.States == nil {
		e.States = []string{}
	}
	if e.Districts == nil {
		e.Districts = []string{}
	}
	if e.Crops == nil {
		e.Crops = []string{}
	}
	if e.Years == nil {
		e.Years = []model.Year{}
	}
	return e, nil
}

func (r *Reasoner) generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := r.chat.Generate(ctx, prompt, r.temperature)

	tokens := 0
	if resp != nil && resp.TokenUsage != nil {
		tokens = resp.TokenUsage.TotalTokens
	}
	metrics.GetQAMetrics().RecordLLMCall(time.Since(start), tokens, err)

	if err != nil {
		logger.Errorw("LLM call failed", "provider", r.chat.Name(), "error", err.Error())
		return "", fmt.Errorf("llm generate: %w", err)
	}
	return resp.Content, nil
}

// ExtractJSON decodes the first JSON object found in model output. It tries
// a ```json fenced block, then the span from the first '{' to the last '}',
// then the whole text.
func ExtractJSON(text string, v interface{}) error {
	var candidates []string
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := objectJSONRe.FindString(text); m != "" {
		candidates = append(candidates, m)
	}
	candidates = append(candidates, text)

	var err error
	for _, c := range candidates {
		if err = json.Unmarshal([]byte(c), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no JSON object in model output: %w", err)
}

// ExtractCitations maps [Source: name] markers to datasets. A marker cites
// the first dataset whose name contains it, ignoring case. Without any
// match every dataset is cited as used.
func ExtractCitations(answer string, datasets []model.Candidate) []model.Citation {
	citations := []model.Citation{}

	for _, m := range sourceRe.FindAllStringSubmatch(answer, -1) {
		name := strings.ToLower(strings.TrimSpace(m[1]))
		for _, ds := range datasets {
			if strings.Contains(strings.ToLower(ds.Name), name) {
				citations = append(citations, model.Citation{
					Claim:      claimReferenced,
					Sources:    []model.DataSource{DataSourceOf(ds)},
					Confidence: confidenceReferenced,
				})
				break
			}
		}
	}

	if len(citations) == 0 {
		for _, ds := range datasets {
			citations = append(citations, model.Citation{
				Claim:      claimUsed,
				Sources:    []model.DataSource{DataSourceOf(ds)},
				Confidence: confidenceUsed,
			})
		}
	}
	return citations
}

// DataSourceOf converts a ranked dataset into its response form. The
// organization field carries the dataset category.
func DataSourceOf(c model.Candidate) model.DataSource {
	return model.DataSource{
		DatasetID:    c.DatasetKey,
		DatasetName:  c.Name,
		Organization: string(c.Category),
		URL:          c.URL,
		Description:  c.Description,
	}
}

// FormatDataContext renders each non-empty entry as its upper-cased key
// followed by indented JSON of at most limit leading records. Entries
// follow the order of datasets; keys not in datasets come last, sorted.
func FormatDataContext(data model.DataContext, datasets []model.Candidate, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultPromptRows
	}

	order := make([]string, 0, len(data))
	seen := make(map[string]bool, len(data))
	for _, ds := range datasets {
		if _, ok := data[ds.DatasetKey]; ok && !seen[ds.DatasetKey] {
			order = append(order, ds.DatasetKey)
			seen[ds.DatasetKey] = true
		}
	}
	var rest []string
	for key := range data {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	parts := make([]string, 0, 2*len(order))
	for _, key := range order {
		rows := data[key]
		if len(rows) == 0 {
			continue
		}
		if len(rows) > limit {
			rows = rows[:limit]
		}
		b, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode %s context: %w", key, err)
		}
		parts = append(parts, "\n"+strings.ToUpper(key)+":", string(b))
	}
	return strings.Join(parts, "\n"), nil
}

// FormatDatasets renders one "- name: description (url)" line per dataset.
func FormatDatasets(datasets []model.Candidate) string {
	lines := make([]string, len(datasets))
	for i, ds := range datasets {
		lines[i] = fmt.Sprintf("- %s: %s (%s)", ds.Name, ds.Description, ds.URL)
	}
	return strings.Join(lines, "\n")
}
