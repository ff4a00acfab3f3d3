package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/internal/model"
)

var testCandidates = []model.Candidate{
	{DatasetKey: "crop_production", Name: "Crop Production Statistics", Category: model.CategoryAgriculture,
		Description: "District-wise crop production data across India", URL: "https://data.gov.in/resource/crop-production-statistics", RelevanceScore: 0.8},
	{DatasetKey: "rainfall_data", Name: "Rainfall Data (IMD)", Category: model.CategoryClimate,
		Description: "Monthly rainfall data from India Meteorological Department", URL: "https://data.gov.in/resource/rainfall", RelevanceScore: 0.6},
}

func TestExtractJSON(t *testing.T) {
	type obj struct {
		A int `json:"a"`
	}
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr bool
	}{
		{name: "fenced block", text: "Here you go:\n```json\n{\"a\": 1}\n```\nthanks", want: 1},
		{name: "embedded object", text: "Sure! {\"a\": 2} hope this helps", want: 2},
		{name: "whole text", text: `{"a": 3}`, want: 3},
		{name: "broken fence falls through to braces", text: "```json\n{\"a\": \n```", wantErr: true},
		{name: "no json", text: "I cannot help with that", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got obj
			err := ExtractJSON(tt.text, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.A)
		})
	}
}

func TestDecompose_ParsesModelOutput(t *testing.T) {
	chat := &fakeChat{replies: map[string]string{markerDecompose: "```json\n" + `{
  "intent": "comparison",
  "sub_queries": ["rice in Punjab", "rice in Haryana"],
  "required_data": {
    "states": ["Punjab", "Haryana"],
    "crops": ["Rice"],
    "time_period": {"start_year": "2015", "end_year": 2017},
    "metrics": ["production"]
  },
  "query_type": "agricultural"
}` + "\n```"}}
	r := NewReasoner(chat)

	d, err := r.Decompose(context.Background(), "Compare rice in Punjab and Haryana")
	require.NoError(t, err)
	assert.Equal(t, model.IntentComparison, d.Intent)
	assert.Equal(t, []string{"rice in Punjab", "rice in Haryana"}, d.SubQueries)
	assert.Equal(t, []string{"Punjab", "Haryana"}, d.RequiredData.States)
	require.NotNil(t, d.RequiredData.TimePeriod)
	assert.Equal(t, model.Year(2015), *d.RequiredData.TimePeriod.StartYear)
	assert.Equal(t, "agricultural", d.QueryType)
	assert.Contains(t, chat.lastPrompt(), "Question: Compare rice in Punjab and Haryana")
}

func TestDecompose_DefaultsOnUnparseableOutput(t *testing.T) {
	r := NewReasoner(&fakeChat{replies: map[string]string{markerDecompose: "I think it is about rice."}})

	d, err := r.Decompose(context.Background(), "rice?")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultDecomposition("rice?"), d)
}

func TestDecompose_MissingSubQueries(t *testing.T) {
	r := NewReasoner(&fakeChat{replies: map[string]string{markerDecompose: `{"intent": "ranking"}`}})

	d, err := r.Decompose(context.Background(), "top states")
	require.NoError(t, err)
	assert.Equal(t, model.IntentRanking, d.Intent)
	assert.Equal(t, []string{"top states"}, d.SubQueries)
	assert.Equal(t, "mixed", d.QueryType)
}

func TestDecompose_ProviderErrorPropagates(t *testing.T) {
	r := NewReasoner(&fakeChat{err: errBoom})
	_, err := r.Decompose(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
}

func TestSynthesize_PromptAndCitations(t *testing.T) {
	chat := &fakeChat{replies: map[string]string{
		markerSynthesize: "Punjab grew more rice [Source: crop production] while rain fell [Source: Rainfall Data] and [Source: unknown].",
	}}
	r := NewReasoner(chat)

	data := model.DataContext{
		"rainfall_data":   {{"State": "Punjab", "Rainfall_mm": 10.5}},
		"crop_production": {{"State": "Punjab", "Production": 100.0}},
	}
	answer, citations, err := r.Synthesize(context.Background(), "rice vs rain", data, testCandidates)
	require.NoError(t, err)
	assert.Contains(t, answer, "Punjab grew more rice")

	prompt := chat.lastPrompt()
	assert.Contains(t, prompt, "User Question: rice vs rain")
	assert.Contains(t, prompt, "- Crop Production Statistics: District-wise crop production data across India (https://data.gov.in/resource/crop-production-statistics)")
	assert.Less(t, strings.Index(prompt, "\nCROP_PRODUCTION:"), strings.Index(prompt, "\nRAINFALL_DATA:"))
	assert.Contains(t, prompt, `"Rainfall_mm": 10.5`)
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))

	require.Len(t, citations, 2)
	assert.Equal(t, "Referenced in answer", citations[0].Claim)
	assert.Equal(t, 0.9, citations[0].Confidence)
	assert.Equal(t, "crop_production", citations[0].Sources[0].DatasetID)
	assert.Equal(t, "agriculture", citations[0].Sources[0].Organization)
	assert.Equal(t, "climate", citations[1].Sources[0].Organization)
	assert.Equal(t, "rainfall_data", citations[1].Sources[0].DatasetID)
}

func TestExtractCitations_FallbackCitesAll(t *testing.T) {
	citations := ExtractCitations("No markers here.", testCandidates)
	require.Len(t, citations, 2)
	for i, c := range citations {
		assert.Equal(t, "Data source used", c.Claim)
		assert.Equal(t, 0.8, c.Confidence)
		assert.Equal(t, testCandidates[i].DatasetKey, c.Sources[0].DatasetID)
	}

	assert.Empty(t, ExtractCitations("No markers here.", nil))
}

func TestFormatDataContext_LimitsRecords(t *testing.T) {
	rows := make([]model.Row, 80)
	for i := range rows {
		rows[i] = model.Row{"n": i}
	}
	text, err := FormatDataContext(model.DataContext{"agri_prices": rows, "empty": {}}, nil, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "\nAGRI_PRICES:\n["))
	assert.Contains(t, text, `"n": 49`)
	assert.NotContains(t, text, `"n": 50`)
	assert.NotContains(t, text, "EMPTY:")

	text, err = FormatDataContext(model.DataContext{"agri_prices": rows}, nil, 5)
	require.NoError(t, err)
	assert.Contains(t, text, `"n": 4`)
	assert.NotContains(t, text, `"n": 5`)
}

func TestExtractEntities(t *testing.T) {
	r := NewReasoner(&fakeChat{replies: map[string]string{
		markerEntities: `{"states": ["Punjab"], "crops": ["Wheat"], "years": [2020, "2021"]}`,
	}})
	e, err := r.ExtractEntities(context.Background(), "wheat in Punjab 2020-2021")
	require.NoError(t, err)
	assert.Equal(t, []string{"Punjab"}, e.States)
	assert.Equal(t, []string{}, e.Districts)
	assert.Equal(t, []model.Year{2020, 2021}, e.Years)

	r = NewReasoner(&fakeChat{replies: map[string]string{markerEntities: "none"}})
	e, err = r.ExtractEntities(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, model.EmptyEntities(), e)
}

func TestDecompose_DisabledCacheIsPassThrough(t *testing.T) {
	chat := &fakeChat{replies: map[string]string{markerDecompose: `{"intent": "general"}`}}
	r := NewReasoner(chat, WithDecompositionCache(NewDecompositionCache(nil, nil)))

	_, err := r.Decompose(context.Background(), "q")
	require.NoError(t, err)
	_, err = r.Decompose(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, chat.calls())
}
