package model

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Intent is the question intent reported by decomposition.
type Intent string

const (
	IntentComparison     Intent = "comparison"
	IntentTrendAnalysis  Intent = "trend_analysis"
	IntentCorrelation    Intent = "correlation"
	IntentRanking        Intent = "ranking"
	IntentRecommendation Intent = "recommendation"
	IntentGeneral        Intent = "general"
)

// QueryType is the category of a processed question.
type QueryType string

const (
	QueryTypeComparison     QueryType = "comparison"
	QueryTypeTrendAnalysis  QueryType = "trend_analysis"
	QueryTypeCorrelation    QueryType = "correlation"
	QueryTypeRanking        QueryType = "ranking"
	QueryTypeRecommendation QueryType = "recommendation"
	QueryTypeGeneral        QueryType = "general"
)

// Year accepts both JSON numbers and numeric strings. Decoded values are
// clamped to [MinYear, MaxYear].
type Year int

// Year bounds accepted from model output.
const (
	MinYear Year = 0
	MaxYear Year = 9999
)

// UnmarshalJSON implements json.Unmarshaler.
func (y *Year) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid year %q: %w", s, err)
	}
	if math.IsNaN(f) {
		return fmt.Errorf("invalid year %q", s)
	}
	*y = Year(max(float64(MinYear), min(float64(MaxYear), f)))
	return nil
}

// TimePeriod is an inclusive year range. Either bound may be absent.
type TimePeriod struct {
	StartYear *Year `json:"start_year"`
	EndYear   *Year `json:"end_year"`
}

// RequiredData lists the entities a question refers to.
type RequiredData struct {
	States     []string    `json:"states,omitempty"`
	Districts  []string    `json:"districts,omitempty"`
	Crops      []string    `json:"crops,omitempty"`
	TimePeriod *TimePeriod `json:"time_period,omitempty"`
	Metrics    []string    `json:"metrics,omitempty"`
}

// Decomposition is the structured reading of a question.
type Decomposition struct {
	Intent       Intent       `json:"intent"`
	SubQueries   []string     `json:"sub_queries"`
	RequiredData RequiredData `json:"required_data"`
	QueryType    string       `json:"query_type"`
}

// DefaultDecomposition is used when the model output cannot be parsed.
func DefaultDecomposition(query string) *Decomposition {
	return &Decomposition{
		Intent:     IntentGeneral,
		SubQueries: []string{query},
		QueryType:  "mixed",
	}
}

// Entities are the named things found in a question.
type Entities struct {
	States    []string `json:"states"`
	Districts []string `json:"districts"`
	Crops     []string `json:"crops"`
	Years     []Year   `json:"years"`
}

// EmptyEntities returns Entities with non-nil empty lists.
func EmptyEntities() *Entities {
	return &Entities{States: []string{}, Districts: []string{}, Crops: []string{}, Years: []Year{}}
}

// Candidate is a dataset ranked for a question.
type Candidate struct {
	DatasetKey     string   `json:"dataset_key"`
	Name           string   `json:"name"`
	Category       Category `json:"category"`
	Description    string   `json:"description"`
	URL            string   `json:"url"`
	RelevanceScore float64  `json:"relevance_score"`
}

// DataSource identifies a dataset in a response.
type DataSource struct {
	DatasetID    string `json:"dataset_id"`
	DatasetName  string `json:"dataset_name"`
	Organization string `json:"organization"`
	URL          string `json:"url"`
	Description  string `json:"description,omitempty"`
}

// Citation attributes a claim of the answer to data sources.
type Citation struct {
	Claim      string       `json:"claim"`
	Sources    []DataSource `json:"sources"`
	Confidence float64      `json:"confidence"`
}

// Response is the outcome of processing one question.
type Response struct {
	Answer          string       `json:"answer"`
	Citations       []Citation   `json:"citations"`
	QueryType       QueryType    `json:"query_type"`
	SubQueries      []string     `json:"sub_queries"`
	DataSourcesUsed []DataSource `json:"data_sources_used"`
	Confidence      float64      `json:"confidence"`
	ProcessingTime  float64      `json:"processing_time"`
	ConversationID  string       `json:"conversation_id"`
	Timestamp       time.Time    `json:"timestamp"`
}

// DataContext maps a dataset key to the records handed to synthesis.
type DataContext map[string][]Row
