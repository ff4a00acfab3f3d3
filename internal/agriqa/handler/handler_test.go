package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/internal/agriqa/catalog"
	"github.com/kart-io/agriqa/internal/agriqa/store"
	"github.com/kart-io/agriqa/internal/model"
	apierrors "github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/json"
	"github.com/kart-io/agriqa/pkg/utils/response"
	uvalidator "github.com/kart-io/agriqa/pkg/utils/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	RegisterValidation()
}

type fakeQA struct {
	resp     *model.Response
	entities *model.Entities
	err      error
	// block 为 true 时等待 ctx 结束
	block bool

	gotQuery string
	gotConv  string
	deadline bool
}

func (f *fakeQA) Process(ctx context.Context, query, conversationID string) (*model.Response, error) {
	f.gotQuery, f.gotConv = query, conversationID
	_, f.deadline = ctx.Deadline()
	if f.block {
		<-ctx.Done()
		return nil, apierrors.ErrRequestTimeout.WithCause(ctx.Err())
	}
	return f.resp, f.err
}

func (f *fakeQA) ExtractEntities(_ context.Context, query string) (*model.Entities, error) {
	f.gotQuery = query
	return f.entities, f.err
}

func newTestEngine(qa QAService, chatTimeout time.Duration) *gin.Engine {
	h := NewHandler(qa, store.NewDatasetStore(nil, nil), chatTimeout)
	e := gin.New()
	e.POST("/chat", h.Chat)
	e.POST("/entities", h.Entities)
	e.GET("/conversations/:id", h.Conversation)
	e.GET("/datasets", h.ListDatasets)
	e.POST("/datasets/query", h.QueryDataset)
	e.GET("/datasets/:key", h.GetDataset)
	e.POST("/datasets/:key/refresh", h.RefreshDataset)
	return e
}

func do(e *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestChat_OK(t *testing.T) {
	qa := &fakeQA{resp: &model.Response{Answer: "Rice output rose", QueryType: model.QueryTypeComparison}}
	e := newTestEngine(qa, time.Minute)

	w := do(e, http.MethodPost, "/chat", `{"query":"Compare rice in Punjab","conversation_id":"c-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Rice output rose", resp.Answer)
	assert.Equal(t, "Compare rice in Punjab", qa.gotQuery)
	assert.Equal(t, "c-1", qa.gotConv)
	assert.True(t, qa.deadline)
}

func TestChat_Validation(t *testing.T) {
	e := newTestEngine(&fakeQA{}, time.Minute)

	tests := []struct {
		name string
		body string
	}{
		{"missing query", `{}`},
		{"blank query", `{"query":"   "}`},
		{"malformed body", `{"query":`},
		{"conversation id with spaces", `{"query":"rice","conversation_id":"a b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(e, http.MethodPost, "/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, apierrors.ErrInvalidQuery.Code, decodeError(t, w).Code)
		})
	}
}

func TestChat_ValidationMessageNamesField(t *testing.T) {
	e := newTestEngine(&fakeQA{}, time.Minute)
	w := do(e, http.MethodPost, "/chat", `{"query":""}`)
	assert.Contains(t, decodeError(t, w).Detail, "query")
}

func TestChat_Timeout(t *testing.T) {
	e := newTestEngine(&fakeQA{block: true}, 20*time.Millisecond)

	w := do(e, http.MethodPost, "/chat", `{"query":"rice"}`)
	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.Equal(t, apierrors.ErrRequestTimeout.Code, decodeError(t, w).Code)
}

func TestChat_ProcessError(t *testing.T) {
	e := newTestEngine(&fakeQA{err: apierrors.ErrQueryFailed.WithCause(errors.New("boom"))}, time.Minute)

	w := do(e, http.MethodPost, "/chat", `{"query":"rice"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apierrors.ErrQueryFailed.Code, decodeError(t, w).Code)
}

func TestEntities(t *testing.T) {
	entities := model.EmptyEntities()
	entities.States = []string{"Punjab"}
	qa := &fakeQA{entities: entities}
	e := newTestEngine(qa, time.Minute)

	w := do(e, http.MethodPost, "/entities", `{"query":"rice in Punjab"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got model.Entities
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, []string{"Punjab"}, got.States)
	assert.Empty(t, got.Crops)
}

func TestConversation_NotImplemented(t *testing.T) {
	e := newTestEngine(&fakeQA{}, time.Minute)

	w := do(e, http.MethodGet, "/conversations/abc", "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Contains(t, decodeError(t, w).Detail, "abc")
}

func TestListDatasets(t *testing.T) {
	e := newTestEngine(&fakeQA{}, time.Minute)

	w := do(e, http.MethodGet, "/datasets", "")
	require.Equal(t, http.StatusOK, w.Code)
	var all []model.DatasetInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, len(catalog.All()))

	w = do(e, http.MethodGet, "/datasets?category=climate", "")
	require.Equal(t, http.StatusOK, w.Code)
	var climate []model.DatasetInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &climate))
	require.NotEmpty(t, climate)
	for _, d := range climate {
		assert.Equal(t, model.CategoryClimate, d.Category)
	}

	w = do(e, http.MethodGet, "/datasets?category=fisheries", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetDataset(t *testing.T) {
	e := newTestEngine(&fakeQA{}, time.Minute)

	w := do(e, http.MethodGet, "/datasets/"+catalog.CropProduction, "")
	require.Equal(t, http.StatusOK, w.Code)
	var info model.DatasetInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, catalog.CropProduction, info.Key)
	assert.Positive(t, info.RowCount)
	assert.Contains(t, info.Columns, "State")
	assert.NotNil(t, info.LastCached)

	w = do(e, http.MethodGet, "/datasets/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apierrors.ErrUnknownDataset.Code, decodeError(t, w).Code)
}

type fakeContexts struct {
	text     string
	err      error
	gotKey   string
	gotQuery string
}

func (f *fakeContexts) DatasetContext(_ context.Context, key, query string) (string, error) {
	f.gotKey, f.gotQuery = key, query
	return f.text, f.err
}

func TestGetDataset_WithQueryContext(t *testing.T) {
	src := &fakeContexts{text: "Column Rainfall_mm: monthly rainfall"}
	h := NewHandler(&fakeQA{}, store.NewDatasetStore(nil, nil), time.Minute, WithContextSource(src))
	e := gin.New()
	e.GET("/datasets/:key", h.GetDataset)

	w := do(e, http.MethodGet, "/datasets/"+catalog.RainfallData+"?q=monsoon+rainfall", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got DatasetDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, catalog.RainfallData, got.Key)
	assert.Equal(t, "Column Rainfall_mm: monthly rainfall", got.Context)
	assert.Equal(t, catalog.RainfallData, src.gotKey)
	assert.Equal(t, "monsoon rainfall", src.gotQuery)

	src.err = errors.New("embedding unavailable")
	src.text = ""
	w = do(e, http.MethodGet, "/datasets/"+catalog.RainfallData+"?q=rain", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"context"`)

	src.gotKey = ""
	w = do(e, http.MethodGet, "/datasets/"+catalog.RainfallData, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, src.gotKey)
}

func TestRegisterRules(t *testing.T) {
	v := uvalidator.New()
	require.NoError(t, registerRules(v, datasetKeyRule))

	type req struct {
		Key string `json:"key" validate:"dataset_key"`
	}
	assert.NoError(t, v.Validate(&req{Key: "crop_production"}))
	err := v.Validate(&req{Key: "Crop-Production"})
	require.Error(t, err)
	assert.Contains(t, v.Translate(err, uvalidator.LangEN).Error(), "must be a dataset key")

	err = registerRules(uvalidator.New(), rule{tag: "", fn: validateDatasetKey})
	assert.Error(t, err)
}

func TestRefreshDataset(t *testing.T) {
	e := newTestEngine(&fakeQA{}, time.Minute)

	w := do(e, http.MethodPost, "/datasets/"+catalog.RainfallData+"/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info model.DatasetInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, model.OriginSynthetic, info.Origin)

	w = do(e, http.MethodPost, "/datasets/nope/refresh", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueryDataset(t *testing.T) {
	e := newTestEngine(&fakeQA{}, time.Minute)

	w := do(e, http.MethodPost, "/datasets/query",
		`{"dataset_key":"crop_production","filters":{"State":"Punjab","Crop":["Rice","Wheat"]},"limit":5}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got DatasetQueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, catalog.CropProduction, got.DatasetKey)
	assert.Equal(t, 5, got.RowCount)
	assert.Len(t, got.Rows, 5)
	for _, row := range got.Rows {
		assert.Equal(t, "Punjab", row["State"])
		assert.Contains(t, []interface{}{"Rice", "Wheat"}, row["Crop"])
	}
}

func TestQueryDataset_DefaultLimitAndOffset(t *testing.T) {
	e := newTestEngine(&fakeQA{}, time.Minute)

	w := do(e, http.MethodPost, "/datasets/query", `{"dataset_key":"crop_production"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var first DatasetQueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, DefaultQueryLimit, first.RowCount)

	w = do(e, http.MethodPost, "/datasets/query", `{"dataset_key":"crop_production","limit":2,"offset":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	var page DatasetQueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Rows, 2)
	assert.Equal(t, first.Rows[1], page.Rows[0])
}

func TestQueryDataset_Errors(t *testing.T) {
	e := newTestEngine(&fakeQA{}, time.Minute)

	tests := []struct {
		name   string
		body   string
		status int
		code   int
	}{
		{"missing key", `{}`, http.StatusBadRequest, apierrors.ErrInvalidFilter.Code},
		{"malformed key", `{"dataset_key":"Crop Production"}`, http.StatusBadRequest, apierrors.ErrInvalidFilter.Code},
		{"limit too large", `{"dataset_key":"crop_production","limit":1001}`, http.StatusBadRequest, apierrors.ErrInvalidFilter.Code},
		{"negative offset", `{"dataset_key":"crop_production","offset":-1}`, http.StatusBadRequest, apierrors.ErrInvalidFilter.Code},
		{"nested filter", `{"dataset_key":"crop_production","filters":{"State":{"eq":"Punjab"}}}`, http.StatusBadRequest, apierrors.ErrInvalidFilter.Code},
		{"empty list filter", `{"dataset_key":"crop_production","filters":{"State":[]}}`, http.StatusBadRequest, apierrors.ErrInvalidFilter.Code},
		{"unknown dataset", `{"dataset_key":"fisheries"}`, http.StatusNotFound, apierrors.ErrUnknownDataset.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(e, http.MethodPost, "/datasets/query", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestValidateFilters(t *testing.T) {
	assert.NoError(t, validateFilters(nil))
	assert.NoError(t, validateFilters(map[string]interface{}{"Year": float64(2020), "State": nil, "Crop": []interface{}{"Rice", true}}))
	assert.Error(t, validateFilters(map[string]interface{}{"": "x"}))
	assert.Error(t, validateFilters(map[string]interface{}{"Crop": []interface{}{[]interface{}{"Rice"}}}))
}
