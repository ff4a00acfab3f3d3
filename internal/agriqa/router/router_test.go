package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/internal/agriqa/handler"
	"github.com/kart-io/agriqa/internal/agriqa/store"
	"github.com/kart-io/agriqa/internal/model"
)

type stubQA struct{}

func (stubQA) Process(_ context.Context, query, conversationID string) (*model.Response, error) {
	return &model.Response{Answer: "answer to " + query, ConversationID: conversationID}, nil
}

func (stubQA) ExtractEntities(context.Context, string) (*model.Entities, error) {
	return model.EmptyEntities(), nil
}

type stubIndex struct{}

func (stubIndex) Rebuild(context.Context) (int, error) { return 0, nil }

func newEngine(admin bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	h := Handlers{
		API:    handler.NewHandler(stubQA{}, store.NewDatasetStore(nil, nil), time.Second),
		Health: handler.NewHealthHandler(handler.HealthChecks{}, time.Now()),
	}
	if admin {
		h.Admin = handler.NewAdminHandler(stubIndex{}, nil)
	}
	Register(engine, "/api/v1", h)
	return engine
}

func routeSet(engine *gin.Engine) map[string]bool {
	out := map[string]bool{}
	for _, r := range engine.Routes() {
		out[r.Method+" "+r.Path] = true
	}
	return out
}

func TestRegister_Routes(t *testing.T) {
	routes := routeSet(newEngine(true))

	for _, want := range []string{
		"GET /health",
		"POST /api/v1/chat",
		"POST /api/v1/entities",
		"GET /api/v1/conversations/:id",
		"GET /api/v1/datasets",
		"POST /api/v1/datasets/query",
		"GET /api/v1/datasets/:key",
		"POST /api/v1/datasets/:key/refresh",
		"GET /api/v1/health",
		"GET /api/v1/metrics",
		"POST /api/v1/admin/index/rebuild",
		"DELETE /api/v1/admin/cache",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestRegister_WithoutAdmin(t *testing.T) {
	routes := routeSet(newEngine(false))
	assert.False(t, routes["POST /api/v1/admin/index/rebuild"])
	assert.False(t, routes["DELETE /api/v1/admin/cache"])
}

func TestRegister_RootHealth(t *testing.T) {
	engine := newEngine(false)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status"`)
}

func TestRegisterSwagger(t *testing.T) {
	engine := newEngine(false)
	RegisterSwagger(engine, "/api/v1")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"/datasets/query"`)
	assert.Contains(t, w.Body.String(), `"basePath": "/api/v1"`)
}
