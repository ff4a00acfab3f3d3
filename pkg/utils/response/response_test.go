package response

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFail_UnknownDataset(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Writer.Header().Set(HeaderRequestID, "req-1")

	Fail(c, errors.ErrUnknownDataset.WithCause(stderrors.New("unknown dataset \"wheat\"")))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, c.IsAborted())

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrUnknownDataset.Code, body.Code)
	assert.Equal(t, "Dataset not found", body.Error)
	assert.Equal(t, "unknown dataset \"wheat\"", body.Detail)
	assert.Equal(t, "req-1", body.RequestID)
}

func TestFail_PlainErrorIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, stderrors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"detail":"boom"`)
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OK(c, map[string]int{"row_count": 3})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"row_count":3}`, w.Body.String())
}
