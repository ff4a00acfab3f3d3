// Package response writes API payloads and the uniform error body.
//
// Successful calls return the entity itself. Failures return
//
//	{"code": 2104001, "error": "Dataset not found", "detail": "...", "request_id": "..."}
//
// with the HTTP status taken from the errno.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/agriqa/pkg/utils/errors"
)

// HeaderRequestID is the response header carrying the request id.
const HeaderRequestID = "X-Request-ID"

// ErrorBody is the caller-facing failure shape.
type ErrorBody struct {
	Code      int    `json:"code"`
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorBody builds the failure body for an errno.
func NewErrorBody(e *errors.Errno) *ErrorBody {
	if e == nil {
		e = errors.ErrInternal
	}
	return &ErrorBody{
		Code:   e.Code,
		Error:  e.MessageEN,
		Detail: e.Detail(),
	}
}

// OK writes data with status 200.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Fail writes the error body for err and aborts the handler chain.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	body := NewErrorBody(e)
	body.RequestID = c.Writer.Header().Get(HeaderRequestID)
	c.AbortWithStatusJSON(e.HTTPStatus(), body)
}
