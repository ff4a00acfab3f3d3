package middleware

import (
	"github.com/gin-gonic/gin"

	mwopts "github.com/kart-io/agriqa/pkg/options/middleware"
	"github.com/kart-io/agriqa/pkg/utils/id"
)

// RequestIDWithOptions returns a middleware that reuses the incoming request
// ID or generates a ULID. The ID is echoed in the response header and
// stored in the request context.
func RequestIDWithOptions(opts mwopts.RequestIDOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = HeaderXRequestID
	}
	gen := id.NewULIDGenerator()

	return func(c *gin.Context) {
		requestID := c.GetHeader(header)
		if requestID == "" {
			requestID = gen.Generate()
		}

		c.Header(header, requestID)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}
