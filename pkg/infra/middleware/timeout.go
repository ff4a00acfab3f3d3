package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/agriqa/pkg/options/middleware"
	apierrors "github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/response"
)

// TimeoutWithOptions bounds request processing with a context deadline.
// Handlers observe the deadline through the request context; if one returns
// after it without writing, the middleware responds 408.
func TimeoutWithOptions(opts mwopts.TimeoutOptions) gin.HandlerFunc {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	skip := newPathMatcher(opts.SkipPaths)

	return func(c *gin.Context) {
		if skip(c.Request.URL.Path) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			logger.Warnw("Request timed out",
				"path", c.Request.URL.Path,
				"timeout", timeout.String(),
				"request_id", GetRequestID(ctx),
			)
			response.Fail(c, apierrors.ErrRequestTimeout)
		}
	}
}
