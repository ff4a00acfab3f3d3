package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/agriqa/pkg/infra/tracing"
	mwopts "github.com/kart-io/agriqa/pkg/options/middleware"
)

// fieldsPool is a sync.Pool for reusing fields slices to reduce heap allocations.
var fieldsPool = sync.Pool{
	New: func() interface{} {
		s := make([]interface{}, 0, 16)
		return &s
	},
}

// LoggerWithOptions 返回请求日志中间件，SkipPaths 支持以 * 结尾的前缀匹配。
func LoggerWithOptions(opts mwopts.LoggerOptions) gin.HandlerFunc {
	skip := newPathMatcher(opts.SkipPaths)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skip(path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := fieldsPool.Get().(*[]interface{})
		defer func() {
			*fields = (*fields)[:0]
			fieldsPool.Put(fields)
		}()

		status := c.Writer.Status()
		*fields = append(*fields,
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"client_ip", GetClientIP(c.Request),
			"latency", latency.String(),
			"latency_ms", latency.Milliseconds(),
		)
		if requestID := GetRequestID(c.Request.Context()); requestID != "" {
			*fields = append(*fields, "request_id", requestID)
		}
		if traceID := tracing.TraceID(c.Request.Context()); traceID != "" {
			*fields = append(*fields, "trace_id", traceID)
		}
		if len(c.Errors) > 0 {
			*fields = append(*fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Errorw("HTTP Request", (*fields)...)
		case status >= 400:
			logger.Warnw("HTTP Request", (*fields)...)
		default:
			logger.Infow("HTTP Request", (*fields)...)
		}
	}
}

func newPathMatcher(paths []string) func(string) bool {
	exact := make(map[string]bool, len(paths))
	var prefixes []string
	for _, p := range paths {
		if strings.HasSuffix(p, "*") {
			prefixes = append(prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		exact[p] = true
	}
	return func(path string) bool {
		if exact[path] {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}
}
