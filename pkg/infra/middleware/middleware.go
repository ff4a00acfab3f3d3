package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/agriqa/pkg/options/middleware"
)

// Build returns the enabled middleware in configured order.
func Build(opts *mwopts.Options) []gin.HandlerFunc {
	if opts == nil {
		opts = mwopts.NewOptions()
	}

	handlers := make([]gin.HandlerFunc, 0, len(opts.Middleware))
	for _, name := range opts.Middleware {
		switch name {
		case mwopts.MiddlewareRecovery:
			handlers = append(handlers, RecoveryWithOptions(derefRecovery(opts.Recovery), nil))
		case mwopts.MiddlewareRequestID:
			handlers = append(handlers, RequestIDWithOptions(derefRequestID(opts.RequestID)))
		case mwopts.MiddlewareTracing:
			handlers = append(handlers, Tracing())
		case mwopts.MiddlewareLogger:
			handlers = append(handlers, LoggerWithOptions(derefLogger(opts.Logger)))
		case mwopts.MiddlewareCORS:
			handlers = append(handlers, CORSWithOptions(derefCORS(opts.CORS)))
		case mwopts.MiddlewareTimeout:
			handlers = append(handlers, TimeoutWithOptions(derefTimeout(opts.Timeout)))
		case mwopts.MiddlewareRateLimit:
			handlers = append(handlers, RateLimitWithOptions(derefRateLimit(opts.RateLimit)))
		default:
			logger.Warnw("Unknown middleware ignored", "middleware", name)
		}
	}
	return handlers
}

// Apply 将启用的中间件挂载到 engine。
func Apply(engine *gin.Engine, opts *mwopts.Options) {
	engine.Use(Build(opts)...)
}

func derefRecovery(o *mwopts.RecoveryOptions) mwopts.RecoveryOptions {
	if o == nil {
		return *mwopts.NewOptions().Recovery
	}
	return *o
}

func derefRequestID(o *mwopts.RequestIDOptions) mwopts.RequestIDOptions {
	if o == nil {
		return *mwopts.NewOptions().RequestID
	}
	return *o
}

func derefLogger(o *mwopts.LoggerOptions) mwopts.LoggerOptions {
	if o == nil {
		return *mwopts.NewOptions().Logger
	}
	return *o
}

func derefCORS(o *mwopts.CORSOptions) mwopts.CORSOptions {
	if o == nil {
		return *mwopts.NewOptions().CORS
	}
	return *o
}

func derefRateLimit(o *mwopts.RateLimitOptions) mwopts.RateLimitOptions {
	if o == nil {
		return *mwopts.NewOptions().RateLimit
	}
	return *o
}

func derefTimeout(o *mwopts.TimeoutOptions) mwopts.TimeoutOptions {
	if o == nil {
		return *mwopts.NewOptions().Timeout
	}
	return *o
}
