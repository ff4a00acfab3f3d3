package middleware

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/agriqa/pkg/options/middleware"
	apierrors "github.com/kart-io/agriqa/pkg/utils/errors"
	"github.com/kart-io/agriqa/pkg/utils/response"
)

// PanicHandler observes a recovered panic before the 500 response is sent.
type PanicHandler func(c *gin.Context, err interface{}, stack []byte)

// RecoveryWithOptions 捕获 panic，记录堆栈并返回 ErrPanic。
// 生产环境（APP_ENV 或 GO_ENV 为 prod/production）下堆栈不会出现在响应中。
func RecoveryWithOptions(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	exposeStack := opts.EnableStackTrace && !inProduction()
	if opts.EnableStackTrace && !exposeStack {
		logger.Warn("recovery: stack traces stay out of responses in production")
	}

	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			stack := debug.Stack()
			logger.Global().WithCtx(c.Request.Context()).Errorw("panic recovered",
				"panic", fmt.Sprint(rec),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", GetRequestID(c.Request.Context()),
				"stack_trace", string(stack),
			)
			if onPanic != nil {
				onPanic(c, rec, stack)
			}

			detail := fmt.Sprintf("panic: %v", rec)
			if exposeStack {
				detail += "\n" + string(stack)
			}
			response.Fail(c, apierrors.ErrPanic.WithCause(errors.New(detail)))
		}()
		c.Next()
	}
}

func inProduction() bool {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	return slices.Contains([]string{"prod", "production"}, strings.ToLower(env))
}
