package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
)

var installLogger sync.Once

// redisLogger 将 go-redis 内部的重连、连接池告警写入结构化日志。
type redisLogger struct{}

func (redisLogger) Printf(ctx context.Context, format string, v ...interface{}) {
	logger.Global().WithCtx(ctx).Warnw(fmt.Sprintf(format, v...), "component", "redis")
}

func useStructuredLogger() {
	installLogger.Do(func() { goredis.SetLogger(redisLogger{}) })
}
