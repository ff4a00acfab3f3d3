package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/agriqa/internal/model"
	"github.com/kart-io/agriqa/pkg/utils/json"
)

// DecompositionCacheConfig 问题分解缓存配置。
type DecompositionCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// DecompositionCache 问题分解结果缓存。
type DecompositionCache struct {
	redis  goredis.Cmdable
	config *DecompositionCacheConfig
}

// NewDecompositionCache 创建问题分解缓存实例。
func NewDecompositionCache(redis goredis.Cmdable, config *DecompositionCacheConfig) *DecompositionCache {
	if config == nil {
		config = &DecompositionCacheConfig{
			Enabled:   false,
			TTL:       time.Hour,
			KeyPrefix: "agriqa:decompose:",
		}
	}
	return &DecompositionCache{
		redis:  redis,
		config: config,
	}
}

// Enabled reports whether lookups can reach Redis.
func (c *DecompositionCache) Enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

func (c *DecompositionCache) key(query string) string {
	hash := sha256.Sum256([]byte(query))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get 返回缓存的分解结果，未命中时返回 nil, nil。
func (c *DecompositionCache) Get(ctx context.Context, query string) (*model.Decomposition, error) {
	if !c.Enabled() {
		return nil, nil
	}

	key := c.key(query)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			logger.Debugw("decomposition cache miss", "key", key)
			return nil, nil
		}
		return nil, err
	}

	var d model.Decomposition
	if err := json.Unmarshal(data, &d); err != nil {
		logger.Warnw("failed to unmarshal cached decomposition", "error", err.Error(), "key", key)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}
	return &d, nil
}

// Set 写入分解结果。
func (c *DecompositionCache) Set(ctx context.Context, query string, d *model.Decomposition) error {
	if !c.Enabled() || d == nil {
		return nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, c.key(query), data, c.config.TTL).Err()
}

// Clear 删除所有分解缓存，返回删除的键数。
func (c *DecompositionCache) Clear(ctx context.Context) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}

	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, c.config.KeyPrefix+"*", 100).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := c.redis.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}
