// Package redis provides the shared Redis client used by the agriqa caches.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	options "github.com/kart-io/agriqa/pkg/options/redis"
)

// Client owns one go-redis connection pool.
type Client struct {
	client *goredis.Client
	opts   *options.Options
}

// New creates a Redis client from opts and verifies connectivity with a ping.
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid redis options: %v", errs)
	}

	useStructuredLogger()
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password.Reveal(),
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr(), err)
	}

	return &Client{client: rdb, opts: opts}, nil
}

func (c *Client) Name() string { return "redis" }

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Client) Close() error { return c.client.Close() }

// Client returns the pool for the caches built on it.
func (c *Client) Client() *goredis.Client {
	return c.client
}

// HealthStats 健康检查结果与连接池统计。
type HealthStats struct {
	Healthy    bool          `json:"healthy"`
	Latency    time.Duration `json:"latency"`
	TotalConns uint32        `json:"total_conns"`
	IdleConns  uint32        `json:"idle_conns"`
	Error      string        `json:"error,omitempty"`
}

// HealthWithStats pings Redis and reports latency plus pool statistics.
func (c *Client) HealthWithStats(ctx context.Context) *HealthStats {
	start := time.Now()
	err := c.Ping(ctx)
	stats := &HealthStats{Latency: time.Since(start)}
	if err != nil {
		stats.Error = err.Error()
		return stats
	}

	stats.Healthy = true
	ps := c.client.PoolStats()
	stats.TotalConns = ps.TotalConns
	stats.IdleConns = ps.IdleConns
	return stats
}
