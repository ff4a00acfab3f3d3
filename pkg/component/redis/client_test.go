package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/agriqa/pkg/options/redis"
)

func TestNew_NilOptions(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := options.NewOptions()
	opts.Host = ""
	_, err := New(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis options")
}

func TestNew_LocalServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := New(ctx, options.NewOptions())
	if err != nil {
		t.Skipf("redis not available on localhost:6379: %v", err)
	}
	defer client.Close()

	assert.Equal(t, "redis", client.Name())
	stats := client.HealthWithStats(ctx)
	assert.True(t, stats.Healthy)
	assert.Empty(t, stats.Error)
}
