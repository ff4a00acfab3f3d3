package redis

import (
	"encoding/json"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/agriqa/pkg/options"
)

func TestPasswordRedaction(t *testing.T) {
	o := NewOptions()
	o.Password = "hunter2"

	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), options.Redacted)
	assert.Equal(t, "hunter2", o.Password.Reveal())
	assert.NotContains(t, o.String(), "hunter2")
}

func TestCompleteReadsEnv(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "from-env")
	o := NewOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "from-env", o.Password.Reveal())
}

func TestValidateAndFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs, "cache")
	require.NoError(t, fs.Parse([]string{"--cache.redis.port=0", "--cache.redis.host=redis"}))

	assert.Equal(t, "redis:0", o.Addr())
	assert.Len(t, o.Validate(), 1)
}

func TestSecretFlagKeepsConfiguredValue(t *testing.T) {
	o := NewOptions()
	o.Password = "preset"
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	assert.Equal(t, "", fs.Lookup("redis.password").DefValue)
	assert.Equal(t, "preset", o.Password.Reveal())

	require.NoError(t, fs.Parse([]string{"--redis.password=override"}))
	assert.Equal(t, "override", o.Password.Reveal())
}
