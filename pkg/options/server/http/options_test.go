package http

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	o := NewOptions()
	require.NoError(t, o.Complete())
	assert.Empty(t, o.Validate())
}

func TestValidate(t *testing.T) {
	o := NewOptions()
	o.Addr = "8000"
	o.BasePath = "api"
	o.WriteTimeout = 0
	o.Mode = "prod"
	assert.Len(t, o.Validate(), 4)
}

func TestFlagsAndComplete(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--http.addr=127.0.0.1:9000", "--http.base-path=/api/v2/", "--http.swagger=false"}))
	require.NoError(t, o.Complete())

	assert.Equal(t, "127.0.0.1:9000", o.Addr)
	assert.Equal(t, "/api/v2", o.BasePath)
	assert.False(t, o.Swagger)
}
