package pipeline

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())
	assert.Equal(t, 5, o.SearchK)
	assert.Equal(t, 3, o.TopDatasets)
	assert.Equal(t, 1000, o.QueryLimit)
	assert.InDelta(t, 0.3, o.Temperature, 1e-9)
}

func TestFlagsAndValidate(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--pipeline.top-datasets=6",
		"--pipeline.vector-store=chroma",
		"--pipeline.sample-size=0",
	}))

	errs := o.Validate()
	assert.Len(t, errs, 4)
}

func TestValidate_TopDatasetsCap(t *testing.T) {
	o := NewOptions()
	o.SearchK = 10
	o.TopDatasets = MaxTopDatasets + 1
	errs := o.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "top-datasets cannot exceed 3")

	o.TopDatasets = MaxTopDatasets
	assert.Empty(t, o.Validate())
}
