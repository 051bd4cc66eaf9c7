package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsNormalize(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/", OutputPath: "out.png"}
	require.NoError(t, o.normalize())
	assert.Equal(t, DefaultWidth, o.Width)
	assert.Equal(t, DefaultHeight, o.Height)
	assert.Equal(t, DefaultTimeout, o.Timeout)

	o = Options{URL: "u", OutputPath: "p", Width: 100, Height: 200, Timeout: time.Second}
	require.NoError(t, o.normalize())
	assert.Equal(t, 100, o.Width)
	assert.Equal(t, 200, o.Height)
	assert.Equal(t, time.Second, o.Timeout)
}

func TestPage_RequiresURLAndOutput(t *testing.T) {
	assert.ErrorContains(t, Page(context.Background(), Options{OutputPath: "out.png"}), "URL is required")
	assert.ErrorContains(t, Page(context.Background(), Options{URL: "http://x/"}), "OutputPath is required")
}
