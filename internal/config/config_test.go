package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	opts, err := Default()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".mcp-openai-image", "config.json"), opts.ConfigPath)
	assert.Equal(t, filepath.Join(home, "Desktop", "generated_images"), opts.OutputDir)
	assert.Equal(t, 50, opts.Keep)
	assert.Equal(t, 10, opts.RequestsPerMinute)
	assert.Equal(t, 3*time.Minute, opts.Timeout)
	assert.Equal(t, "https://api.openai.com/v1", opts.APIBase)
	assert.False(t, opts.Debug)
	assert.NoError(t, opts.Validate())
}

func TestDefaultFromEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MCP_OPENAI_IMAGE_OUTPUT_DIR", "/tmp/out")
	t.Setenv("MCP_OPENAI_IMAGE_KEEP", "3")
	t.Setenv("MCP_OPENAI_IMAGE_TIMEOUT", "30s")
	t.Setenv("MCP_OPENAI_IMAGE_DEBUG", "1")

	opts, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out", opts.OutputDir)
	assert.Equal(t, 3, opts.Keep)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.True(t, opts.Debug)
}

func TestDefaultInvalidEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	t.Setenv("MCP_OPENAI_IMAGE_KEEP", "many")
	_, err := Default()
	assert.ErrorContains(t, err, "MCP_OPENAI_IMAGE_KEEP")

	t.Setenv("MCP_OPENAI_IMAGE_KEEP", "")
	t.Setenv("MCP_OPENAI_IMAGE_TIMEOUT", "soon")
	_, err = Default()
	assert.ErrorContains(t, err, "MCP_OPENAI_IMAGE_TIMEOUT")
}

func TestValidate(t *testing.T) {
	base := Options{ConfigPath: "c.json", OutputDir: "out", RequestsPerMinute: 1}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"empty config path", func(o *Options) { o.ConfigPath = "" }},
		{"empty output dir", func(o *Options) { o.OutputDir = "" }},
		{"negative keep", func(o *Options) { o.Keep = -1 }},
		{"zero rate", func(o *Options) { o.RequestsPerMinute = 0 }},
		{"distribution without bucket", func(o *Options) { o.Distribution = "E123" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base
			tt.modify(&opts)
			assert.Error(t, opts.Validate())
		})
	}
}
