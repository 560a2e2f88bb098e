package inject

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/AiondaDotCom/mcp-openai-image/internal/config"
	"github.com/AiondaDotCom/mcp-openai-image/internal/credential"
	"github.com/AiondaDotCom/mcp-openai-image/internal/server"
	"github.com/AiondaDotCom/mcp-openai-image/internal/store"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) config.Options {
	t.Helper()
	dir := t.TempDir()
	return config.Options{
		ConfigPath:        filepath.Join(dir, "config", "config.json"),
		OutputDir:         filepath.Join(dir, "images"),
		Keep:              5,
		APIBase:           "http://127.0.0.1:0/v1",
		Timeout:           time.Second,
		RequestsPerMinute: 60,
		MirrorPrefix:      "images/",
	}
}

func TestSetup_ResolvesServerWithoutAWS(t *testing.T) {
	injector := Setup(context.Background(), testOptions(t))
	t.Cleanup(func() { _ = injector.Shutdown() })

	_, err := do.Invoke[*server.Server](injector)
	require.NoError(t, err)

	assert.IsType(t, store.NopUploader{}, do.MustInvoke[store.Uploader](injector))
	assert.IsType(t, store.NopInvalidator{}, do.MustInvoke[store.Invalidator](injector))
	assert.Equal(t, 5, do.MustInvokeNamed[int](injector, "keep"))
}

func TestBootstrap_SeedsKeyFromEnvironment(t *testing.T) {
	t.Setenv(keyEnv, "sk-from-env")
	opts := testOptions(t)
	injector := Setup(context.Background(), opts)

	require.NoError(t, Bootstrap(context.Background(), injector))

	assert.DirExists(t, opts.OutputDir)
	creds := do.MustInvoke[*credential.Store](injector)
	assert.Equal(t, "sk-from-env", creds.Load(context.Background()).APIKey)
}

func TestBootstrap_KeepsConfiguredKey(t *testing.T) {
	t.Setenv(keyEnv, "sk-from-env")
	ctx := context.Background()
	opts := testOptions(t)
	require.NoError(t, credential.New(opts.ConfigPath).UpdateKey(ctx, "sk-configured", "org-1"))

	injector := Setup(ctx, opts)
	require.NoError(t, Bootstrap(ctx, injector))

	record := do.MustInvoke[*credential.Store](injector).Load(ctx)
	assert.Equal(t, "sk-configured", record.APIKey)
	assert.Equal(t, "org-1", record.Organization)
}

func TestBootstrap_IgnoresInvalidKey(t *testing.T) {
	t.Setenv(keyEnv, "not-a-key")
	ctx := context.Background()
	injector := Setup(ctx, testOptions(t))

	require.NoError(t, Bootstrap(ctx, injector))
	assert.False(t, do.MustInvoke[*credential.Store](injector).Status(ctx).Configured)
}
