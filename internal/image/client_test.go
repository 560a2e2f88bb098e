package image

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AiondaDotCom/mcp-openai-image/internal/credential"
	"github.com/AiondaDotCom/mcp-openai-image/internal/fault"
	"github.com/AiondaDotCom/mcp-openai-image/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	calls []Operation
	last  Request
	resp  Response
	err   error
}

func (f *fakeGenerator) call(op Operation, req Request) (Response, error) {
	f.calls = append(f.calls, op)
	f.last = req
	return f.resp, f.err
}

func (f *fakeGenerator) Generate(_ context.Context, _ credential.Credentials, req Request) (Response, error) {
	return f.call(OpGenerate, req)
}

func (f *fakeGenerator) Edit(_ context.Context, _ credential.Credentials, req Request) (Response, error) {
	return f.call(OpEdit, req)
}

func (f *fakeGenerator) Stream(_ context.Context, _ credential.Credentials, req Request) (Response, error) {
	return f.call(OpStream, req)
}

type recordingUploader struct {
	names []string
}

func (u *recordingUploader) Upload(_ context.Context, p store.UploadParams) error {
	u.names = append(u.names, p.Name)
	return nil
}

type testClient struct {
	*Client
	gen      *fakeGenerator
	uploader *recordingUploader
}

func setupTestClient(t *testing.T, configured bool) testClient {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	creds := credential.New(filepath.Join(dir, "config.json"))
	if configured {
		require.NoError(t, creds.UpdateKey(ctx, "sk-test", ""))
	}
	fs, err := store.NewFileStore(filepath.Join(dir, "out"))
	require.NoError(t, err)

	gen := &fakeGenerator{resp: Response{Image: onePixelPNG, RevisedPrompt: "revised", ID: "req_1"}}
	uploader := &recordingUploader{}
	return testClient{
		Client: &Client{
			creds:     creds,
			store:     fs,
			generator: gen,
			publisher: &store.Publisher{Uploader: uploader, Invalidator: store.NopInvalidator{}},
			keep:      2,
		},
		gen:      gen,
		uploader: uploader,
	}
}

func TestClient_Generate(t *testing.T) {
	c := setupTestClient(t, true)
	ctx := context.Background()

	res := c.Generate(ctx, Params{Prompt: "a cat", Format: "jpeg"})
	require.True(t, res.OK(), "%+v", res.Failure)
	assert.Nil(t, res.Failure)

	s := res.Success
	assert.Equal(t, OpGenerate, s.Operation)
	assert.True(t, strings.HasSuffix(s.Path, ".jpg"))
	assert.FileExists(t, s.Path)
	assert.Equal(t, "revised", s.RevisedPrompt)
	assert.Equal(t, "req_1", s.ResponseID)
	assert.Equal(t, "1024x1024", s.Size)
	assert.Equal(t, "auto", s.Quality)

	assert.NotNil(t, c.creds.Status(ctx).LastUsedAt)
	assert.Len(t, c.uploader.names, 2)

	meta, err := c.store.ReadMetadata(s.Path)
	require.NoError(t, err)
	assert.Equal(t, "a cat", meta.Prompt)
	assert.Equal(t, "generate", meta.Operation)
	assert.NotEmpty(t, meta.ID)
}

func TestClient_ValidationFailsBeforeUpstream(t *testing.T) {
	c := setupTestClient(t, true)

	res := c.Generate(context.Background(), Params{Prompt: "a cat", Size: "10x10"})
	require.False(t, res.OK())
	assert.Nil(t, res.Success)
	assert.Equal(t, fault.UnsupportedSize, res.Failure.Kind)
	assert.Contains(t, res.Failure.Message, "size")
	assert.Empty(t, c.gen.calls)
	assert.Empty(t, c.store.List(context.Background()))
}

func TestClient_Unconfigured(t *testing.T) {
	c := setupTestClient(t, false)

	res := c.Generate(context.Background(), Params{Prompt: "a cat"})
	require.False(t, res.OK())
	assert.Equal(t, fault.InvalidCredential, res.Failure.Kind)
	assert.NotEmpty(t, res.Failure.Suggestions)
	assert.Empty(t, c.gen.calls)
}

func TestClient_UpstreamFailureDoesNotTouchLastUsed(t *testing.T) {
	c := setupTestClient(t, true)
	c.gen.err = &APIError{Status: 400, Code: "insufficient_quota", Message: "You exceeded your current quota"}
	ctx := context.Background()

	res := c.Generate(ctx, Params{Prompt: "a cat"})
	require.False(t, res.OK())
	assert.Equal(t, fault.UpstreamFailure, res.Failure.Kind)
	assert.Equal(t, "quota", res.Failure.Detail)
	assert.Nil(t, c.creds.Status(ctx).LastUsedAt)
	assert.Empty(t, c.store.List(ctx))
}

func TestClient_InvalidPayload(t *testing.T) {
	c := setupTestClient(t, true)
	c.gen.resp = Response{Image: ""}

	res := c.Generate(context.Background(), Params{Prompt: "a cat"})
	require.False(t, res.OK())
	assert.Equal(t, fault.InvalidPayload, res.Failure.Kind)
}

func TestClient_PrunesToRetention(t *testing.T) {
	c := setupTestClient(t, true)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.True(t, c.Generate(ctx, Params{Prompt: "a cat"}).OK())
	}
	assert.Len(t, c.store.List(ctx), 2)
}

func TestClient_EditDefaultsToLatest(t *testing.T) {
	c := setupTestClient(t, true)
	ctx := context.Background()

	first := c.Generate(ctx, Params{Prompt: "a cat"})
	require.True(t, first.OK())

	res := c.Edit(ctx, Params{Prompt: "add a hat"})
	require.True(t, res.OK(), "%+v", res.Failure)
	assert.Equal(t, OpEdit, res.Success.Operation)
	assert.Equal(t, first.Success.Path, res.Success.SourceImage)
	assert.Equal(t, []Operation{OpGenerate, OpEdit}, c.gen.calls)
	assert.Equal(t, filepath.Base(first.Success.Path), c.gen.last.ImageName)
	assert.NotEmpty(t, c.gen.last.Image)
}

func TestClient_EditWithoutSource(t *testing.T) {
	c := setupTestClient(t, true)

	res := c.Edit(context.Background(), Params{Prompt: "add a hat"})
	require.False(t, res.OK())
	assert.Equal(t, fault.InvalidParameter, res.Failure.Kind)

	res = c.Edit(context.Background(), Params{Prompt: "add a hat", ImagePath: "/does/not/exist.png"})
	require.False(t, res.OK())
	assert.Equal(t, fault.InvalidParameter, res.Failure.Kind)
	assert.Empty(t, c.gen.calls)
}

func TestClient_EditExplicitSource(t *testing.T) {
	c := setupTestClient(t, true)
	src := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(src, mustDecode(t, onePixelPNG), 0o644))

	res := c.Edit(context.Background(), Params{Prompt: "sepia", ImagePath: src})
	require.True(t, res.OK(), "%+v", res.Failure)
	assert.Equal(t, src, res.Success.SourceImage)
	assert.Equal(t, "photo.png", c.gen.last.ImageName)
}

func TestClient_Stream(t *testing.T) {
	c := setupTestClient(t, true)
	c.gen.resp.Partials = 3

	res := c.Stream(context.Background(), Params{Prompt: "a cat"})
	require.True(t, res.OK())
	assert.Equal(t, OpStream, res.Success.Operation)
	assert.Equal(t, 3, res.Success.PartialImages)
	assert.Equal(t, []Operation{OpStream}, c.gen.calls)
}

func TestClient_TimeoutClassified(t *testing.T) {
	c := setupTestClient(t, true)
	c.gen.err = errors.Join(errors.New("post"), context.DeadlineExceeded)

	res := c.Generate(context.Background(), Params{Prompt: "a cat"})
	require.False(t, res.OK())
	assert.Equal(t, "timeout", res.Failure.Detail)
}
