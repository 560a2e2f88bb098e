package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts []*s3.PutObjectInput
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, f.err
}

type fakeCloudFront struct {
	inputs []*cloudfront.CreateInvalidationInput
}

func (f *fakeCloudFront) CreateInvalidation(_ context.Context, in *cloudfront.CreateInvalidationInput, _ ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudfront.CreateInvalidationOutput{}, nil
}

func TestPublisher_Publish(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	path, err := s.Write(ctx, onePixelPNG, "png", Metadata{ID: "abc", Operation: "generate"})
	require.NoError(t, err)
	meta, err := s.ReadMetadata(path)
	require.NoError(t, err)

	bucket := &fakeS3{}
	cdn := &fakeCloudFront{}
	p := &Publisher{
		Uploader: &S3Uploader{Client: bucket, Bucket: "images-bucket"},
		Invalidator: &CloudFrontInvalidator{Client: cdn, Distribution: "E1", now: func() time.Time {
			return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		}},
		Prefix: "images",
	}
	require.NoError(t, p.Publish(ctx, path, meta))

	require.Len(t, bucket.puts, 2)
	key := "images/" + meta.Filename
	assert.Equal(t, key, aws.ToString(bucket.puts[0].Key))
	assert.Equal(t, "image/png", aws.ToString(bucket.puts[0].ContentType))
	assert.Equal(t, "images-bucket", aws.ToString(bucket.puts[0].Bucket))
	assert.Equal(t, "abc", bucket.puts[0].Metadata["id"])
	assert.Equal(t, "generate", bucket.puts[0].Metadata["operation"])
	assert.Equal(t, artifactCacheControl, aws.ToString(bucket.puts[0].CacheControl))
	assert.Equal(t, artifactCacheControl, aws.ToString(bucket.puts[1].CacheControl))
	assert.Equal(t, key+".json", aws.ToString(bucket.puts[1].Key))
	assert.Equal(t, "application/json", aws.ToString(bucket.puts[1].ContentType))

	require.Len(t, cdn.inputs, 1)
	assert.Equal(t, "E1", aws.ToString(cdn.inputs[0].DistributionId))
	assert.Equal(t, []string{"/" + key, "/" + key + ".json"}, cdn.inputs[0].InvalidationBatch.Paths.Items)
	assert.Equal(t, int32(2), aws.ToInt32(cdn.inputs[0].InvalidationBatch.Paths.Quantity))
	assert.Equal(t, "20250102030405.000000", aws.ToString(cdn.inputs[0].InvalidationBatch.CallerReference))
}

func TestPublisher_UploadFailureStopsBeforeInvalidation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	path, err := s.Write(ctx, onePixelPNG, "webp", Metadata{})
	require.NoError(t, err)

	cdn := &fakeCloudFront{}
	p := &Publisher{
		Uploader:    &S3Uploader{Client: &fakeS3{err: errors.New("access denied")}, Bucket: "b"},
		Invalidator: &CloudFrontInvalidator{Client: cdn, Distribution: "E1"},
	}
	err = p.Publish(ctx, path, Metadata{})
	assert.ErrorContains(t, err, "access denied")
	assert.Empty(t, cdn.inputs)
}

func TestPublisher_Disabled(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	path, err := s.Write(ctx, onePixelPNG, "png", Metadata{})
	require.NoError(t, err)

	p := &Publisher{Uploader: NopUploader{}, Invalidator: NopInvalidator{}}
	assert.NoError(t, p.Publish(ctx, path, Metadata{}))
}
