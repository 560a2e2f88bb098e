package store

import (
	"bytes"
	"context"
	"time"

	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectPutter is the subset of *s3.Client the uploader needs.
type ObjectPutter interface {
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	Client ObjectPutter
	Bucket string
}

// artifactCacheControl applies to both objects of an artifact. Names are
// unique per generation, so mirrored objects never change.
const artifactCacheControl = "public, max-age=31536000, immutable"

func (u *S3Uploader) Upload(ctx context.Context, params UploadParams) error {
	logger := log.FromContextOrDiscard(ctx).WithGroup("mirror").With(
		"bucket", u.Bucket,
		"key", params.Name,
		"id", params.Metadata["id"],
		"operation", params.Metadata["operation"],
	)

	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.Bucket),
		Key:          aws.String(params.Name),
		ContentType:  aws.String(params.ContentType),
		CacheControl: aws.String(artifactCacheControl),
		Body:         bytes.NewReader(params.Data),
		Metadata:     params.Metadata,
		StorageClass: s3types.StorageClassIntelligentTiering,
	})
	if err != nil {
		return err
	}
	logger.Info("mirrored artifact object", "bytes", len(params.Data))
	return nil
}

// InvalidationCreator is the subset of *cloudfront.Client the invalidator needs.
type InvalidationCreator interface {
	CreateInvalidation(context.Context, *cloudfront.CreateInvalidationInput, ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

type CloudFrontInvalidator struct {
	Client       InvalidationCreator
	Distribution string
	now          func() time.Time
}

func (i *CloudFrontInvalidator) Invalidate(ctx context.Context, paths []string) error {
	logger := log.FromContextOrDiscard(ctx).WithGroup("mirror").With("paths", paths, "distribution", i.Distribution)
	logger.Info("invalidating paths in cloudfront")

	now := time.Now
	if i.now != nil {
		now = i.now
	}
	_, err := i.Client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.Distribution),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(now().UTC().Format("20060102150405.000000")),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	return err
}
