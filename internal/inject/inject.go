package inject

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/AiondaDotCom/mcp-openai-image/internal/config"
	"github.com/AiondaDotCom/mcp-openai-image/internal/credential"
	"github.com/AiondaDotCom/mcp-openai-image/internal/feed"
	"github.com/AiondaDotCom/mcp-openai-image/internal/handler"
	"github.com/AiondaDotCom/mcp-openai-image/internal/image"
	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
	"github.com/AiondaDotCom/mcp-openai-image/internal/param"
	"github.com/AiondaDotCom/mcp-openai-image/internal/server"
	"github.com/AiondaDotCom/mcp-openai-image/internal/store"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/samber/do"
	"golang.org/x/time/rate"
)

const keyEnv = "OPENAI_API_KEY"

// Setup registers every component. Providers are lazy, so AWS configuration
// is only loaded when a parameter path or mirror bucket is configured.
func Setup(ctx context.Context, opts config.Options) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[config.Options](injector, opts)
	do.ProvideNamedValue[int](injector, "keep", opts.Keep)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, &http.Client{Timeout: opts.Timeout})

	do.Provide[param.Fetcher](injector, func(i *do.Injector) (param.Fetcher, error) {
		if opts.KeyParam != "" {
			return param.NewParameterStoreFetcher(do.MustInvoke[*ssm.Client](i)), nil
		}
		return param.EnvFetcher{}, nil
	})
	do.Provide[*credential.Store](injector, func(i *do.Injector) (*credential.Store, error) {
		return credential.New(opts.ConfigPath, credential.WithRequireOrganization(opts.RequireOrganization)), nil
	})
	do.Provide[*store.FileStore](injector, func(i *do.Injector) (*store.FileStore, error) {
		return store.NewFileStore(opts.OutputDir)
	})
	do.Provide[store.Uploader](injector, func(i *do.Injector) (store.Uploader, error) {
		if opts.MirrorBucket == "" {
			return store.NopUploader{}, nil
		}
		return &store.S3Uploader{Client: do.MustInvoke[*s3.Client](i), Bucket: opts.MirrorBucket}, nil
	})
	do.Provide[store.Invalidator](injector, func(i *do.Injector) (store.Invalidator, error) {
		if opts.Distribution == "" {
			return store.NopInvalidator{}, nil
		}
		return &store.CloudFrontInvalidator{Client: do.MustInvoke[*cloudfront.Client](i), Distribution: opts.Distribution}, nil
	})
	do.Provide[*store.Publisher](injector, func(i *do.Injector) (*store.Publisher, error) {
		return &store.Publisher{
			Uploader:    do.MustInvoke[store.Uploader](i),
			Invalidator: do.MustInvoke[store.Invalidator](i),
			Prefix:      opts.MirrorPrefix,
		}, nil
	})
	do.Provide[image.Generator](injector, func(i *do.Injector) (image.Generator, error) {
		perSecond := rate.Limit(float64(opts.RequestsPerMinute) / 60)
		return &image.OpenAIGenerator{
			Client:  do.MustInvoke[*http.Client](i),
			BaseURL: opts.APIBase,
			Limiter: rate.NewLimiter(perSecond, int(math.Max(1, float64(opts.RequestsPerMinute)/10))),
		}, nil
	})
	do.Provide[*image.Client](injector, image.NewClient)
	do.Provide[*feed.Generator](injector, feed.NewGenerator)
	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*server.Server](injector, server.New)

	return injector
}

// Bootstrap checks the output directory and seeds an unconfigured credential
// record from the parameter store or OPENAI_API_KEY. A bootstrap key never
// overwrites a key the user configured.
func Bootstrap(ctx context.Context, i *do.Injector) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("bootstrap")

	files, err := do.Invoke[*store.FileStore](i)
	if err != nil {
		return err
	}
	if err := files.EnsureAccessible(); err != nil {
		return err
	}
	if !files.CheckWritable() {
		log.Warn("output directory is not writable", "dir", files.Dir())
	}

	creds := do.MustInvoke[*credential.Store](i)
	if creds.Status(ctx).Configured {
		return nil
	}

	opts := do.MustInvoke[config.Options](i)
	name := keyEnv
	if opts.KeyParam != "" {
		name = opts.KeyParam
	}
	key, err := do.MustInvoke[param.Fetcher](i).Fetch(ctx, name)
	if err != nil {
		log.Warn("fetching bootstrap key", "source", name, "error", err)
		return nil
	}
	if key == "" {
		return nil
	}
	if err := creds.UpdateKey(ctx, key, ""); err != nil {
		log.Warn("ignoring bootstrap key", "source", name, "error", err)
		return nil
	}
	log.Info("configured api key from bootstrap source", "source", name)
	return nil
}
