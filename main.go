package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AiondaDotCom/mcp-openai-image/internal/config"
	"github.com/AiondaDotCom/mcp-openai-image/internal/inject"
	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
	"github.com/AiondaDotCom/mcp-openai-image/internal/server"
	"github.com/samber/do"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts, err := config.Default()
	if err != nil {
		opts = config.Options{}
	}

	cmd := &cobra.Command{
		Use:           server.Name,
		Short:         "MCP server for OpenAI image generation",
		Long:          "Serves image generation, editing and configuration tools over the Model Context Protocol on stdio.",
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "credential file")
	flags.StringVar(&opts.OutputDir, "output-dir", opts.OutputDir, "directory for generated images")
	flags.IntVar(&opts.Keep, "keep", opts.Keep, "number of images to keep, 0 keeps all")
	flags.BoolVar(&opts.Debug, "debug", opts.Debug, "enable debug logging")
	flags.StringVar(&opts.APIBase, "api-base", opts.APIBase, "OpenAI API base URL")
	flags.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "upstream request timeout")
	flags.IntVar(&opts.RequestsPerMinute, "requests-per-minute", opts.RequestsPerMinute, "upstream request rate")
	flags.BoolVar(&opts.RequireOrganization, "require-organization", opts.RequireOrganization, "reject API keys without an organization")
	flags.StringVar(&opts.KeyParam, "key-param", opts.KeyParam, "SSM parameter holding a bootstrap API key")
	flags.StringVar(&opts.MirrorBucket, "mirror-bucket", opts.MirrorBucket, "S3 bucket to mirror images to")
	flags.StringVar(&opts.MirrorPrefix, "mirror-prefix", opts.MirrorPrefix, "key prefix inside the mirror bucket")
	flags.StringVar(&opts.Distribution, "distribution", opts.Distribution, "CloudFront distribution in front of the mirror bucket")

	return cmd
}

func run(ctx context.Context, opts config.Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol, so logs go to stderr.
	ctx = log.NewContext(ctx, log.New(os.Stderr, opts.Debug))
	injector := inject.Setup(ctx, opts)
	defer func() {
		_ = injector.Shutdown()
	}()

	if err := inject.Bootstrap(ctx, injector); err != nil {
		return err
	}
	srv, err := do.Invoke[*server.Server](injector)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}
