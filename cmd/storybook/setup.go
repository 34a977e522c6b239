package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/fpang/storybook-illustrator/internal/auth"
	"github.com/fpang/storybook-illustrator/internal/config"
	"github.com/fpang/storybook-illustrator/internal/illustrator"
	"github.com/fpang/storybook-illustrator/internal/kv"
	"github.com/fpang/storybook-illustrator/internal/logging"
	"github.com/fpang/storybook-illustrator/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app bundles the collaborators shared by every subcommand.
type app struct {
	remote  *illustrator.Client
	store   kv.Store
	closer  io.Closer
	emitter *metrics.Emitter
}

func (a *app) Close() error {
	return a.closer.Close()
}

// loadConfig reads the environment, applies the flags that were set,
// validates the result and initializes logging from it.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, opts, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Init(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("analysis-model") {
		cfg.AnalysisModel = opts.analysisModel
	}
	if flags.Changed("image-model") {
		cfg.ImageModel = opts.imageModel
	}
	if flags.Changed("store") {
		cfg.Store.Backend = opts.storeBackend
	}
	if flags.Changed("store-dir") {
		cfg.Store.Dir = opts.storeDir
	}
	if flags.Changed("metrics") {
		cfg.Metrics = opts.metrics
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("title") {
		cfg.Title = opts.title
	}
}

// newApp resolves the API key, creates the remote client and opens the
// preset store. A missing key is logged and does not fail.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	var getter auth.ParameterGetter
	if cfg.APIKeySSMParam != "" && !cfg.HasCredential() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load AWS config, skipping SSM key lookup")
		} else {
			getter = ssm.NewFromConfig(awsCfg)
		}
	}
	key, err := auth.GetAPIKey(ctx, cfg.APIKeySSMParam, getter)
	switch {
	case err == nil:
		cfg.APIKey = key
	case errors.Is(err, auth.ErrNoAPIKey):
		log.Warn().Err(err).Msg("Starting without a Gemini API key")
	default:
		return nil, err
	}

	emitter := metrics.Discard()
	if cfg.Metrics {
		emitter = metrics.Stdout("StorybookIllustrator", "storybook")
	}

	remote, err := illustrator.New(ctx, illustrator.Config{
		APIKey:        cfg.APIKey,
		AnalysisModel: cfg.AnalysisModel,
		ImageModel:    cfg.ImageModel,
		Interval:      cfg.RemoteInterval,
		Metrics:       emitter,
	})
	if err != nil {
		return nil, err
	}

	store, closer, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open preset store: %w", err)
	}

	return &app{
		remote:  remote,
		store:   store,
		closer:  closer,
		emitter: emitter,
	}, nil
}
