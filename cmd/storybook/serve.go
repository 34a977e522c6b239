package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fpang/storybook-illustrator/internal/auth"
	"github.com/fpang/storybook-illustrator/internal/kv"
	"github.com/fpang/storybook-illustrator/internal/logging"
	"github.com/fpang/storybook-illustrator/internal/server"
	"github.com/fpang/storybook-illustrator/internal/storybook"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local storybook studio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.port, "port", 8080, "Port to listen on")
	cmd.Flags().BoolVar(&opts.validateKey, "validate-key", false, "Verify the API key with a test call before serving")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Write embedded-metric-format lines to stdout")
	cmd.Flags().StringVar(&opts.title, "title", "", "Default book title used by exports")
	return cmd
}

func runServe(cmd *cobra.Command, opts *options) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.validateKey && a.remote.HasCredential() {
		vctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := auth.ValidateAPIKey(vctx, a.remote.GenAI(), cfg.AnalysisModel, a.emitter)
		cancel()
		if err != nil {
			log.Error().Err(err).Msg("Invalid API key")
			return err
		}
	}

	studio := storybook.NewStudio(ctx, storybook.StudioConfig{
		Remote:     a.remote,
		Store:      a.store,
		PreviewTTL: cfg.PreviewTTL,
	})

	logging.NewStartupLogger("storybook").
		Version(version).
		Storage("presets", kv.Describe(cfg.Store)).
		Model("analysis", cfg.AnalysisModel).
		Model("illustration", cfg.ImageModel).
		Feature("api_key", a.remote.HasCredential()).
		Feature("metrics", cfg.Metrics).
		Config("port", strconv.Itoa(cfg.Port)).
		Config("remote_interval", cfg.RemoteInterval.String()).
		Config("preview_ttl", cfg.PreviewTTL.String()).
		Config("title", cfg.Title).
		InitDuration(time.Since(start)).
		Log()

	fmt.Fprintf(os.Stderr, "\n  Storybook studio: http://localhost:%d\n\n", cfg.Port)
	srv := server.New(studio, server.Options{Title: cfg.Title})
	return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port))
}
