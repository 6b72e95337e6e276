package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/gradeproxy/internal/config"
	"github.com/abhisek/gradeproxy/internal/grading"
	"github.com/abhisek/gradeproxy/internal/llm"
	"github.com/abhisek/gradeproxy/internal/logging"
	"github.com/abhisek/gradeproxy/internal/media"
	"github.com/abhisek/gradeproxy/internal/server"
	"github.com/abhisek/gradeproxy/internal/store"
	"github.com/abhisek/gradeproxy/internal/subject"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides GRADEPROXY_ADDR)")
	serveCmd.Flags().Bool("event-log", true, "Record every LLM request in the SQLite event log")
}

// runServe loads configuration, builds dependencies and serves until
// interrupted.
func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Output)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var eventRepo store.EventRepo = store.NopEventRepo{}
	if enabled, _ := cmd.Flags().GetBool("event-log"); enabled {
		st, err := openStore(cmd, cfg)
		if err != nil {
			logger.Warn("event log unavailable, requests will not be recorded", zap.Error(err))
		} else {
			defer st.Close()
			eventRepo = st.EventRepo()
		}
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM, eventRepo, logger.Named("llm"))
	if err != nil {
		return err
	}

	catalog := subject.Default()
	if cfg.CatalogPath != "" {
		if catalog, err = subject.Load(cfg.CatalogPath); err != nil {
			return err
		}
	}

	fetcher := media.NewFetcher(cfg.Fetch)
	images, err := imageStore(ctx, cfg, fetcher)
	if err != nil {
		return err
	}

	svc := grading.NewService(grading.Deps{
		Provider: provider,
		Catalog:  catalog,
		Fetcher:  fetcher,
		Images:   images,
		Logger:   logger.Named("grading"),
	}, cfg.Grading)

	logger.Info("starting",
		zap.String("version", server.NormalizeVersion(version)),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.ModelName()),
		zap.Strings("subjects", catalog.Keys()),
	)

	srv := server.New(svc, server.Options{
		HTTP:     cfg.HTTP,
		Provider: cfg.LLM.Provider,
		Version:  version,
		Logger:   logger.Named("http"),
	})
	return srv.Serve(ctx)
}

// imageStore re-hosts images in S3 when a bucket is configured. Otherwise
// images pass through, downloaded only for providers that need the bytes.
func imageStore(ctx context.Context, cfg config.Config, fetcher *media.Fetcher) (media.ImageStore, error) {
	if cfg.S3.Bucket != "" {
		s3, err := media.NewS3Store(ctx, cfg.S3, fetcher)
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	return media.PassthroughStore{Fetcher: fetcher, Inline: cfg.LLM.Provider == "gemini"}, nil
}
