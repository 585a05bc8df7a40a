package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Sternrassler/adform-stats-client/internal/config"
	"github.com/Sternrassler/adform-stats-client/internal/output"
	"github.com/Sternrassler/adform-stats-client/pkg/client"
	"github.com/Sternrassler/adform-stats-client/pkg/logging"
	"github.com/Sternrassler/adform-stats-client/pkg/metrics"
	"github.com/Sternrassler/adform-stats-client/pkg/pagination"
	"github.com/Sternrassler/adform-stats-client/pkg/tokencache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newExtractCommand(global *globalOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run the configured report extraction",
		Long: `Run the report extraction described by the config file.

The report is fetched page by page (100000 rows per page by default). Each
page is appended to output.directory/output.result_file_name as soon as it
arrives; a <result_file_name>.manifest file is written at the end.

Authentication uses the client-credentials grant when api.client_id and
api.client_secret are set, otherwise api.access_token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), configPath, *global)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")

	return cmd
}

// runExtract executes one extraction.
func runExtract(ctx context.Context, configPath string, global globalOptions) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if global.logLevel != "" {
		cfg.Logging.Level = global.logLevel
	}
	if global.prettyLogs {
		cfg.Logging.Pretty = true
	}
	if global.metricsAddr != "" {
		cfg.Metrics.Addr = global.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger(logging.ComponentExtractor)

	req, err := cfg.BuildRequest(time.Now())
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		stopMetrics := serveMetrics(cfg.Metrics.Addr, logger)
		defer stopMetrics()
	}

	clientCfg := cfg.ClientConfig()
	if cfg.Redis.URL != "" {
		store, closeStore, err := openTokenCache(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("Token cache unavailable, continuing without it")
		} else {
			defer closeStore()
			clientCfg.TokenCache = store
		}
	}

	adformClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer adformClient.Close()

	if cfg.UsesClientCredentials() {
		if err := adformClient.Login(ctx, cfg.ClientCredentials()); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	writer := output.NewCSVWriter(cfg.ResultPath())

	logger.Info().
		Str("from", req.Filter.Date.From).
		Str("to", req.Filter.Date.To).
		Strs("dimensions", req.Dimensions).
		Int("metrics", len(req.Metrics)).
		Str("result", writer.Path()).
		Msg("Starting extraction")

	fetcher := pagination.NewClientFetcher(adformClient, cfg.PollerConfig(), cfg.FetcherConfig())
	for page, err := range fetcher.FetchAll(ctx, req) {
		if err != nil {
			return err
		}
		if err := writer.WritePage(page); err != nil {
			return fmt.Errorf("store page at offset %d: %w", page.Offset, err)
		}
	}

	manifest := output.Manifest{PrimaryKey: cfg.Report.Dimensions, Incremental: cfg.Output.Incremental}
	if err := output.WriteManifest(writer.Path(), manifest); err != nil {
		return err
	}

	logger.Info().
		Int("rows", writer.Rows()).
		Str("result", writer.Path()).
		Msg("Extraction finished successfully")

	return nil
}

// openTokenCache connects to Redis and returns the token store.
func openTokenCache(ctx context.Context, redisURL string) (*tokencache.Manager, func(), error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}

	redisClient := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	return tokencache.NewManager(redisClient), func() { redisClient.Close() }, nil
}

// serveMetrics starts the metrics endpoint and returns its shutdown func.
func serveMetrics(addr string, logger zerolog.Logger) func() {
	srv := metrics.NewServer(addr)

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("Metrics server shutdown")
		}
	}
}
