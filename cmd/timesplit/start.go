package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aaronlmathis/timesplit/internal/api"
	"github.com/aaronlmathis/timesplit/internal/cache"
	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/dashboard"
	"github.com/aaronlmathis/timesplit/internal/logging"
	"github.com/aaronlmathis/timesplit/internal/plugins"
	"github.com/aaronlmathis/timesplit/internal/version"
	"github.com/aaronlmathis/timesplit/internal/ws"
)

const shutdownTimeout = 30 * time.Second

func start(ctx context.Context, args []string, out *console) error {
	var opts struct {
		Port    int    `conf:"default:8501,help:Bind port."`
		Address string `conf:"default:localhost,help:Bind address."`
		Config  string `conf:"help:YAML server settings file. Environment variables take precedence."`
	}
	if ok, err := parseArgs(args, out, &opts); !ok {
		return err
	}

	out.Success("timesplit start --port=%d --address=%s", opts.Port, opts.Address)
	if os.Getenv("PERMALINK_BASE_URL") == "" {
		base := "http://" + net.JoinHostPort(opts.Address, strconv.Itoa(opts.Port)) + "/"
		if err := os.Setenv("PERMALINK_BASE_URL", base); err != nil {
			return err
		}
	}

	// Load configuration
	var cfg *config.Config
	var err error
	if opts.Config != "" {
		cfg, err = config.LoadFromFile(opts.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Server.Addr = net.JoinHostPort(opts.Address, strconv.Itoa(opts.Port))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.FilePath)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	info := version.Get()
	logger.Info("Starting timesplit",
		zap.String("version", info.Version),
		zap.String("gitCommit", info.GitCommit),
		zap.String("buildDate", info.BuildDate),
		zap.String("goVersion", info.GoVersion),
		zap.String("addr", cfg.Server.Addr),
	)

	limits, updated, err := config.DefaultLimits(cfg.HardLimits())
	if err != nil {
		var le *config.LimitError
		if errors.As(err, &le) {
			logger.Error("Default limit exceeds the server limit",
				zap.String("key", le.Key), zap.Int("value", le.Value), zap.Int("max", le.Max))
			return &exitCodeError{code: config.ExitCodeLimit, err: err}
		}
		return err
	}
	if len(updated) > 0 {
		logger.Info("Applied default session limits", zap.Strings("keys", updated))
	}

	ext, err := plugins.Default.Resolve(cfg.Extensions)
	if err != nil {
		return err
	}

	perf := logging.NewPerfLogger(logger, cfg.Logging.Configure, cfg.Logging.PerformanceLevel)
	hub := ws.NewHub(logger)
	datasets := cache.New(cache.Options{
		Path:       cfg.Datasets.ConfigPath,
		Require:    cfg.Datasets.Require,
		ConfigTTL:  time.Duration(cfg.Datasets.ConfigCacheTTL) * time.Second,
		DatasetTTL: time.Duration(cfg.Datasets.CacheTTL) * time.Second,
		Logger:     logger,
		Perf:       perf,
		Publisher:  hub,
		Exit: func(code int) {
			_ = logger.Sync()
			os.Exit(code)
		},
	})
	frames := cache.NewFrames(time.Duration(cfg.Datasets.CacheTTL)*time.Second, plugins.GenerateSampleData)
	uploads := dashboard.NewUploads(time.Hour, dashboard.UploadLimit(cfg.Uploads.MaxMB))
	dash := dashboard.New(dashboard.Options{
		Config:     cfg,
		Datasets:   datasets,
		Sample:     plugins.NewSampleData(frames.Get, ext.RangeFn),
		Extensions: ext,
		Uploads:    uploads,
		Logger:     logger,
		Perf:       perf,
	})

	// Create API server
	apiServer, err := api.NewServer(api.Options{
		Config:    cfg,
		Limits:    limits,
		Dashboard: dash,
		Cache:     datasets,
		Uploads:   uploads,
		Hub:       hub,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server components: %w", err)
	}
	defer apiServer.Stop()

	// Read the datasets up front so that REQUIRE_DATASETS fails before
	// the server accepts requests.
	if _, err := datasets.Datasets(ctx); err != nil {
		logger.Warn("Bundled datasets unavailable", zap.Error(err))
	}
	if cfg.Datasets.Watch {
		go func() {
			if err := datasets.Watch(ctx); err != nil {
				logger.Warn("Not watching dataset config", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", cfg.Server.Addr), zap.String("url", os.Getenv("PERMALINK_BASE_URL")))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}
