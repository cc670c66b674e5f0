package api

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aaronlmathis/timesplit/internal/cache"
	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/dashboard"
	mw "github.com/aaronlmathis/timesplit/internal/middleware"
	"github.com/aaronlmathis/timesplit/internal/version"
	"github.com/aaronlmathis/timesplit/internal/ws"
)

// Options configure a Server.
type Options struct {
	Config *config.Config
	// Limits are the starting session limits, at most the hard limits.
	Limits    config.Limits
	Dashboard *dashboard.Dashboard
	// Cache is optional; without it no bundled datasets are listed.
	Cache   *cache.Cache
	Uploads *dashboard.Uploads
	Hub     *ws.Hub
	Logger  *zap.Logger
}

// Server represents the dashboard HTTP server
type Server struct {
	logger    *zap.Logger
	config    *config.Config
	router    chi.Router
	wsHub     *ws.Hub
	dashboard *dashboard.Dashboard
	datasets  *cache.Cache
	uploads   *dashboard.Uploads
	limits    config.Limits
	pages     map[string]*template.Template

	uploadLimiter *mw.RateLimiter
	etag          *mw.ETagMiddleware
}

// NewServer creates a new server
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Hub == nil {
		opts.Hub = ws.NewHub(opts.Logger)
	}
	if opts.Uploads == nil {
		opts.Uploads = dashboard.NewUploads(time.Hour, dashboard.UploadLimit(opts.Config.Uploads.MaxMB))
	}
	if opts.Limits == (config.Limits{}) {
		opts.Limits = opts.Config.HardLimits()
	}
	if opts.Dashboard == nil {
		var source dashboard.DatasetSource
		if opts.Cache != nil {
			source = opts.Cache
		}
		opts.Dashboard = dashboard.New(dashboard.Options{
			Config:   opts.Config,
			Datasets: source,
			Uploads:  opts.Uploads,
			Logger:   opts.Logger,
		})
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:        opts.Logger.Named("api"),
		config:        opts.Config,
		router:        chi.NewRouter(),
		wsHub:         opts.Hub,
		dashboard:     opts.Dashboard,
		datasets:      opts.Cache,
		uploads:       opts.Uploads,
		limits:        opts.Limits,
		pages:         pages,
		uploadLimiter: mw.NewRateLimiter(opts.Logger, opts.Config.Uploads.PerMinute, opts.Config.Uploads.PerMinute),
		etag:          mw.NewETagMiddleware(opts.Logger, 60),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Start starts the server components. They run until ctx is done or Stop
// is called.
func (s *Server) Start(ctx context.Context) error {
	go s.wsHub.Run()
	go s.uploads.Start()
	if s.datasets != nil {
		s.datasets.Start()
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.uploadLimiter.Cleanup(10 * time.Minute); n > 0 {
					s.logger.Debug("Dropped idle upload limiters", zap.Int("count", n))
				}
			}
		}
	}()

	return nil
}

// Stop stops the server components
func (s *Server) Stop() {
	s.logger.Info("Stopping server components")

	if s.datasets != nil {
		s.datasets.Stop()
	}
	s.uploads.Stop()
	if s.wsHub != nil {
		s.wsHub.Stop()
	}
}

// Handler returns the HTTP handler, mounted below the configured base path.
func (s *Server) Handler() http.Handler {
	if base := strings.TrimSuffix(s.config.Server.BasePath, "/"); base != "" {
		return http.StripPrefix(base, s.router)
	}
	return s.router
}

// basePath is the configured base path with a trailing slash.
func (s *Server) basePath() string {
	base := strings.TrimSuffix(s.config.Server.BasePath, "/")
	return base + "/"
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.RequestIDResponseMiddleware)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(mw.PrometheusMiddleware)
	s.router.Use(mw.SecureHeaders)
}

func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	// Version endpoint
	s.router.Get("/version", s.handleVersion)
	s.router.Handle("/metrics", promhttp.Handler())

	// Dashboard pages
	s.router.Get("/", s.handleIndex)
	s.router.Post("/", s.handleSubmit)
	s.router.Post("/tweaks", s.handleTweaks)
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS()))))

	s.router.Group(func(r chi.Router) {
		r.Use(s.uploadLimiter.Middleware)
		r.Post("/upload", s.handleUpload)
	})
	s.router.Get("/uploads/{id}", s.handleGetUpload)

	// Figures are content addressed
	s.router.Group(func(r chi.Router) {
		r.Use(s.etag.Middleware)
		r.Get("/figures/folds.png", s.handleFoldsFigure)
		r.Get("/figures/raw.png", s.handleRawFigure)
		r.Get("/figures/aggregations/{file}", s.handleAggregationFigure)
	})

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoints bypass the buffering ETag middleware
		r.Get("/stream/datasets", s.handleDatasetsWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.etag.Middleware)

			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{
					"message": "Time Split API v1",
					"status":  "ready",
				})
			})
			r.Get("/datasets", s.handleListDatasets)
			r.Get("/splits", s.handleSplits)
			r.Get("/aggregations", s.handleAggregations)
			r.Get("/limits", s.handleLimits)
			r.Get("/config", s.handleConfig)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.datasets != nil {
		if _, err := s.datasets.Datasets(r.Context()); cache.IsFatal(err) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
