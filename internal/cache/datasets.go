// Package cache keeps the dataset configuration and the loaded datasets in
// memory. The configuration file is re-read periodically and its SHA-256
// digest is the key of the loaded datasets, so datasets are only reloaded
// when the file content changes or the dataset cache expires.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/aaronlmathis/timesplit/internal/datasets"
	"github.com/aaronlmathis/timesplit/internal/display"
	"github.com/aaronlmathis/timesplit/internal/logging"
	"github.com/aaronlmathis/timesplit/internal/metrics"
)

// ExitCodeRequireDatasets is the process exit code used when datasets are
// required but the configuration cannot be loaded.
const ExitCodeRequireDatasets = 52

// Workers is the number of datasets loaded concurrently.
const Workers = 2

// Topic and message type of reload events.
const (
	ReloadTopic = "datasets"
	ReloadEvent = "reload"
)

const configsKey = "configs"

// FatalConfigError is returned when the configuration cannot be loaded and
// datasets are required.
type FatalConfigError struct {
	Path string
	Err  error
}

func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("failed to load dataset config path=%q; refusing to start since REQUIRE_DATASETS=true: %v", e.Path, e.Err)
}

func (e *FatalConfigError) Unwrap() error {
	return e.Err
}

// Publisher receives reload events.
type Publisher interface {
	Broadcast(topic, messageType string, data any)
}

// Configs is a loaded configuration file. Configs is nil if the file could
// not be loaded, in which case Err says why.
type Configs struct {
	Path     string
	Digest   datasets.Digest
	Configs  []datasets.DatasetConfig
	LoadedAt time.Time
	Err      error
}

// Datasets are the datasets of one configuration digest.
type Datasets struct {
	Digest   datasets.Digest
	Datasets []*datasets.Dataset
	LoadedAt time.Time
}

// Status describes the cache for debug output.
type Status struct {
	Path             string    `json:"path"`
	Digest           string    `json:"sha256,omitempty"`
	ConfigsLoadedAt  time.Time `json:"configs_loaded_at,omitzero"`
	DatasetsLoadedAt time.Time `json:"datasets_loaded_at,omitzero"`
	Datasets         int       `json:"datasets"`
	Error            string    `json:"error,omitempty"`
}

// Options configure a Cache.
type Options struct {
	Path       string
	Require    bool
	ConfigTTL  time.Duration
	DatasetTTL time.Duration
	Logger     *zap.Logger
	Perf       *logging.PerfLogger
	Publisher  Publisher
	// Exit terminates the process; defaults to os.Exit.
	Exit func(code int)
	// Load reads one dataset; defaults to datasets.LoadDataset.
	Load func(cfg datasets.DatasetConfig) (*datasets.Dataset, error)
}

// Cache is the digest-gated dataset cache.
type Cache struct {
	opts     Options
	logger   *zap.Logger
	configs  *ttlcache.Cache[string, *Configs]
	datasets *ttlcache.Cache[string, *Datasets]
	sfGroup  *singleflight.Group

	mu         sync.Mutex
	lastDigest datasets.Digest
}

// New creates a cache. Call Start to begin evicting expired entries.
func New(opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Perf == nil {
		opts.Perf = logging.NewPerfLogger(nil, false, 0)
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	if opts.Load == nil {
		opts.Load = datasets.LoadDataset
	}

	return &Cache{
		opts:   opts,
		logger: opts.Logger.Named("cache"),
		configs: ttlcache.New[string, *Configs](
			ttlcache.WithTTL[string, *Configs](opts.ConfigTTL),
			ttlcache.WithCapacity[string, *Configs](1),
			ttlcache.WithDisableTouchOnHit[string, *Configs](), // re-read on schedule, however often it is used
		),
		datasets: ttlcache.New[string, *Datasets](
			ttlcache.WithTTL[string, *Datasets](opts.DatasetTTL),
			ttlcache.WithCapacity[string, *Datasets](1),
			ttlcache.WithDisableTouchOnHit[string, *Datasets](),
		),
		sfGroup: &singleflight.Group{},
	}
}

// Start begins evicting expired entries in the background.
func (c *Cache) Start() {
	go c.configs.Start()
	go c.datasets.Start()
}

// Stop stops the eviction started by Start.
func (c *Cache) Stop() {
	c.configs.Stop()
	c.datasets.Stop()
}

// Invalidate drops the configuration so that the next call re-reads it.
func (c *Cache) Invalidate() {
	c.configs.Delete(configsKey)
}

// Configs returns the cached configuration, reading the file when the entry
// has expired. A file that cannot be loaded yields a snapshot without
// configs, or a *FatalConfigError if datasets are required. In the latter
// case the process exits with ExitCodeRequireDatasets.
func (c *Cache) Configs(ctx context.Context) (*Configs, error) {
	v, err, _ := c.sfGroup.Do(configsKey, func() (any, error) {
		if item := c.configs.Get(configsKey); item != nil {
			return item.Value(), nil
		}

		snapshot, err := c.readConfigs()
		if err != nil {
			return nil, err
		}
		c.configs.Set(configsKey, snapshot, ttlcache.DefaultTTL)
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Configs), nil
}

func (c *Cache) readConfigs() (*Configs, error) {
	path := c.opts.Path
	snapshot := &Configs{Path: path, LoadedAt: time.Now().UTC()}

	digest, configs, err := datasets.LoadConfigs(path)
	if err != nil {
		metrics.RecordConfigRead(err, false)
		if c.opts.Require {
			fatal := &FatalConfigError{Path: path, Err: err}
			c.logger.Error("Failed to load dataset config", zap.String("path", path), zap.Error(fatal))
			c.opts.Exit(ExitCodeRequireDatasets)
			return nil, fatal
		}

		c.logger.Warn("Failed to read dataset config; no datasets will be loaded",
			zap.String("path", path), zap.Error(err))
		snapshot.Err = err
		return snapshot, nil
	}

	snapshot.Digest = digest
	snapshot.Configs = configs

	c.mu.Lock()
	changed := c.lastDigest != digest
	c.lastDigest = digest
	c.mu.Unlock()

	metrics.RecordConfigRead(nil, changed)
	if changed {
		labels := make([]string, len(configs))
		for i, cfg := range configs {
			labels[i] = cfg.Label
		}
		c.logger.Info("Dataset config changed",
			zap.String("path", path),
			zap.String("sha256", digest.Prefixed()),
			zap.Strings("labels", labels))
		if c.opts.Publisher != nil {
			c.opts.Publisher.Broadcast(ReloadTopic, ReloadEvent, map[string]any{
				"sha256": digest.Prefixed(),
				"labels": labels,
			})
		}
	}
	return snapshot, nil
}

// Datasets returns the datasets of the current configuration. Datasets are
// reloaded when the configuration digest changes or the entry expires.
func (c *Cache) Datasets(ctx context.Context) (*Datasets, error) {
	cfgs, err := c.Configs(ctx)
	if err != nil {
		return nil, err
	}
	if len(cfgs.Configs) == 0 {
		return &Datasets{Digest: cfgs.Digest}, nil
	}

	key := cfgs.Digest.String()
	v, err, _ := c.sfGroup.Do("datasets:"+key, func() (any, error) {
		if item := c.datasets.Get(key); item != nil {
			return item.Value(), nil
		}

		loaded, err := c.loadDatasets(context.WithoutCancel(ctx), cfgs)
		if err != nil {
			return nil, err
		}
		c.datasets.Set(key, loaded, ttlcache.DefaultTTL)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Datasets), nil
}

// loadDatasets reads every dataset using Workers goroutines. Results are in
// configuration order; the first failure fails the batch.
func (c *Cache) loadDatasets(ctx context.Context, cfgs *Configs) (*Datasets, error) {
	start := time.Now()
	loaded := make([]*datasets.Dataset, len(cfgs.Configs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers)
	for i, cfg := range cfgs.Configs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			t0 := time.Now()
			ds, err := c.opts.Load(cfg)
			if err != nil {
				return err
			}
			loaded[i] = ds

			c.opts.Perf.Log(ctx, zapcore.InfoLevel,
				fmt.Sprintf("Loaded dataset '%s' in %s", cfg.Path, display.FormatDuration(time.Since(t0))),
				time.Since(t0), map[string]logging.Shape{"": shape(ds)},
				zap.String("config.path", cfg.Path),
				zap.String("config.label", cfg.Label),
				zap.Any("config.kwargs", cfg.ReadFunctionKwargs),
			)
			return nil
		})
	}

	err := g.Wait()
	elapsed := time.Since(start)
	metrics.RecordDatasetLoad(len(cfgs.Configs), elapsed, err)
	if err != nil {
		c.logger.Error("Failed to load datasets", zap.String("sha256", cfgs.Digest.Prefixed()), zap.Error(err))
		return nil, err
	}

	frames := make(map[string]logging.Shape, len(loaded))
	for _, ds := range loaded {
		frames[ds.Label] = shape(ds)
	}
	c.opts.Perf.Log(ctx, zapcore.InfoLevel,
		fmt.Sprintf("Loaded %d datasets using %d workers in %s.", len(loaded), Workers, display.FormatDuration(elapsed)),
		elapsed, frames, zap.String("sha256", cfgs.Digest.Prefixed()),
	)

	return &Datasets{Digest: cfgs.Digest, Datasets: loaded, LoadedAt: time.Now().UTC()}, nil
}

func shape(ds *datasets.Dataset) logging.Shape {
	rows, cols := ds.Frame.Shape()
	return logging.Shape{Size: ds.Frame.Size(), Rows: rows, Columns: cols}
}

// Status describes the cached entries.
func (c *Cache) Status() Status {
	status := Status{Path: c.opts.Path}
	if item := c.configs.Get(configsKey); item != nil {
		cfgs := item.Value()
		status.ConfigsLoadedAt = cfgs.LoadedAt
		if cfgs.Err != nil {
			status.Error = cfgs.Err.Error()
		}
		if !cfgs.Digest.IsZero() {
			status.Digest = cfgs.Digest.Prefixed()
			if ds := c.datasets.Get(cfgs.Digest.String()); ds != nil {
				status.DatasetsLoadedAt = ds.Value().LoadedAt
				status.Datasets = len(ds.Value().Datasets)
			}
		}
	}
	return status
}

// IsFatal reports whether err should stop the process.
func IsFatal(err error) bool {
	var fatal *FatalConfigError
	return errors.As(err, &fatal)
}
