package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration. Plotting values are
// treated as hard limits by the server: users may lower them for their own
// session but never raise them.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Plotting   PlottingConfig   `yaml:"plotting"`
	Datasets   DatasetsConfig   `yaml:"datasets"`
	Features   FeaturesConfig   `yaml:"features"`
	Extensions ExtensionsConfig `yaml:"extensions"`
	Uploads    UploadsConfig    `yaml:"uploads"`
}

// ServerConfig represents the server configuration
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	BasePath         string `yaml:"base_path"`
	PermalinkBaseURL string `yaml:"permalink_base_url"`
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	FilePath         string `yaml:"file_path"`
	Configure        bool   `yaml:"configure"`
	PerformanceLevel int    `yaml:"performance_level"`
}

// PlottingConfig represents figure and fold limits
type PlottingConfig struct {
	RawTimeseries       bool `yaml:"raw_timeseries"`
	AggregationsPerFold bool `yaml:"aggregations_per_fold"`
	FigureDPI           int  `yaml:"figure_dpi"`
	MaxSplits           int  `yaml:"max_splits"`
	RawDataSamples      int  `yaml:"raw_data_samples"`
	Configure           bool `yaml:"configure"`
}

// DatasetsConfig represents the bundled dataset configuration
type DatasetsConfig struct {
	ConfigPath     string `yaml:"config_path"`
	Require        bool   `yaml:"require"`
	ConfigCacheTTL int    `yaml:"config_cache_ttl"`
	CacheTTL       int    `yaml:"cache_ttl"`
	RadioLimit     int    `yaml:"radio_limit"`
	Watch          bool   `yaml:"watch"`
}

// FeaturesConfig represents feature toggles
type FeaturesConfig struct {
	DataGenerator      bool `yaml:"data_generator"`
	ProcessQueryParams bool `yaml:"process_query_params"`
	CustomCSS          bool `yaml:"custom_css"`
	DateOnly           bool `yaml:"date_only"`
	Debug              bool `yaml:"debug"`
}

// ExtensionsConfig names registry entries for user-provided implementations
type ExtensionsConfig struct {
	DatasetLoaders []string `yaml:"dataset_loaders"`
	InitialRangeFn string   `yaml:"initial_range_fn"`
	SplitSelectFn  string   `yaml:"split_select_fn"`
	PlotFn         string   `yaml:"plot_fn"`
	LinkFn         string   `yaml:"link_fn"`
}

// UploadsConfig represents the file upload limits
type UploadsConfig struct {
	MaxMB     int `yaml:"max_mb"`
	PerMinute int `yaml:"per_minute"`
}

// Load loads the configuration from environment variables and defaults
func Load() (*Config, error) {
	return loadWithDefaults("")
}

// LoadFromFile loads configuration from a YAML file, with environment variable overrides
func LoadFromFile(configPath string) (*Config, error) {
	return loadWithDefaults(configPath)
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     "0.0.0.0:8501",
			BasePath: "/",
		},
		Logging: LoggingConfig{
			Level:            "info",
			Format:           "json",
			Configure:        true,
			PerformanceLevel: 20,
		},
		Plotting: PlottingConfig{
			RawTimeseries:       true,
			AggregationsPerFold: true,
			FigureDPI:           200,
			MaxSplits:           100,
			RawDataSamples:      1000,
			Configure:           true,
		},
		Datasets: DatasetsConfig{
			ConfigPath:     "datasets.toml",
			ConfigCacheTTL: 30,
			CacheTTL:       12 * 60 * 60,
			RadioLimit:     3,
			Watch:          true,
		},
		Features: FeaturesConfig{
			DataGenerator:      true,
			ProcessQueryParams: true,
			CustomCSS:          true,
			DateOnly:           true,
		},
		Uploads: UploadsConfig{
			MaxMB:     200,
			PerMinute: 10,
		},
	}
}

// loadWithDefaults loads configuration with defaults, optionally from a file
func loadWithDefaults(configPath string) (*Config, error) {
	cfg := defaults()

	// File values replace defaults; keys missing from the file keep them.
	if configPath != "" {
		if err := loadFromYAMLFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	}

	// Environment variables take precedence over file values
	for _, s := range settings() {
		s.fromEnv(cfg)
	}

	// Override port if PORT env var is set
	if port := getEnv("PORT", ""); port != "" {
		host := "0.0.0.0"
		if i := strings.LastIndex(cfg.Server.Addr, ":"); i > 0 {
			host = cfg.Server.Addr[:i]
		}
		cfg.Server.Addr = host + ":" + port
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return splitList(value)
	}
	return defaultValue
}

func splitList(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// loadFromYAMLFile decodes a YAML file on top of cfg
func loadFromYAMLFile(configPath string, cfg *Config) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}
	if c.Logging.PerformanceLevel < 0 || c.Logging.PerformanceLevel > 50 {
		return fmt.Errorf("PERFORMANCE_LOG_LEVEL must be between 0 and 50, got %d", c.Logging.PerformanceLevel)
	}
	if c.Plotting.FigureDPI < 1 {
		return fmt.Errorf("FIGURE_DPI must be positive, got %d", c.Plotting.FigureDPI)
	}
	if c.Plotting.MaxSplits < 1 {
		return fmt.Errorf("MAX_SPLITS must be positive, got %d", c.Plotting.MaxSplits)
	}
	if c.Plotting.RawDataSamples < 1 {
		return fmt.Errorf("RAW_DATA_SAMPLES must be positive, got %d", c.Plotting.RawDataSamples)
	}
	if c.Datasets.ConfigCacheTTL < 1 {
		return fmt.Errorf("DATASET_CONFIG_CACHE_TTL must be positive, got %d", c.Datasets.ConfigCacheTTL)
	}
	if c.Datasets.CacheTTL < 1 {
		return fmt.Errorf("DATASET_CACHE_TTL must be positive, got %d", c.Datasets.CacheTTL)
	}
	if c.Datasets.RadioLimit < 0 {
		return fmt.Errorf("DATASET_RADIO_LIMIT cannot be negative, got %d", c.Datasets.RadioLimit)
	}
	if c.Uploads.MaxMB < 0 {
		return fmt.Errorf("UPLOAD_MAX_MB cannot be negative, got %d", c.Uploads.MaxMB)
	}
	if c.Uploads.PerMinute < 1 {
		return fmt.Errorf("UPLOADS_PER_MINUTE must be positive, got %d", c.Uploads.PerMinute)
	}
	if strings.Contains(c.Datasets.ConfigPath, "://") {
		return fmt.Errorf("DATASETS_CONFIG_PATH must be a local path, got %q", c.Datasets.ConfigPath)
	}
	return nil
}

// ServerConfigInfo describes the read-only server limits as a markdown list.
func (c *Config) ServerConfigInfo() string {
	var b strings.Builder
	for _, f := range c.HardLimits().Fields() {
		fmt.Fprintf(&b, "* `%s=%s`: %s\n", f.Key, f.Format(), f.Description)
	}
	return b.String()
}
