package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Option describes a single environment setting and its current value.
type Option struct {
	Name        string
	Type        string
	Value       string
	Description string
}

type setting struct {
	name        string
	description string
	bind        func(c *Config) any
}

// fromEnv overwrites the bound field when the variable is set.
func (s setting) fromEnv(c *Config) {
	switch p := s.bind(c).(type) {
	case *bool:
		*p = getEnvBool(s.name, *p)
	case *int:
		*p = getEnvInt(s.name, *p)
	case *string:
		*p = getEnv(s.name, *p)
	case *[]string:
		*p = getEnvStringSlice(s.name, *p)
	}
}

func (s setting) option(c *Config) Option {
	opt := Option{Name: s.name, Description: s.description}
	switch p := s.bind(c).(type) {
	case *bool:
		opt.Type, opt.Value = "bool", strconv.FormatBool(*p)
	case *int:
		opt.Type, opt.Value = "int", strconv.Itoa(*p)
	case *string:
		opt.Type = "str"
		if *p == "" {
			opt.Value = "<not set>"
		} else {
			opt.Value = strconv.Quote(*p)
		}
	case *[]string:
		opt.Type = "list[str]"
		if len(*p) == 0 {
			opt.Value = "<not set>"
		} else {
			opt.Value = fmt.Sprintf("%q", *p)
		}
	}
	return opt
}

func settings() []setting {
	return []setting{
		{"PLOT_RAW_TIMESERIES", "Enable plot in the `Show raw data` tab.",
			func(c *Config) any { return &c.Plotting.RawTimeseries }},
		{"PLOT_AGGREGATIONS_PER_FOLD", "Enable plots in the `Aggregations per fold` tab.",
			func(c *Config) any { return &c.Plotting.AggregationsPerFold }},
		{"FIGURE_DPI", "Controls figure fidelity. Higher values look better, but are slower to draw.",
			func(c *Config) any { return &c.Plotting.FigureDPI }},
		{"MAX_SPLITS", "Upper fold count limit. Prevents figures from getting too large.",
			func(c *Config) any { return &c.Plotting.MaxSplits }},
		{"RAW_DATA_SAMPLES", "Maximum number of rows to display and plot in the `Show raw data` tab.",
			func(c *Config) any { return &c.Plotting.RawDataSamples }},
		{"DATASETS_CONFIG_PATH", "Dataset configuration TOML path. Disable the dataset view if not found.",
			func(c *Config) any { return &c.Datasets.ConfigPath }},
		{"REQUIRE_DATASETS", "If set, refuse to start if the DATASETS_CONFIG_PATH file cannot be read or is invalid.",
			func(c *Config) any { return &c.Datasets.Require }},
		{"DATASET_CONFIG_CACHE_TTL", "Frequency with which the DATASETS_CONFIG_PATH is read, in seconds.",
			func(c *Config) any { return &c.Datasets.ConfigCacheTTL }},
		{"DATASET_CACHE_TTL", "Dataset cache timeout in seconds. Default is twelve hours.",
			func(c *Config) any { return &c.Datasets.CacheTTL }},
		{"DATASET_RADIO_LIMIT", "Maximum number of dataset options to show as radio buttons. Set to zero to always use a dropdown menu.",
			func(c *Config) any { return &c.Datasets.RadioLimit }},
		{"WATCH_DATASETS_CONFIG", "Re-read DATASETS_CONFIG_PATH as soon as the file changes.",
			func(c *Config) any { return &c.Datasets.Watch }},
		{"ENABLE_DATA_GENERATOR", "Set to false to disable the built-in dataset generator.",
			func(c *Config) any { return &c.Features.DataGenerator }},
		{"DATA_GENERATOR_INITIAL_RANGE_FN", "Registry name of the initial range function for generated data.",
			func(c *Config) any { return &c.Extensions.InitialRangeFn }},
		{"PROCESS_QUERY_PARAMS", "Abort if URL parameters are given when false.",
			func(c *Config) any { return &c.Features.ProcessQueryParams }},
		{"PERMALINK_BASE_URL", "Public base address for the application. Used to create permalinks.",
			func(c *Config) any { return &c.Server.PermalinkBaseURL }},
		{"USE_CUSTOM_CSS", "Disable to use the default page styling.",
			func(c *Config) any { return &c.Features.CustomCSS }},
		{"CONFIGURE_PLOTTING", "Set to false to disable the default plotting style setup.",
			func(c *Config) any { return &c.Plotting.Configure }},
		{"CONFIGURE_LOGGING", "Set to false to disable the performance log channel.",
			func(c *Config) any { return &c.Logging.Configure }},
		{"PERFORMANCE_LOG_LEVEL", "Level for the performance logger. Default is INFO=20.",
			func(c *Config) any { return &c.Logging.PerformanceLevel }},
		{"DATE_ONLY", "If true, use date-only inputs wherever possible.",
			func(c *Config) any { return &c.Features.DateOnly }},
		{"DATASET_LOADER", "Registry names of custom dataset loaders, comma-separated.",
			func(c *Config) any { return &c.Extensions.DatasetLoaders }},
		{"SPLIT_SELECT_FN", "Registry name of a custom splitting parameters selection function.",
			func(c *Config) any { return &c.Extensions.SplitSelectFn }},
		{"PLOT_FN", "Registry name of a custom fold plotting function.",
			func(c *Config) any { return &c.Extensions.PlotFn }},
		{"LINK_FN", "Registry name of a custom permalink function.",
			func(c *Config) any { return &c.Extensions.LinkFn }},
		{"DEBUG", "Enable to show debug information in the UI.",
			func(c *Config) any { return &c.Features.Debug }},
		{"UPLOAD_MAX_MB", "Maximum upload size in megabytes. Set to zero to disable uploads.",
			func(c *Config) any { return &c.Uploads.MaxMB }},
		{"UPLOADS_PER_MINUTE", "Maximum number of uploads per client and minute.",
			func(c *Config) any { return &c.Uploads.PerMinute }},
		{"LOG_LEVEL", "Server log level (debug, info, warn, error).",
			func(c *Config) any { return &c.Logging.Level }},
		{"LOG_FORMAT", "Server log encoding (json or console).",
			func(c *Config) any { return &c.Logging.Format }},
		{"LOG_FILE", "Additional log output file.",
			func(c *Config) any { return &c.Logging.FilePath }},
		{"TIMESPLIT_SERVER_ADDR", "Listen address.",
			func(c *Config) any { return &c.Server.Addr }},
		{"TIMESPLIT_BASE_PATH", "Path prefix the dashboard is served under.",
			func(c *Config) any { return &c.Server.BasePath }},
	}
}

// Options returns every setting with its current value, in declaration
// order unless sorted is set.
func (c *Config) Options(sorted bool) []Option {
	all := settings()
	options := make([]Option, 0, len(all))
	for _, s := range all {
		options = append(options, s.option(c))
	}
	if sorted {
		sort.Slice(options, func(i, j int) bool { return options[i].Name < options[j].Name })
	}
	return options
}

// Describe returns the description of a setting, or an empty string.
func Describe(name string) string {
	name = strings.ToUpper(name)
	for _, s := range settings() {
		if s.name == name {
			return s.description
		}
	}
	return ""
}
