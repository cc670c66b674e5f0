package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ExitCodeLimit is the process exit code used when a limit is exceeded.
const ExitCodeLimit = 51

// Limit keys
const (
	KeyFigureDPI               = "FIGURE_DPI"
	KeyMaxSplits               = "MAX_SPLITS"
	KeyPlotAggregationsPerFold = "PLOT_AGGREGATIONS_PER_FOLD"
	KeyPlotRawTimeseries       = "PLOT_RAW_TIMESERIES"
)

// Limits are the values users may tweak for their own session.
type Limits struct {
	FigureDPI               int  `json:"FIGURE_DPI"`
	MaxSplits               int  `json:"MAX_SPLITS"`
	PlotAggregationsPerFold bool `json:"PLOT_AGGREGATIONS_PER_FOLD"`
	PlotRawTimeseries       bool `json:"PLOT_RAW_TIMESERIES"`
}

// LimitField is a single tweakable value.
type LimitField struct {
	Key         string
	Bool        bool
	Value       int
	Description string
}

// Format renders the value the way it is configured.
func (f LimitField) Format() string {
	if f.Bool {
		return strconv.FormatBool(f.Value != 0)
	}
	return strconv.Itoa(f.Value)
}

// Min is the smallest value a user may select.
func (f LimitField) Min() int {
	if f.Bool {
		return 0
	}
	return 1
}

// LimitError reports a value above the server limit.
type LimitError struct {
	Key   string
	Value int
	Max   int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("illegal config value=%d > max_value=%d for key=%q", e.Value, e.Max, e.Key)
}

// HardLimits returns the configured values, which no session may exceed.
func (c *Config) HardLimits() Limits {
	return Limits{
		FigureDPI:               c.Plotting.FigureDPI,
		MaxSplits:               c.Plotting.MaxSplits,
		PlotAggregationsPerFold: c.Plotting.AggregationsPerFold,
		PlotRawTimeseries:       c.Plotting.RawTimeseries,
	}
}

// Fields lists the limits sorted by key.
func (l Limits) Fields() []LimitField {
	return []LimitField{
		{Key: KeyFigureDPI, Value: l.FigureDPI, Description: Describe(KeyFigureDPI)},
		{Key: KeyMaxSplits, Value: l.MaxSplits, Description: Describe(KeyMaxSplits)},
		{Key: KeyPlotAggregationsPerFold, Bool: true, Value: btoi(l.PlotAggregationsPerFold), Description: Describe(KeyPlotAggregationsPerFold)},
		{Key: KeyPlotRawTimeseries, Bool: true, Value: btoi(l.PlotRawTimeseries), Description: Describe(KeyPlotRawTimeseries)},
	}
}

// With returns a copy of l with key set to value.
func (l Limits) With(key string, value int) (Limits, error) {
	switch key {
	case KeyFigureDPI:
		l.FigureDPI = value
	case KeyMaxSplits:
		l.MaxSplits = value
	case KeyPlotAggregationsPerFold:
		l.PlotAggregationsPerFold = value != 0
	case KeyPlotRawTimeseries:
		l.PlotRawTimeseries = value != 0
	default:
		return l, fmt.Errorf("unknown limit key %q", key)
	}
	return l, nil
}

// Check verifies that every value of requested is within [min, hard].
func (l Limits) Check(requested Limits) error {
	hard := l.Fields()
	for i, f := range requested.Fields() {
		if f.Value > hard[i].Value {
			return &LimitError{Key: f.Key, Value: f.Value, Max: hard[i].Value}
		}
		if f.Value < f.Min() {
			return fmt.Errorf("value=%d for key=%q is below the minimum %d", f.Value, f.Key, f.Min())
		}
	}
	return nil
}

// Lowered reports which keys of l are below the hard limits.
func (l Limits) Lowered(hard Limits) map[string]bool {
	lowered := make(map[string]bool)
	h := hard.Fields()
	for i, f := range l.Fields() {
		if f.Value < h[i].Value {
			lowered[f.Key] = true
		}
	}
	return lowered
}

// DefaultLimits applies DEFAULT_<KEY> environment variables on top of the
// hard limits. Boolean defaults are true unless the value is "false".
func DefaultLimits(hard Limits) (Limits, []string, error) {
	return defaultLimits(hard, os.LookupEnv)
}

func defaultLimits(hard Limits, lookup func(string) (string, bool)) (Limits, []string, error) {
	current := hard
	var updated []string
	for _, f := range hard.Fields() {
		raw, _ := lookup("DEFAULT_" + f.Key)
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		var value int
		if f.Bool {
			value = btoi(strings.ToLower(raw) != "false")
		} else {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return hard, nil, fmt.Errorf("bad value DEFAULT_%s=%q: %w", f.Key, raw, err)
			}
			value = v
		}

		if value > f.Value {
			return hard, nil, &LimitError{Key: f.Key, Value: value, Max: f.Value}
		}

		next, err := current.With(f.Key, value)
		if err != nil {
			return hard, nil, err
		}
		current = next
		updated = append(updated, f.Key)
	}
	return current, updated, nil
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
