package plugins

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/aaronlmathis/timesplit/internal/charts"
	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/permalink"
	"github.com/aaronlmathis/timesplit/internal/split"
)

// LoaderFactory creates a DataLoader.
type LoaderFactory func() (DataLoader, error)

// SelectFn replaces the splitting parameter form. It receives the submitted
// form values.
type SelectFn func(form url.Values) (split.Kwargs, error)

// RangeFn returns the initial range of the data generator.
type RangeFn func(now time.Time) (time.Time, time.Time)

// Registry maps names to extensions. Registering a name twice panics.
type Registry struct {
	mu        sync.RWMutex
	loaders   map[string]LoaderFactory
	selectFns map[string]SelectFn
	plotFns   map[string]charts.FoldsFunc
	linkFns   map[string]permalink.LinkFn
	rangeFns  map[string]RangeFn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		loaders:   make(map[string]LoaderFactory),
		selectFns: make(map[string]SelectFn),
		plotFns:   make(map[string]charts.FoldsFunc),
		linkFns:   make(map[string]permalink.LinkFn),
		rangeFns:  make(map[string]RangeFn),
	}
}

func register[T any](r *Registry, m map[string]T, kind, name string, v T, isNil bool) {
	if isNil {
		panic(fmt.Sprintf("plugins: Register %s %q is nil", kind, name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := m[name]; dup {
		panic(fmt.Sprintf("plugins: Register called twice for %s %q", kind, name))
	}
	m[name] = v
}

// RegisterLoader makes a loader factory available by name.
func (r *Registry) RegisterLoader(name string, f LoaderFactory) {
	register(r, r.loaders, "loader", name, f, f == nil)
}

// RegisterSelectFn makes a parameter selector available by name.
func (r *Registry) RegisterSelectFn(name string, f SelectFn) {
	register(r, r.selectFns, "select function", name, f, f == nil)
}

// RegisterPlotFn makes a fold figure function available by name.
func (r *Registry) RegisterPlotFn(name string, f charts.FoldsFunc) {
	register(r, r.plotFns, "plot function", name, f, f == nil)
}

// RegisterLinkFn makes a permalink function available by name.
func (r *Registry) RegisterLinkFn(name string, f permalink.LinkFn) {
	register(r, r.linkFns, "link function", name, f, f == nil)
}

// RegisterRangeFn makes an initial range function available by name.
func (r *Registry) RegisterRangeFn(name string, f RangeFn) {
	register(r, r.rangeFns, "range function", name, f, f == nil)
}

// Names lists the registered names per setting.
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string][]string{
		"DATASET_LOADER":                  sortedKeys(r.loaders),
		"SPLIT_SELECT_FN":                 sortedKeys(r.selectFns),
		"PLOT_FN":                         sortedKeys(r.plotFns),
		"LINK_FN":                         sortedKeys(r.linkFns),
		"DATA_GENERATOR_INITIAL_RANGE_FN": sortedKeys(r.rangeFns),
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Extensions are the implementations selected by the configuration. Unset
// functions fall back to the built-in ones.
type Extensions struct {
	Loaders  []*Loader
	SelectFn SelectFn
	PlotFn   charts.FoldsFunc
	LinkFn   permalink.LinkFn
	RangeFn  RangeFn
}

// Defaults returns the built-in implementations.
func Defaults() *Extensions {
	return &Extensions{
		PlotFn:  charts.Folds,
		LinkFn:  permalink.CreateExplorerLink,
		RangeFn: DefaultRange,
	}
}

// Resolve looks up every name in cfg. Unknown names are errors naming the
// setting.
func (r *Registry) Resolve(cfg config.ExtensionsConfig) (*Extensions, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext := Defaults()
	seen := make(map[string]bool)
	for _, name := range cfg.DatasetLoaders {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		factory, err := lookup(r.loaders, "DATASET_LOADER", name)
		if err != nil {
			return nil, err
		}
		dl, err := factory()
		if err != nil {
			return nil, fmt.Errorf("bad DATASET_LOADER=%q: %w", name, err)
		}
		loader, err := NewLoader(name, dl)
		if err != nil {
			return nil, fmt.Errorf("bad DATASET_LOADER=%q: %w", name, err)
		}
		ext.Loaders = append(ext.Loaders, loader)
	}

	var err error
	if cfg.SplitSelectFn != "" {
		if ext.SelectFn, err = lookup(r.selectFns, "SPLIT_SELECT_FN", cfg.SplitSelectFn); err != nil {
			return nil, err
		}
	}
	if cfg.PlotFn != "" {
		if ext.PlotFn, err = lookup(r.plotFns, "PLOT_FN", cfg.PlotFn); err != nil {
			return nil, err
		}
	}
	if cfg.LinkFn != "" {
		if ext.LinkFn, err = lookup(r.linkFns, "LINK_FN", cfg.LinkFn); err != nil {
			return nil, err
		}
	}
	if cfg.InitialRangeFn != "" {
		if ext.RangeFn, err = lookup(r.rangeFns, "DATA_GENERATOR_INITIAL_RANGE_FN", cfg.InitialRangeFn); err != nil {
			return nil, err
		}
	}
	return ext, nil
}

func lookup[T any](m map[string]T, setting, name string) (T, error) {
	v, ok := m[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("bad %s=%q: nothing registered under that name; registered=%v", setting, name, sortedKeys(m))
	}
	return v, nil
}

// Default is the registry used by the Register functions.
var Default = NewRegistry()

// RegisterLoader registers a loader factory in the Default registry.
func RegisterLoader(name string, f LoaderFactory) { Default.RegisterLoader(name, f) }

// RegisterSelectFn registers a parameter selector in the Default registry.
func RegisterSelectFn(name string, f SelectFn) { Default.RegisterSelectFn(name, f) }

// RegisterPlotFn registers a fold figure function in the Default registry.
func RegisterPlotFn(name string, f charts.FoldsFunc) { Default.RegisterPlotFn(name, f) }

// RegisterLinkFn registers a permalink function in the Default registry.
func RegisterLinkFn(name string, f permalink.LinkFn) { Default.RegisterLinkFn(name, f) }

// RegisterRangeFn registers an initial range function in the Default registry.
func RegisterRangeFn(name string, f RangeFn) { Default.RegisterRangeFn(name, f) }
