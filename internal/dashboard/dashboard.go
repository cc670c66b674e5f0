// Package dashboard computes everything shown for one interaction with the
// fold explorer: the selected data, the folds produced by the splitting
// parameters, and the tables, snippets and links describing them.
//
// A render pass never panics on bad input. Problems are collected in the
// returned View, and the pass stops at the first stage that fails.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aaronlmathis/timesplit/internal/cache"
	"github.com/aaronlmathis/timesplit/internal/charts"
	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/datasets"
	"github.com/aaronlmathis/timesplit/internal/display"
	"github.com/aaronlmathis/timesplit/internal/logging"
	"github.com/aaronlmathis/timesplit/internal/metrics"
	"github.com/aaronlmathis/timesplit/internal/permalink"
	"github.com/aaronlmathis/timesplit/internal/plugins"
	"github.com/aaronlmathis/timesplit/internal/query"
	"github.com/aaronlmathis/timesplit/internal/split"
	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// AggregationOptions are always offered for a column.
var AggregationOptions = []string{"min", "mean", "max", "sum"}

// DefaultAggregation is used for columns without a configured default.
const DefaultAggregation = "mean"

// DefaultBarLabels is used when the form does not select bar labels.
const DefaultBarLabels = charts.LabelHours

// Problem is an error shown inline.
type Problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Err    error  `json:"-"`
}

func (p *Problem) Error() string {
	if p.Err != nil {
		return p.Title + " " + p.Err.Error()
	}
	return p.Title
}

func (p *Problem) Unwrap() error {
	return p.Err
}

// DatasetSource provides the bundled datasets.
type DatasetSource interface {
	Datasets(ctx context.Context) (*cache.Datasets, error)
}

// Options configure a Dashboard.
type Options struct {
	Config     *config.Config
	Datasets   DatasetSource
	Sample     *plugins.SampleData
	Extensions *plugins.Extensions
	Uploads    *Uploads
	Logger     *zap.Logger
	Perf       *logging.PerfLogger
}

// Dashboard resolves render passes.
type Dashboard struct {
	cfg      *config.Config
	datasets DatasetSource
	sample   *plugins.SampleData
	ext      *plugins.Extensions
	uploads  *Uploads
	logger   *zap.Logger
	perf     *logging.PerfLogger
}

// New creates a dashboard. Unset options fall back to the built-in
// implementations.
func New(opts Options) *Dashboard {
	d := &Dashboard{
		cfg:      opts.Config,
		datasets: opts.Datasets,
		sample:   opts.Sample,
		ext:      opts.Extensions,
		uploads:  opts.Uploads,
		logger:   opts.Logger,
		perf:     opts.Perf,
	}
	if d.ext == nil {
		d.ext = plugins.Defaults()
	}
	if d.sample == nil {
		d.sample = plugins.NewSampleData(nil, d.ext.RangeFn)
	}
	if d.uploads == nil {
		var limit int64
		if d.cfg != nil {
			limit = UploadLimit(d.cfg.Uploads.MaxMB)
		}
		d.uploads = NewUploads(time.Hour, limit)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.perf == nil {
		d.perf = logging.NewPerfLogger(nil, false, 0)
	}
	return d
}

// Snippets are copy-paste code for the current selection.
type Snippets struct {
	Split string `json:"split"`
	Plot  string `json:"plot"`
	Folds string `json:"folds"`
}

// View is the outcome of a render pass.
type View struct {
	// Data selection.
	Sources       []SourceOption  `json:"sources"`
	Source        SourceOption    `json:"source"`
	Datasets      []DatasetOption `json:"datasets,omitempty"`
	DatasetWidget string          `json:"dataset_widget,omitempty"`
	Dataset       int             `json:"dataset"`
	Range         [2]time.Time    `json:"range,omitzero"`
	Upload        *Upload         `json:"-"`
	IndexChoices  []string        `json:"index_choices,omitempty"`
	Index         string          `json:"index,omitempty"`
	LoaderParams  string          `json:"loader_params,omitempty"`
	Data          query.Data      `json:"-"`

	// Loaded data.
	Frame        *timeseries.Frame    `json:"-"`
	DataInfo     string               `json:"data_info,omitempty"`
	LoadCaption  string               `json:"load_caption,omitempty"`
	Summary      display.Summary      `json:"summary"`
	DataOverview display.DataOverview `json:"data_overview"`
	Head         *timeseries.Frame    `json:"-"`
	HeadCaption  string               `json:"head_caption,omitempty"`

	// Session limits.
	Limits  config.Limits   `json:"limits"`
	Lowered map[string]bool `json:"lowered,omitempty"`

	// Splitting.
	Kwargs       split.Kwargs          `json:"-"`
	KwargsText   map[string]string     `json:"kwargs"`
	Result       *split.Result         `json:"-"`
	Folds        []split.Fold          `json:"folds"`
	FoldOverview display.Overview      `json:"-"`
	FoldTable    [][3]string           `json:"fold_table,omitempty"`
	ShowRemoved  bool                  `json:"show_removed"`
	BarLabels    charts.BarLabels      `json:"bar_labels"`
	Aggregation  map[string]string     `json:"aggregation,omitempty"`
	AggOptions   map[string][]string   `json:"-"`
	Aggregations *display.Aggregations `json:"aggregations,omitempty"`

	// Output.
	TypePreference  display.TypePreference `json:"type_preference"`
	TimestampFormat string                 `json:"timestamp_format,omitempty"`
	Snippets        Snippets               `json:"snippets"`
	Permalink       string                 `json:"permalink,omitempty"`
	State           url.Values             `json:"-"`

	Warnings []string      `json:"warnings,omitempty"`
	Errors   []*Problem    `json:"errors,omitempty"`
	Elapsed  time.Duration `json:"-"`
	Timing   string        `json:"timing,omitempty"`
}

// Failed reports whether the pass stopped early.
func (v *View) Failed() bool {
	return len(v.Errors) > 0
}

func (v *View) fail(title string, err error) *View {
	var p *Problem
	if !errors.As(err, &p) {
		p = &Problem{Title: title, Err: err}
	}
	v.Errors = append(v.Errors, p)
	return v
}

// Resolve runs one render pass.
func (d *Dashboard) Resolve(ctx context.Context, state State) *View {
	start := time.Now()
	v := &View{Limits: state.Limits, Lowered: state.Limits.Lowered(d.cfg.HardLimits())}
	v.State = url.Values{}
	for k, vs := range state.Values {
		v.State[k] = slices.Clone(vs)
	}
	defer func() {
		v.Elapsed = time.Since(start)
		v.Timing = fmt.Sprintf("Finished all tasks in %d ms.", v.Elapsed.Milliseconds())
		d.logPass(ctx, v)
	}()

	if err := d.cfg.HardLimits().Check(state.Limits); err != nil {
		var le *config.LimitError
		if errors.As(err, &le) {
			metrics.RecordLimitViolation(le.Key)
		}
		return v.fail("Bad session limits.", err)
	}

	params, err := query.Parse(state.Values)
	if err != nil {
		return v.fail("Bad parameters.", err)
	}
	return d.resolve(ctx, state, params, v)
}

func (d *Dashboard) resolve(ctx context.Context, state State, params query.Params, v *View) *View {
	var bundled []*datasets.Dataset
	if d.datasets != nil {
		ds, err := d.datasets.Datasets(ctx)
		if cache.IsFatal(err) {
			return v.fail("Datasets are required.", err)
		}
		if err != nil {
			v.Warnings = append(v.Warnings, fmt.Sprintf("Failed to load datasets: %v", err))
		} else {
			bundled = ds.Datasets
		}
	}

	v.Sources = d.sourceOptions(params.Data, bundled)
	source, err := d.selectSource(state, v.Sources, params.Data)
	if err != nil {
		return v.fail("Bad data source.", err)
	}
	v.Source = source
	v.State.Set(FieldSource, source.ID)

	loadStart := time.Now()
	l, err := d.load(ctx, state, params, bundled, v)
	if err != nil {
		return v.fail("Failed to load data.", err)
	}
	frame := l.frame.Sorted()
	if err := datasets.CheckIndex(frame); err != nil {
		return v.fail("", indexProblem(err))
	}
	if frame.Len() == 0 {
		return v.fail("", &Problem{Title: "The data is empty."})
	}
	loadElapsed := time.Since(loadStart)

	v.Frame, v.Data, v.DataInfo = frame, l.data, l.info
	v.Warnings = append(v.Warnings, l.warnings...)
	v.LoadCaption = loadCaption(frame, loadElapsed)
	v.Summary = display.Summarize(frame)
	v.DataOverview = display.NewDataOverview(frame)
	v.Head, v.HeadCaption = display.Head(frame, d.cfg.Plotting.RawDataSamples)
	if !v.Limits.PlotRawTimeseries {
		v.Warnings = append(v.Warnings, "Raw data figure disabled; PLOT_RAW_TIMESERIES=false.")
	}
	if source.Source == SourceGenerate {
		v.State.Set(FieldStart, v.Range[0].Format(time.DateTime))
		v.State.Set(FieldEnd, v.Range[1].Format(time.DateTime))
	}
	d.perf.Log(ctx, zapcore.DebugLevel, fmt.Sprintf("Loaded data from source=%q.", source.ID), loadElapsed,
		map[string]logging.Shape{"data": shape(frame)})

	kwargs, err := d.kwargs(state, params)
	if err != nil {
		return v.fail("Bad split parameters.", err)
	}
	v.Kwargs = kwargs
	v.KwargsText = map[string]string{
		query.KeySchedule:     kwargs.Schedule.String(),
		query.KeyBefore:       kwargs.Before.String(),
		query.KeyAfter:        kwargs.After.String(),
		query.KeyStep:         strconv.Itoa(kwargs.Step),
		query.KeyNSplits:      strconv.Itoa(kwargs.NSplits),
		query.KeyExpandLimits: kwargs.ExpandLimits.String(),
	}

	v.ShowRemoved = params.ShowRemoved != nil && *params.ShowRemoved
	v.BarLabels = DefaultBarLabels
	if state.has(FieldBarLabels) {
		if v.BarLabels, err = charts.ParseBarLabels(state.get(FieldBarLabels)); err != nil {
			return v.fail("Bad bar labels.", err)
		}
	}

	if err := d.split(kwargs, frame, v); err != nil {
		return v.fail("Failed to compute splits.", err)
	}

	if v.TypePreference, err = display.ParseTypePreference(state.get(FieldTypePreference)); err != nil {
		return v.fail("Bad type preference.", err)
	}
	v.TimestampFormat = state.get(FieldTimestampFormat)
	if v.FoldTable, err = display.FoldTable(v.Folds, v.TimestampFormat); err != nil {
		return v.fail("Bad timestamp format.", err)
	}

	v.Aggregation, v.AggOptions = selectAggregations(frame, l.aggregations, state)
	for column, agg := range v.Aggregation {
		v.State.Set(FieldAggregation+column, agg)
	}
	if v.Limits.PlotAggregationsPerFold {
		if v.Aggregations, err = display.AggregateFolds(frame, v.Folds, v.Aggregation); err != nil {
			return v.fail("Failed to aggregate folds.", err)
		}
	}

	snippets := display.NewSnippets(v.TypePreference)
	plotArgs := []display.Arg{{Name: "show_removed", Value: v.ShowRemoved}, {Name: "bar_labels", Value: barLabelsArg(v.BarLabels)}}
	v.Snippets = Snippets{
		Split: snippets.SplitCode(kwargs, v.Result.Available),
		Plot:  snippets.PlotCode(kwargs, v.Result.Available, plotArgs),
		Folds: snippets.FoldsCode(v.Folds),
	}

	host, fallback := permalink.Host(d.cfg.Server.PermalinkBaseURL)
	if fallback {
		v.Warnings = append(v.Warnings, fmt.Sprintf("PERMALINK_BASE_URL is not set; links point to %s.", host))
	}
	if source.Source == SourceUpload {
		v.Warnings = append(v.Warnings, "Links do not include uploaded data.")
	}
	v.Permalink = d.ext.LinkFn(host, kwargs, permalink.Plot{ShowRemoved: v.ShowRemoved, BarLabels: string(v.BarLabels)}, v.Data)
	return v
}

// kwargs returns the splitting parameters of state, starting from the
// defaults. A configured SPLIT_SELECT_FN replaces the parsing entirely.
func (d *Dashboard) kwargs(state State, params query.Params) (split.Kwargs, error) {
	if d.ext.SelectFn != nil {
		return d.ext.SelectFn(state.Values)
	}

	kwargs := split.DefaultKwargs()
	var err error
	if params.Schedule != nil {
		if kwargs.Schedule, err = split.ParseSchedule(*params.Schedule); err != nil {
			return kwargs, &Problem{Title: fmt.Sprintf("Bad schedule=%q.", *params.Schedule), Err: err}
		}
	}
	if params.Before != nil {
		if kwargs.Before, err = split.ParseSpan(*params.Before); err != nil {
			return kwargs, &Problem{Title: fmt.Sprintf("Bad before=%q.", *params.Before), Err: err}
		}
	}
	if params.After != nil {
		if kwargs.After, err = split.ParseSpan(*params.After); err != nil {
			return kwargs, &Problem{Title: fmt.Sprintf("Bad after=%q.", *params.After), Err: err}
		}
	}
	if params.Step != nil {
		kwargs.Step = *params.Step
	}
	if params.NSplits != nil {
		kwargs.NSplits = *params.NSplits
	}
	if el := params.ExpandLimits; el != nil {
		switch {
		case el.Spec != "":
			if kwargs.ExpandLimits, err = split.ParseExpandLimits(el.Spec); err != nil {
				return kwargs, &Problem{Title: fmt.Sprintf("Bad expand_limits=%q.", el.Spec), Err: err}
			}
		case el.Enabled:
			kwargs.ExpandLimits = split.ExpandLimits{Auto: true}
		default:
			kwargs.ExpandLimits = split.ExpandLimits{}
		}
	}
	return kwargs, kwargs.Validate()
}

// split computes the folds of frame. The number of folds before filtering
// may not exceed MAX_SPLITS.
func (d *Dashboard) split(kwargs split.Kwargs, frame *timeseries.Frame, v *View) error {
	lo, hi, _ := frame.Limits()
	result, err := split.Plan(kwargs, lo, hi)
	switch {
	case err != nil:
	case len(result.All) > v.Limits.MaxSplits:
		err = &Problem{
			Title: fmt.Sprintf("Maximum number of splits (%d) exceeded.", v.Limits.MaxSplits),
			Detail: fmt.Sprintf("Number of splits is restricted for performance reasons. "+
				"The arguments above produces `len(splits)=%d > %d=MAX_SPLITS`. "+
				"Try using different parameters to reduce the number of folds.", len(result.All), v.Limits.MaxSplits),
		}
	case len(result.Folds()) == 0:
		err = split.NoFoldsError(kwargs, lo, hi)
	}

	if err != nil {
		metrics.RecordSplit(0, 0, err)
		var p *Problem
		if !errors.As(err, &p) {
			err = &Problem{Title: "Failed to compute splits.", Detail: kwargs.String(), Err: err}
		}
		return err
	}

	v.Result = result
	v.Folds = result.Folds()
	v.FoldOverview = display.NewOverview(v.Folds, result.All, result.Available)
	metrics.RecordSplit(len(v.Folds), len(result.All), nil)
	return nil
}

// selectAggregations returns the aggregation of every column along with the
// choices offered for it. Configured defaults are always offered.
func selectAggregations(frame *timeseries.Frame, defaults map[string]string, state State) (map[string]string, map[string][]string) {
	chosen := state.aggregations()
	selected := make(map[string]string)
	options := make(map[string][]string)
	for _, column := range frame.ColumnNames() {
		opts := slices.Clone(AggregationOptions)
		agg := DefaultAggregation
		if def, ok := defaults[column]; ok {
			agg = def
			if !slices.Contains(opts, def) {
				opts = append(opts, def)
			}
		}
		if c, ok := chosen[column]; ok && slices.Contains(opts, c) {
			agg = c
		}
		selected[column] = agg
		options[column] = opts
	}
	return selected, options
}

func barLabelsArg(labels charts.BarLabels) any {
	if labels == charts.LabelNone {
		return false
	}
	return string(labels)
}

func shape(frame *timeseries.Frame) logging.Shape {
	rows, cols := frame.Shape()
	return logging.Shape{Size: frame.Size(), Rows: rows, Columns: cols}
}

func (d *Dashboard) logPass(ctx context.Context, v *View) {
	fields := []zap.Field{zap.String("source", v.Source.ID), zap.Int("n_splits", len(v.Folds))}
	if v.Result != nil {
		fields = append(fields, zap.Int("n_splits_removed", len(v.Result.All)-len(v.Folds)))
	}
	var frames map[string]logging.Shape
	if v.Frame != nil {
		frames = map[string]logging.Shape{"data": shape(v.Frame)}
	}
	d.perf.Log(ctx, zapcore.InfoLevel, v.Timing, v.Elapsed, frames, fields...)

	for _, p := range v.Errors {
		d.logger.Debug("Render pass stopped", zap.String("problem", p.Title), zap.Error(p.Err))
	}
}

// ErrNoFigure is returned when a figure is not part of a view.
var ErrNoFigure = errors.New("figure not available")

func (d *Dashboard) chartOptions(v *View) charts.Options {
	return charts.Options{DPI: v.Limits.FigureDPI, Styled: d.cfg.Plotting.Configure}
}

// RenderFolds draws the folds of v using the configured PLOT_FN.
func (d *Dashboard) RenderFolds(w io.Writer, v *View) error {
	if v.Result == nil {
		return ErrNoFigure
	}
	return d.ext.PlotFn(w, charts.FoldsRequest{
		Result:      v.Result,
		Frame:       v.Frame,
		ShowRemoved: v.ShowRemoved,
		BarLabels:   v.BarLabels,
		Options:     d.chartOptions(v),
	})
}

// RenderRaw draws the head of the data of v.
func (d *Dashboard) RenderRaw(w io.Writer, v *View) error {
	if v.Head == nil || !v.Limits.PlotRawTimeseries {
		return ErrNoFigure
	}
	return charts.Raw(w, d.chartOptions(v), v.Head)
}

// RenderAggregation draws column aggregated per fold.
func (d *Dashboard) RenderAggregation(w io.Writer, v *View, column string) error {
	if v.Aggregations == nil || !slices.Contains(v.Aggregations.Columns, column) {
		return ErrNoFigure
	}
	function, ok := v.Aggregation[column]
	switch {
	case column == display.RowsColumn:
		function = "count"
	case column == display.HoursColumn:
		function = "span"
	case !ok:
		return ErrNoFigure
	}
	return charts.Aggregation(w, d.chartOptions(v), v.Aggregations, column, function)
}
