package dashboard

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/aaronlmathis/timesplit/internal/cache"
	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/datasets"
	"github.com/aaronlmathis/timesplit/internal/plugins"
	"github.com/aaronlmathis/timesplit/internal/plugins/mock"
	"github.com/aaronlmathis/timesplit/internal/query"
	"github.com/aaronlmathis/timesplit/internal/split"
	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

type staticDatasets struct {
	datasets []*datasets.Dataset
	err      error
}

func (s staticDatasets) Datasets(context.Context) (*cache.Datasets, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &cache.Datasets{Datasets: s.datasets}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Server.PermalinkBaseURL = ""
	cfg.Features.DataGenerator = true
	cfg.Uploads.MaxMB = 200
	cfg.Datasets.RadioLimit = 3
	cfg.Plotting.MaxSplits = 100
	cfg.Plotting.FigureDPI = 50
	cfg.Plotting.AggregationsPerFold = true
	cfg.Plotting.RawTimeseries = true
	return cfg
}

func dailyFrame(days int) *timeseries.Frame {
	start := time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC)
	index := timeseries.DateRange(start, start.AddDate(0, 0, days-1), 24*time.Hour)
	values := make([]float64, len(index))
	for i := range values {
		values[i] = float64(i)
	}
	return timeseries.MustNew("date", index, timeseries.Column{Name: "x", Values: values})
}

func bundled() []*datasets.Dataset {
	return []*datasets.Dataset{
		{DatasetConfig: datasets.DatasetConfig{Label: "First", Description: "The first.\nMore text."}, Frame: dailyFrame(60)},
		{DatasetConfig: datasets.DatasetConfig{Label: "Second `Set`", Aggregations: map[string]string{"x": "median"}}, Frame: dailyFrame(90)},
	}
}

func resolve(t *testing.T, d *Dashboard, cfg *config.Config, values url.Values) *View {
	t.Helper()
	return d.Resolve(context.Background(), State{Values: values, Limits: cfg.HardLimits()})
}

func TestResolveGeneratedByDefault(t *testing.T) {
	cfg := testConfig(t)
	d := New(Options{Config: cfg})

	v := resolve(t, d, cfg, url.Values{})
	require.False(t, v.Failed(), "%v", v.Errors)

	assert.Equal(t, []Source{SourceGenerate, SourceUpload}, []Source{v.Sources[0].Source, v.Sources[1].Source})
	assert.Equal(t, SourceGenerate, v.Source.Source)
	assert.Equal(t, "Limit 200 MB.", v.Sources[1].Caption)
	assert.Equal(t, GeneratedInfo, v.DataInfo)
	assert.Equal(t, query.DataRange, v.Data.Kind)

	assert.Greater(t, len(v.Folds), 2)
	assert.Len(t, v.FoldTable, len(v.Folds))
	assert.Equal(t, DefaultBarLabels, v.BarLabels)
	assert.False(t, v.ShowRemoved)
	assert.Equal(t, "mean", v.Aggregation["column 0"])
	require.NotNil(t, v.Aggregations)
	assert.Len(t, v.Aggregations.Rows, 2*len(v.Folds))

	assert.Contains(t, v.Snippets.Split, "splits = time_split.split(")
	assert.Contains(t, v.Snippets.Plot, "bar_labels='hours',")
	assert.True(t, strings.HasPrefix(v.Permalink, "http://localhost:8501/?schedule=0+0+%2A+%2A+MON%2CFRI&"), v.Permalink)
	assert.Contains(t, v.Warnings, "PERMALINK_BASE_URL is not set; links point to http://localhost:8501/.")
	assert.True(t, strings.HasPrefix(v.Timing, "Finished all tasks in "), v.Timing)
	assert.True(t, strings.HasPrefix(v.LoadCaption, "Finished loading dataset of type `Frame` and `shape="), v.LoadCaption)

	assert.Equal(t, string(SourceGenerate), v.State.Get(FieldSource))
	assert.Equal(t, "2019-04-11 00:35:00", v.State.Get(FieldStart))
	assert.Equal(t, "mean", v.State.Get(FieldAggregation+"column 1"))
}

func TestResolveQueryParameters(t *testing.T) {
	cfg := testConfig(t)
	d := New(Options{Config: cfg})

	values := url.Values{
		"n_splits":      {"2"},
		"show_removed":  {"true"},
		"expand_limits": {"false"},
		"data":          {"1554942900-1557610200"},
	}
	v := resolve(t, d, cfg, values)
	require.False(t, v.Failed(), "%v", v.Errors)

	assert.Equal(t, SourceGenerate, v.Source.Source)
	assert.Equal(t, time.Date(2019, 4, 11, 0, 35, 0, 0, time.UTC), v.Range[0])
	assert.Len(t, v.Folds, 2)
	assert.Greater(t, len(v.Result.All), 2)
	assert.True(t, v.ShowRemoved)
	assert.Equal(t, "false", v.KwargsText[query.KeyExpandLimits])
	assert.Contains(t, v.Permalink, "n_splits=2")
	assert.Contains(t, v.Permalink, "show_removed=true")
}

func TestResolveBadQueryParameter(t *testing.T) {
	cfg := testConfig(t)
	v := resolve(t, New(Options{Config: cfg}), cfg, url.Values{"show_removed": {"maybe"}})
	require.True(t, v.Failed())
	assert.Contains(t, v.Errors[0].Error(), "Bad value='maybe' for parameter='show_removed'")
	assert.Nil(t, v.Frame)
}

func TestResolveBadSplitParameters(t *testing.T) {
	cfg := testConfig(t)
	d := New(Options{Config: cfg})

	for _, values := range []url.Values{
		{"schedule": {"not a schedule"}},
		{"before": {"-3"}},
		{"step": {"0"}},
		{"expand_limits": {"q<1h"}},
	} {
		v := resolve(t, d, cfg, values)
		require.True(t, v.Failed(), "%v", values)
		assert.Nil(t, v.Result, "%v", values)
	}
}

func TestResolveMaxSplits(t *testing.T) {
	cfg := testConfig(t)
	d := New(Options{Config: cfg})

	limits := cfg.HardLimits()
	limits.MaxSplits = 2
	v := d.Resolve(context.Background(), State{Values: url.Values{}, Limits: limits})
	require.True(t, v.Failed())
	assert.Equal(t, "Maximum number of splits (2) exceeded.", v.Errors[0].Title)
	assert.Contains(t, v.Errors[0].Detail, "> 2=MAX_SPLITS")
	assert.NotNil(t, v.Frame)
	assert.Nil(t, v.Result)
}

func TestResolveLimitsAboveServerLimits(t *testing.T) {
	cfg := testConfig(t)
	limits := cfg.HardLimits()
	limits.MaxSplits++

	v := New(Options{Config: cfg}).Resolve(context.Background(), State{Values: url.Values{}, Limits: limits})
	require.True(t, v.Failed())
	var le *config.LimitError
	assert.True(t, errors.As(v.Errors[0], &le))
}

func TestResolveGeneratorDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Features.DataGenerator = false
	d := New(Options{Config: cfg})

	v := resolve(t, d, cfg, url.Values{"data": {"1554942900-1557610200"}})
	require.True(t, v.Failed())
	assert.Equal(t, "Cannot use data=1554942900-1557610200 with ENABLE_DATA_GENERATOR=false", v.Errors[0].Title)

	// Without a range, uploads come first and need a file.
	v = resolve(t, d, cfg, url.Values{})
	require.True(t, v.Failed())
	assert.Equal(t, SourceUpload, v.Source.Source)
	assert.Equal(t, "Upload a file to continue.", v.Errors[0].Title)
}

func TestResolveBundled(t *testing.T) {
	cfg := testConfig(t)
	d := New(Options{Config: cfg, Datasets: staticDatasets{datasets: bundled()}})

	v := resolve(t, d, cfg, url.Values{"data": {"second set"}})
	require.False(t, v.Failed(), "%v", v.Errors)
	assert.Equal(t, SourceBundled, v.Source.Source)
	assert.Equal(t, "Select one of 2 datasets.", v.Source.Caption)
	assert.Equal(t, 1, v.Dataset)
	assert.Equal(t, "radio", v.DatasetWidget)
	assert.Equal(t, "The first.", v.Datasets[0].Summary)
	assert.Equal(t, "median", v.Aggregation["x"])
	assert.Equal(t, []string{"min", "mean", "max", "sum", "median"}, v.AggOptions["x"])
	assert.Contains(t, v.Permalink, "data=secondset")

	v = resolve(t, d, cfg, url.Values{"data": {"0"}, FieldAggregation + "x": {"max"}})
	require.False(t, v.Failed(), "%v", v.Errors)
	assert.Equal(t, 0, v.Dataset)
	assert.Equal(t, "max", v.Aggregation["x"])

	v = resolve(t, d, cfg, url.Values{FieldSource: {"bundled"}, FieldDataset: {"1"}, "data": {"0"}})
	require.False(t, v.Failed(), "%v", v.Errors)
	assert.Equal(t, 1, v.Dataset)

	v = resolve(t, d, cfg, url.Values{"data": {"third"}})
	require.True(t, v.Failed())
	assert.Equal(t, `Unknown dataset "third".`, v.Errors[0].Title)
	assert.Equal(t, "Available datasets: first, secondset.", v.Errors[0].Detail)

	v = resolve(t, d, cfg, url.Values{"data": {"2"}})
	require.True(t, v.Failed())
	assert.Equal(t, "Bad dataset index=2.", v.Errors[0].Title)
}

func TestResolveBundledUnavailable(t *testing.T) {
	cfg := testConfig(t)
	d := New(Options{Config: cfg, Datasets: staticDatasets{err: errors.New("boom")}})

	v := resolve(t, d, cfg, url.Values{})
	require.False(t, v.Failed(), "%v", v.Errors)
	assert.Contains(t, v.Warnings, "Failed to load datasets: boom")

	v = resolve(t, d, cfg, url.Values{"data": {"1"}})
	require.True(t, v.Failed())
	assert.Equal(t, "No datasets available.", v.Errors[0].Title)

	d = New(Options{Config: cfg, Datasets: staticDatasets{err: &cache.FatalConfigError{Path: "datasets.toml", Err: errors.New("boom")}}})
	v = resolve(t, d, cfg, url.Values{})
	require.True(t, v.Failed())
	assert.Nil(t, v.Frame)
}

func TestResolveUpload(t *testing.T) {
	cfg := testConfig(t)
	uploads := NewUploads(time.Minute, 0)
	d := New(Options{Config: cfg, Uploads: uploads})

	var csv strings.Builder
	csv.WriteString("Date,x\n")
	for _, t := range dailyFrame(60).Index {
		csv.WriteString(t.Format(time.DateOnly) + ",1\n")
	}
	upload, err := uploads.Read("data.csv", int64(csv.Len()), strings.NewReader(csv.String()))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upload.Caption(), "Read file 'data.csv' of size "), upload.Caption())

	v := resolve(t, d, cfg, url.Values{FieldSource: {"upload"}, FieldUpload: {upload.ID}})
	require.False(t, v.Failed(), "%v", v.Errors)
	assert.Equal(t, "Date", v.Index)
	assert.Equal(t, []string{"Date", "x"}, v.IndexChoices)
	assert.Equal(t, query.DataNone, v.Data.Kind)
	assert.Contains(t, v.Warnings, "Links do not include uploaded data.")

	v = resolve(t, d, cfg, url.Values{FieldSource: {"upload"}, FieldUpload: {"expired"}})
	require.True(t, v.Failed())
	assert.Equal(t, "The uploaded file has expired.", v.Errors[0].Title)

	v = resolve(t, d, cfg, url.Values{FieldSource: {"upload"}, FieldUpload: {upload.ID}, FieldIndex: {"x"}})
	require.True(t, v.Failed())
	assert.Equal(t, "Failed to read data.", v.Errors[0].Title)
}

func TestResolveUploadDuplicateIndex(t *testing.T) {
	cfg := testConfig(t)
	uploads := NewUploads(time.Minute, 0)
	d := New(Options{Config: cfg, Uploads: uploads})

	upload, err := uploads.Read("data.csv", 0, strings.NewReader("date,x\n2019-04-01,1\n2019-04-01,2\n2019-04-02,3\n"))
	require.NoError(t, err)

	v := resolve(t, d, cfg, url.Values{FieldSource: {"upload"}, FieldUpload: {upload.ID}})
	require.True(t, v.Failed())
	assert.Equal(t, "Data must be pre-aggregated.", v.Errors[0].Title)
	assert.Contains(t, v.Errors[0].Detail, "Found 2 duplicate index values out of 3 rows.")
}

func TestResolveUploadWithoutIndex(t *testing.T) {
	cfg := testConfig(t)
	uploads := NewUploads(time.Minute, 0)
	d := New(Options{Config: cfg, Uploads: uploads})

	upload, err := uploads.Read("data.csv", 0, strings.NewReader("when,x\n2019-04-01,1\n"))
	require.NoError(t, err)

	v := resolve(t, d, cfg, url.Values{FieldSource: {"upload"}, FieldUpload: {upload.ID}})
	require.True(t, v.Failed())
	assert.Equal(t, "Select a datetime-like index column to continue.", v.Errors[0].Title)
	assert.Equal(t, []string{"when", "x"}, v.IndexChoices)
}

func TestResolveCustomLoader(t *testing.T) {
	ctrl := gomock.NewController(t)
	dl := mock.NewMockDataLoader(ctrl)
	dl.EXPECT().Prefix().Return([]byte("my")).Times(2)
	dl.EXPECT().Title().Return("My loader").AnyTimes()
	dl.EXPECT().Description().Return("Loads my data.").AnyTimes()
	dl.EXPECT().Load(gomock.Any(), []byte("abc")).Return(plugins.Result{
		Frame:        dailyFrame(60),
		Aggregations: map[string]string{"x": "sum"},
		Params:       []byte("abc"),
		HasParams:    true,
	}, nil)

	loader, err := plugins.NewLoader("mine", dl)
	require.NoError(t, err)
	ext := plugins.Defaults()
	ext.Loaders = []*plugins.Loader{loader}

	cfg := testConfig(t)
	d := New(Options{Config: cfg, Extensions: ext})

	v := resolve(t, d, cfg, url.Values{"data": {"0x6d79616263"}})
	require.False(t, v.Failed(), "%v", v.Errors)
	assert.Equal(t, SourceLoader, v.Source.Source)
	assert.Equal(t, "loader:mine", v.Source.ID)
	assert.Equal(t, "Loads my data.", v.DataInfo)
	assert.Equal(t, "abc", v.LoaderParams)
	assert.Equal(t, "sum", v.Aggregation["x"])
	assert.Contains(t, v.Permalink, "data=0x6D79616263")
}

func TestResolveCustomLoaderFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	dl := mock.NewMockDataLoader(ctrl)
	dl.EXPECT().Prefix().Return(nil).Times(2)
	dl.EXPECT().Title().Return("Broken").AnyTimes()
	dl.EXPECT().Description().Return("").AnyTimes()
	dl.EXPECT().Load(gomock.Any(), gomock.Any()).Return(plugins.Result{}, nil)

	loader, err := plugins.NewLoader("broken", dl)
	require.NoError(t, err)
	ext := plugins.Defaults()
	ext.Loaders = []*plugins.Loader{loader}

	cfg := testConfig(t)
	v := resolve(t, New(Options{Config: cfg, Extensions: ext}), cfg, url.Values{FieldSource: {"loader:broken"}})
	require.True(t, v.Failed())
	assert.Equal(t, "Bad dataset loader.", v.Errors[0].Title)

	var impl *plugins.ImplementationError
	assert.True(t, errors.As(v.Errors[0], &impl))
}

func TestResolveBytesWithoutLoader(t *testing.T) {
	cfg := testConfig(t)
	v := resolve(t, New(Options{Config: cfg}), cfg, url.Values{"data": {"0xff"}})
	require.True(t, v.Failed())
	assert.Equal(t, "Cannot use data=0xFF without a DATASET_LOADER.", v.Errors[0].Title)
}

func TestResolveSelectFn(t *testing.T) {
	ext := plugins.Defaults()
	ext.SelectFn = func(form url.Values) (split.Kwargs, error) {
		kwargs := split.DefaultKwargs()
		kwargs.NSplits = 1
		return kwargs, nil
	}

	cfg := testConfig(t)
	v := resolve(t, New(Options{Config: cfg, Extensions: ext}), cfg, url.Values{"n_splits": {"4"}})
	require.False(t, v.Failed(), "%v", v.Errors)
	assert.Len(t, v.Folds, 1)
}

func TestRenderFigures(t *testing.T) {
	cfg := testConfig(t)
	d := New(Options{Config: cfg})
	v := resolve(t, d, cfg, url.Values{"bar_labels": {"days"}})
	require.False(t, v.Failed(), "%v", v.Errors)

	var buf bytes.Buffer
	require.NoError(t, d.RenderFolds(&buf, v))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	buf.Reset()
	require.NoError(t, d.RenderAggregation(&buf, v, "column 0"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	buf.Reset()
	require.NoError(t, d.RenderRaw(&buf, v))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	assert.ErrorIs(t, d.RenderAggregation(&buf, v, "missing"), ErrNoFigure)
	assert.ErrorIs(t, d.RenderFolds(&buf, &View{}), ErrNoFigure)
}

func TestSelectAggregations(t *testing.T) {
	frame := timeseries.MustNew("date", []time.Time{time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC)},
		timeseries.Column{Name: "a", Values: []float64{1}},
		timeseries.Column{Name: "b", Values: []float64{2}},
		timeseries.Column{Name: "c", Values: []float64{3}},
	)
	state := State{Values: url.Values{FieldAggregation + "a": {"max"}, FieldAggregation + "c": {"mode"}}}

	selected, options := selectAggregations(frame, map[string]string{"b": "std"}, state)
	assert.Equal(t, map[string]string{"a": "max", "b": "std", "c": "mean"}, selected)
	assert.Equal(t, AggregationOptions, options["a"])
	assert.Equal(t, []string{"min", "mean", "max", "sum", "std"}, options["b"])
}
