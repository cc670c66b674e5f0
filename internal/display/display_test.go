package display

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/split"
	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func hourlyFrame(start time.Time, hours int) *timeseries.Frame {
	index := timeseries.DateRange(start, start.Add(time.Duration(hours-1)*time.Hour), time.Hour)
	ones := make([]float64, len(index))
	for i := range ones {
		ones[i] = 1
	}
	return timeseries.MustNew("timestamp", index, timeseries.Column{Name: "x", Values: ones})
}

func TestOverview(t *testing.T) {
	first := split.Fold{Start: date(2019, 4, 1), Mid: date(2019, 4, 8), End: date(2019, 4, 9)}
	second := split.Fold{Start: date(2019, 4, 8), Mid: date(2019, 4, 15), End: date(2019, 4, 16)}

	o := NewOverview([]split.Fold{second}, []split.Fold{first, second}, [2]time.Time{date(2019, 4, 1), date(2019, 4, 21)})

	expected := []Row{
		{Label: "Fold counts", Value: "1 / 1 / 2"},
		{Label: "Data time", Value: "7d / 7d / 14d"},
		{Label: "Future data time", Value: "1d / 1d / 2d"},
	}
	if diff := cmp.Diff(expected, o.Rows()); diff != "" {
		t.Errorf("overview mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 0.4, o.Utilization(), 1e-9)
	assert.Equal(t, "Folds use 8d of 20d (40.00%) of the available data.", o.UtilizationText())

	empty := NewOverview(nil, nil, [2]time.Time{date(2019, 4, 1), date(2019, 4, 1)})
	assert.Equal(t, 0.0, empty.Utilization())
}

func TestAggregateFolds(t *testing.T) {
	frame := hourlyFrame(date(2019, 4, 1), 72)
	folds := []split.Fold{
		{Start: date(2019, 4, 1), Mid: date(2019, 4, 2), End: date(2019, 4, 3)},
		{Start: date(2019, 4, 2), Mid: date(2019, 4, 4), End: date(2019, 4, 5)},
	}

	agg, err := AggregateFolds(frame, folds, map[string]string{"x": "sum"})
	require.NoError(t, err)
	assert.Equal(t, []string{"n_rows", "n_hours", "x"}, agg.Columns)
	require.Len(t, agg.Rows, 4)

	data := agg.Rows[0]
	assert.Equal(t, 0, data.FoldNo)
	assert.Equal(t, date(2019, 4, 2), data.Fold)
	assert.Equal(t, DataLabel, data.Dataset)
	assert.Equal(t, 24.0, data.Values["x"])
	assert.Equal(t, 24.0, data.Values[RowsColumn])
	assert.Equal(t, 23.0, data.Values[HoursColumn])
	assert.Equal(t, FutureLabel, agg.Rows[1].Dataset)

	// The second fold has no future data.
	future := agg.Rows[3]
	assert.Equal(t, 0.0, future.Values[RowsColumn])
	assert.True(t, math.IsNaN(future.Values[HoursColumn]))

	pivot, err := agg.Pivot("x")
	require.NoError(t, err)
	require.Len(t, pivot, 2)
	assert.Equal(t, PivotRow{FoldNo: 0, Fold: date(2019, 4, 2), Data: 24, Future: 24}, pivot[0])
	assert.Equal(t, 48.0, pivot[1].Data)

	_, err = agg.Pivot("y")
	assert.Error(t, err)

	encoded, err := json.Marshal(future)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"n_hours":null`)
	assert.Contains(t, string(encoded), `"dataset":"Future data"`)
}

func TestAggregateFoldsErrors(t *testing.T) {
	frame := hourlyFrame(date(2019, 4, 1), 48)
	folds := []split.Fold{{Start: date(2019, 4, 1), Mid: date(2019, 4, 2), End: date(2019, 4, 3)}}

	_, err := AggregateFolds(frame, folds, map[string]string{"n_rows": "sum"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")

	_, err = AggregateFolds(frame, folds, map[string]string{"x": "mode"})
	assert.Error(t, err)

	_, err = AggregateFolds(frame, folds, map[string]string{"y": "sum"})
	assert.Error(t, err)
}

func TestSplitCode(t *testing.T) {
	limits := [2]time.Time{date(2019, 4, 11), date(2019, 5, 12)}

	got := NewSnippets(PreferString).SplitCode(split.DefaultKwargs(), limits)
	expected := `import time_split

splits = time_split.split(
    schedule='0 0 * * MON,FRI',
    before='7 days, 0:00:00',
    after=1,
    step=1,
    n_splits=0,
    expand_limits='auto',
    available=('2019-04-11',
               '2019-05-12'),
)
logged_splits = time_split.log_split_progress(splits, logger="<logger-or-name>")`
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("snippet mismatch (-want +got):\n%s", diff)
	}

	got = NewSnippets(PreferPython).SplitCode(split.DefaultKwargs(), limits)
	assert.True(t, strings.HasPrefix(got, "from datetime import datetime, timedelta\nimport time_split\n"), got)
	assert.Contains(t, got, "    before=timedelta(days=7),\n")
	assert.Contains(t, got, "    available=(datetime(2019, 4, 11),\n               datetime(2019, 5, 12)),\n")

	got = NewSnippets(PreferPandas).SplitCode(split.DefaultKwargs(), limits)
	assert.True(t, strings.HasPrefix(got, "import pandas as pd\nimport time_split\n"), got)
	assert.Contains(t, got, "before=pd.Timedelta('7 days'),")
	assert.Contains(t, got, "available=(pd.Timestamp('2019-04-11'),")
}

func TestSplitCodeVariants(t *testing.T) {
	kwargs := split.DefaultKwargs()
	every, err := split.EverySchedule(36 * time.Hour)
	require.NoError(t, err)
	kwargs.Schedule = every
	kwargs.Before = split.Span{Kind: split.All}
	kwargs.ExpandLimits = split.ExpandLimits{}

	got := NewSnippets(PreferString).SplitCode(kwargs, [2]time.Time{date(2019, 4, 11), date(2019, 5, 12)})
	assert.Contains(t, got, "schedule='1 day, 12:00:00',")
	assert.Contains(t, got, "before='all',")
	assert.Contains(t, got, "expand_limits=False,")

	got = NewSnippets(PreferPython).SplitCode(kwargs, [2]time.Time{date(2019, 4, 11), date(2019, 5, 12)})
	assert.Contains(t, got, "schedule=timedelta(days=1, seconds=43200),")

	list, err := split.ListSchedule([]time.Time{date(2019, 4, 26), time.Date(2019, 4, 29, 12, 30, 0, 0, time.UTC)})
	require.NoError(t, err)
	kwargs.Schedule = list
	got = NewSnippets(PreferPython).SplitCode(kwargs, [2]time.Time{date(2019, 4, 11), date(2019, 5, 12)})
	assert.Contains(t, got, "schedule=[datetime(2019, 4, 26), datetime(2019, 4, 29, 12, 30)],")
}

func TestPlotCode(t *testing.T) {
	got := NewSnippets(PreferString).PlotCode(split.DefaultKwargs(), [2]time.Time{date(2019, 4, 11), date(2019, 5, 12)},
		[]Arg{{"show_removed", true}, {"bar_labels", "days"}})
	assert.True(t, strings.HasPrefix(got, "import time_split\nfrom rics import plotting \n\nplotting.configure()"), got)
	assert.Contains(t, got, "\nax = time_split.plot(\n")
	assert.Contains(t, got, "    show_removed=True,\n    bar_labels='days',\n)")
}

func TestFoldsCode(t *testing.T) {
	folds := []split.Fold{{Start: date(2019, 4, 12), Mid: date(2019, 4, 19), End: date(2019, 4, 22)}}

	got := NewSnippets(PreferString).FoldsCode(folds)
	assert.Equal(t, "import time_split\n\nsplits = [\n    ('2019-04-12', '2019-04-19', '2019-04-22'),\n]", got)

	got = NewSnippets(PreferPython).FoldsCode(folds)
	assert.Contains(t, got, "    (datetime(2019, 4, 12), datetime(2019, 4, 19), datetime(2019, 4, 22)),")

	got = NewSnippets(PreferPandas).FoldsCode(folds)
	expected := "import pandas as pd\nimport time_split\nfrom time_split.types import DatetimeSplitBounds\n\nsplits = [\n" +
		"    DatetimeSplitBounds(start=pd.Timestamp('2019-04-12'), mid=pd.Timestamp('2019-04-19'), end=pd.Timestamp('2019-04-22')),\n]" +
		"\nlogged_splits = time_split.log_split_progress(splits, logger=\"<logger-or-name>\")"
	assert.Equal(t, expected, got)
}

func TestTimedeltaRepr(t *testing.T) {
	tests := []struct {
		d                      time.Duration
		str, python, pandasStr string
	}{
		{0, "'0:00:00'", "datetime.timedelta(0)", "Timedelta('0 days 00:00:00')"},
		{3*time.Hour + 30*time.Minute, "'3:30:00'", "datetime.timedelta(seconds=12600)", "Timedelta('0 days 03:30:00')"},
		{split.Day, "'1 day, 0:00:00'", "datetime.timedelta(days=1)", "Timedelta('1 days 00:00:00')"},
		{-time.Hour, "'-1 day, 23:00:00'", "datetime.timedelta(days=-1, seconds=82800)", "Timedelta('-1 days +23:00:00')"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.str, NewSnippets(PreferString).repr(tt.d))
		assert.Equal(t, tt.python, NewSnippets(PreferPython).repr(tt.d))
		assert.Equal(t, tt.pandasStr, NewSnippets(PreferPandas).repr(tt.d))
	}
}

func TestParseTypePreference(t *testing.T) {
	p, err := ParseTypePreference("Python")
	require.NoError(t, err)
	assert.Equal(t, PreferPython, p)

	p, err = ParseTypePreference("")
	require.NoError(t, err)
	assert.Equal(t, PreferPandas, p)

	_, err = ParseTypePreference("rust")
	assert.Error(t, err)
}

func TestHead(t *testing.T) {
	frame := hourlyFrame(date(2019, 4, 1), 5)

	head, caption := Head(frame, 3)
	assert.Equal(t, 3, head.Len())
	assert.Equal(t, "Showing the first 3 of 5 (60.00%) rows.", caption)

	head, caption = Head(frame, 10)
	assert.Equal(t, 5, head.Len())
	assert.Equal(t, "Showing all 5 of 5 (100.00%) rows.", caption)

	_, caption = Head(hourlyFrame(date(2019, 4, 1), 20000), 1000)
	assert.Equal(t, "Showing the first 1000 of 20_000 (5.00%) rows.", caption)
}

func TestSummaryAndDataOverview(t *testing.T) {
	frame := timeseries.MustNew("timestamp",
		[]time.Time{date(2019, 4, 1), date(2019, 4, 2), date(2019, 4, 4)},
		timeseries.Column{Name: "x", Values: []float64{1, math.NaN(), 3}},
	)

	s := Summarize(frame)
	assert.Equal(t, Summary{Rows: 3, Cols: 1, Start: date(2019, 4, 1), Span: "3d", End: date(2019, 4, 4)}, s)

	overview := NewDataOverview(frame)
	assert.Equal(t, `Data has shape 3x1 and contains 3 elements, using 48 B of memory (including 24 B for index="timestamp" of type DatetimeIndex[datetime64[ns]]).`, overview.Caption)
	require.Len(t, overview.Columns, 1)
	assert.Equal(t, ColumnOverview{
		Column: "x", Dtype: "float64", Memory: "24 B", NaN: "33.33%",
		Min: "1", Mean: "2.00", Max: "3.00", Sum: "4.00",
	}, overview.Columns[0])
}

func TestAbout(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	about := About(cfg, "v1.2.3")
	assert.Contains(t, about, "`MAX_SPLITS=")
	assert.Contains(t, about, "Server version is `v1.2.3`")
}
