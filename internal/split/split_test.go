package split

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

var (
	sampleStart = time.Date(2019, 4, 11, 0, 35, 0, 0, time.UTC)
	sampleEnd   = time.Date(2019, 5, 11, 21, 30, 0, 0, time.UTC)
)

func TestPlanDefaultKwargs(t *testing.T) {
	result, err := Plan(DefaultKwargs(), sampleStart, sampleEnd)
	require.NoError(t, err)

	assert.Equal(t, [2]time.Time{date(2019, 4, 11), date(2019, 5, 12)}, result.Expanded)

	mids := make([]time.Time, len(result.All))
	for i, f := range result.All {
		mids[i] = f.Mid
	}
	expected := []time.Time{
		date(2019, 4, 19), date(2019, 4, 22), date(2019, 4, 26),
		date(2019, 4, 29), date(2019, 5, 3), date(2019, 5, 6),
	}
	if diff := cmp.Diff(expected, mids); diff != "" {
		t.Errorf("fold boundaries mismatch (-want +got):\n%s", diff)
	}

	first := result.All[0]
	assert.Equal(t, Fold{Start: date(2019, 4, 12), Mid: date(2019, 4, 19), End: date(2019, 4, 22)}, first)
	assert.Equal(t, 7*Day, first.Data())
	assert.Equal(t, 3*Day, first.Future())
	assert.Len(t, result.Folds(), 6)
	assert.Empty(t, result.Removed())
}

func TestPlanFilters(t *testing.T) {
	kwargs := DefaultKwargs()
	kwargs.Step = 2
	kwargs.NSplits = 2

	result, err := Plan(kwargs, sampleStart, sampleEnd)
	require.NoError(t, err)

	folds := result.Folds()
	require.Len(t, folds, 2)
	assert.Equal(t, date(2019, 4, 29), folds[0].Mid)
	assert.Equal(t, date(2019, 5, 6), folds[1].Mid)
	assert.Len(t, result.Removed(), 4)
}

func TestFilter(t *testing.T) {
	tests := []struct {
		n, step, nSplits int
		want             []bool
	}{
		{5, 1, 0, []bool{true, true, true, true, true}},
		{5, 2, 0, []bool{true, false, true, false, true}},
		{5, 1, 2, []bool{false, false, false, true, true}},
		{5, 3, 1, []bool{false, false, false, false, true}},
		{0, 1, 0, []bool{}},
	}
	for _, tt := range tests {
		got := filter(tt.n, tt.step, tt.nSplits)
		assert.Equal(t, tt.want, got, "n=%d step=%d n_splits=%d", tt.n, tt.step, tt.nSplits)
	}
}

func TestPlanDurationSchedule(t *testing.T) {
	schedule, err := EverySchedule(3 * Day)
	require.NoError(t, err)

	kwargs := Kwargs{Schedule: schedule, Before: Span{Kind: All}, After: Span{Kind: Steps, Steps: 1}, Step: 1}
	result, err := Plan(kwargs, date(2019, 1, 1), date(2019, 1, 10))
	require.NoError(t, err)

	expected := []Fold{
		{Start: date(2019, 1, 1), Mid: date(2019, 1, 4), End: date(2019, 1, 7)},
		{Start: date(2019, 1, 1), Mid: date(2019, 1, 7), End: date(2019, 1, 10)},
	}
	if diff := cmp.Diff(expected, result.All); diff != "" {
		t.Errorf("folds mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanListSchedule(t *testing.T) {
	schedule, err := ParseSchedule(`["2019-04-26", "2019-04-29", "2019-05-03", "2019-05-06", "2019-04-29"]`)
	require.NoError(t, err)
	require.Equal(t, List, schedule.Kind)
	require.Len(t, schedule.Times, 4)

	kwargs := Kwargs{Schedule: schedule, Before: Span{Kind: Steps, Steps: 1}, After: Span{Kind: Length, Duration: Day}, Step: 1}
	folds, err := Split(kwargs, sampleStart, sampleEnd, false)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, Fold{Start: date(2019, 4, 26), Mid: date(2019, 4, 29), End: date(2019, 4, 30)}, folds[0])
}

func TestSplitNoFolds(t *testing.T) {
	kwargs := DefaultKwargs()
	kwargs.Before = Span{Kind: Length, Duration: 365 * Day}

	_, err := Split(kwargs, sampleStart, sampleEnd, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoFolds))
	assert.Contains(t, err.Error(), `before="365d"`)
}

func TestSplitIgnoreFilters(t *testing.T) {
	kwargs := DefaultKwargs()
	kwargs.NSplits = 1

	filtered, err := Split(kwargs, sampleStart, sampleEnd, false)
	require.NoError(t, err)
	all, err := Split(kwargs, sampleStart, sampleEnd, true)
	require.NoError(t, err)
	assert.Len(t, filtered, 1)
	assert.Len(t, all, 6)
}

func TestKwargsValidate(t *testing.T) {
	kwargs := DefaultKwargs()
	kwargs.Step = 0
	assert.Error(t, kwargs.Validate())

	kwargs = DefaultKwargs()
	kwargs.NSplits = -1
	assert.Error(t, kwargs.Validate())

	_, err := Plan(kwargs, sampleStart, sampleEnd)
	assert.Error(t, err)
}

func TestCronScheduleTimestamps(t *testing.T) {
	schedule, err := CronSchedule("0 0 * * mon")
	require.NoError(t, err)

	// 2019-04-15 is a Monday; the start is inclusive.
	times, err := schedule.Timestamps(date(2019, 4, 15), date(2019, 4, 29))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2019, 4, 15), date(2019, 4, 22), date(2019, 4, 29)}, times)

	_, err = CronSchedule("every day")
	assert.Error(t, err)
}

func TestScheduleTooLong(t *testing.T) {
	schedule, err := EverySchedule(time.Second)
	require.NoError(t, err)

	_, err = schedule.Timestamps(date(2019, 1, 1), date(2019, 2, 1))
	assert.True(t, errors.Is(err, ErrScheduleTooLong))
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		input string
		kind  ScheduleKind
		str   string
	}{
		{"0 0 * * MON,FRI", Cron, "0 0 * * MON,FRI"},
		{"7d", Every, "7d"},
		{"36h", Every, "1d12h"},
		{"2019-04-26, 2019-04-29", List, `["2019-04-26", "2019-04-29"]`},
		{"('2019-04-26 12:00')", List, `["2019-04-26 12:00:00"]`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := ParseSchedule(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, s.Kind)
			assert.Equal(t, tt.str, s.String())
		})
	}

	_, err := ParseSchedule("   ")
	assert.Error(t, err)
	_, err = EverySchedule(-time.Hour)
	assert.Error(t, err)
}
