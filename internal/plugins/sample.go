package plugins

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// Sample data
const (
	SampleTitle       = "🪄 Generate"
	SampleDescription = "Dummy data."
	SampleFrequency   = 5 * time.Minute
	SampleIndexName   = "timestamp"

	sampleBaseRows = 397
	sampleColumns  = 3
	// maxSampleRows is about ten years of data.
	maxSampleRows = 1_100_000
)

// ErrBadRange is returned for empty or reversed ranges.
var ErrBadRange = errors.New("select a valid range; start must be before end")

// DefaultRange returns the initial range of the data generator.
func DefaultRange(time.Time) (time.Time, time.Time) {
	return time.Date(2019, 4, 11, 0, 35, 0, 0, time.UTC), time.Date(2019, 5, 11, 21, 30, 0, 0, time.UTC)
}

// sampleBase is the repeated pattern; three smooth daily cycles of different
// phase and trend.
var sampleBase = sync.OnceValue(func() [][]float64 {
	base := make([][]float64, sampleColumns)
	for c := range base {
		base[c] = make([]float64, sampleBaseRows)
	}
	for k := range sampleBaseRows {
		x := float64(k)
		base[0][k] = 100 + 20*math.Sin(2*math.Pi*x/288) + 5*math.Sin(2*math.Pi*x*7/sampleBaseRows)
		base[1][k] = 50 + 0.05*x + 10*math.Cos(2*math.Pi*x/144)
		base[2][k] = 10 + 3*math.Sin(2*math.Pi*x/72)*math.Cos(math.Pi*x/sampleBaseRows)
		for c := range base {
			base[c][k] = math.Round(base[c][k]*1000) / 1000
		}
	}
	return base
})

// GenerateSampleData returns data with a five minute index from start to
// end, inclusive. The base pattern is repeated as needed with every other
// copy reversed, so that the series stays continuous, and the last rows are
// kept.
func GenerateSampleData(start, end time.Time) (*timeseries.Frame, error) {
	if !start.Before(end) {
		return nil, ErrBadRange
	}
	if n := end.Sub(start) / SampleFrequency; n > maxSampleRows {
		return nil, fmt.Errorf("range %s to %s gives %d rows; the limit is %d", start, end, n, maxSampleRows)
	}

	index := timeseries.DateRange(start, end, SampleFrequency)
	n := len(index)
	base := sampleBase()

	copies := (n + sampleBaseRows - 1) / sampleBaseRows
	offset := copies*sampleBaseRows - n

	columns := make([]timeseries.Column, sampleColumns)
	for c := range columns {
		values := make([]float64, n)
		for i := range values {
			row := offset + i
			k := row % sampleBaseRows
			if (row/sampleBaseRows)%2 == 1 {
				k = sampleBaseRows - 1 - k
			}
			values[i] = base[c][k]
		}
		columns[c] = timeseries.Column{Name: "column " + strconv.Itoa(c), Values: values}
	}
	return timeseries.New(SampleIndexName, index, columns...)
}

// SampleData is the built-in data generator. Params are a pair of UNIX
// timestamps, "<start>-<end>".
type SampleData struct {
	generate func(start, end time.Time) (*timeseries.Frame, error)
	initial  RangeFn
	now      func() time.Time
}

// NewSampleData creates the generator. Frames come from generate, which
// defaults to GenerateSampleData and is usually a cache in front of it.
func NewSampleData(generate func(start, end time.Time) (*timeseries.Frame, error), initial RangeFn) *SampleData {
	if generate == nil {
		generate = GenerateSampleData
	}
	if initial == nil {
		initial = DefaultRange
	}
	return &SampleData{generate: generate, initial: initial, now: time.Now}
}

func (s *SampleData) Title() string       { return SampleTitle }
func (s *SampleData) Description() string { return SampleDescription }
func (s *SampleData) Prefix() []byte      { return nil }

// InitialRange returns the range shown before the user picks one.
func (s *SampleData) InitialRange() (time.Time, time.Time) {
	return s.initial(s.now().UTC())
}

// Load generates data for the range in params, or the initial range.
func (s *SampleData) Load(_ context.Context, params []byte) (Result, error) {
	start, end := s.InitialRange()
	if len(params) > 0 {
		var err error
		if start, end, err = ParseRangeParams(params); err != nil {
			return Result{}, err
		}
	}

	frame, err := s.LoadRange(start, end)
	if err != nil {
		return Result{}, err
	}
	return Result{Frame: frame, Params: RangeParams(start, end), HasParams: true}, nil
}

// LoadRange generates data between start and end.
func (s *SampleData) LoadRange(start, end time.Time) (*timeseries.Frame, error) {
	if !start.Before(end) {
		return nil, ErrBadRange
	}
	return s.generate(start.UTC(), end.UTC())
}

// RangeParams encodes a range as SampleData params.
func RangeParams(start, end time.Time) []byte {
	return fmt.Appendf(nil, "%d-%d", start.Unix(), end.Unix())
}

// ParseRangeParams decodes params created by RangeParams.
func ParseRangeParams(params []byte) (time.Time, time.Time, error) {
	left, right, ok := strings.Cut(string(params), "-")
	start, err1 := strconv.ParseInt(left, 10, 64)
	end, err2 := strconv.ParseInt(right, 10, 64)
	if !ok || err1 != nil || err2 != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad sample data params %q; expected '<start>-<end>'", params)
	}
	return time.Unix(start, 0).UTC(), time.Unix(end, 0).UTC(), nil
}
