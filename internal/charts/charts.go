// Package charts renders the dashboard figures as PNG images.
package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/aaronlmathis/timesplit/internal/display"
	"github.com/aaronlmathis/timesplit/internal/metrics"
	"github.com/aaronlmathis/timesplit/internal/split"
	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// ErrNothingToPlot is returned when a figure would be empty.
var ErrNothingToPlot = errors.New("nothing to plot")

// Figure size in inches; pixels are inches times the DPI.
const (
	figureWidth  = 6.4
	figureHeight = 4.8
)

var (
	dataColor    = drawing.ColorFromHex("1f77b4")
	futureColor  = drawing.ColorFromHex("ff7f0e")
	removedColor = drawing.ColorFromHex("c7c7c7")
	seriesColors = []drawing.Color{
		dataColor, futureColor,
		drawing.ColorFromHex("2ca02c"), drawing.ColorFromHex("d62728"),
		drawing.ColorFromHex("9467bd"), drawing.ColorFromHex("8c564b"),
	}
)

// BarLabels selects the text drawn on fold bars.
type BarLabels string

const (
	LabelDays  BarLabels = "days"
	LabelHours BarLabels = "hours"
	LabelRows  BarLabels = "rows"
	LabelNone  BarLabels = ""
)

// ParseBarLabels parses a bar label choice. "false" and "none" disable labels.
func ParseBarLabels(s string) (BarLabels, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "days", "hours", "rows":
		return BarLabels(v), nil
	case "", "false", "none", "hide":
		return LabelNone, nil
	default:
		return "", fmt.Errorf("bad bar labels %q; expected one of days, hours, rows or none", s)
	}
}

// Options control figure output.
type Options struct {
	DPI int
	// Styled applies the default figure theme.
	Styled bool
}

func (o Options) size() (int, int) {
	dpi := o.DPI
	if dpi <= 0 {
		dpi = int(chart.DefaultDPI)
	}
	return int(figureWidth * float64(dpi)), int(figureHeight * float64(dpi))
}

func (o Options) newChart(title string) chart.Chart {
	width, height := o.size()
	ch := chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		DPI:    float64(o.DPI),
	}
	if o.DPI <= 0 {
		ch.DPI = chart.DefaultDPI
	}
	if o.Styled {
		ch.Background = chart.Style{
			Padding:   chart.Box{Top: 40, Left: 20, Right: 30, Bottom: 20},
			FillColor: drawing.ColorFromHex("f5f5f5"),
		}
		ch.Canvas = chart.Style{FillColor: drawing.ColorWhite}
	}
	return ch
}

func render(w io.Writer, ch chart.Chart, figure string) error {
	start := time.Now()
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s figure: %w", figure, err)
	}
	metrics.RecordFigureRender(figure, time.Since(start))
	return nil
}

// FoldsRequest holds the input of a fold figure.
type FoldsRequest struct {
	Result      *split.Result
	Frame       *timeseries.Frame
	ShowRemoved bool
	BarLabels   BarLabels
	Options     Options
}

// FoldsFunc draws a fold figure.
type FoldsFunc func(w io.Writer, req FoldsRequest) error

// Folds draws one row per fold: a data bar followed by a future data bar.
// Removed folds are greyed out when shown.
func Folds(w io.Writer, req FoldsRequest) error {
	type row struct {
		no   int
		fold split.Fold
		kept bool
	}
	var rows []row
	for i, f := range req.Result.All {
		kept := req.Result.Kept[i]
		if kept || req.ShowRemoved {
			rows = append(rows, row{no: i, fold: f, kept: kept})
		}
	}
	if len(rows) == 0 {
		return ErrNothingToPlot
	}

	ch := req.Options.newChart(fmt.Sprintf("%d folds (data in blue, future data in orange)", len(rows)))
	_, height := req.Options.size()
	barWidth := math.Max(2, 0.6*float64(height)/float64(len(rows)+2))

	var annotations []chart.Value2
	ticks := make([]chart.Tick, 0, len(rows))
	for i, r := range rows {
		y := float64(len(rows) - i)
		ticks = append(ticks, chart.Tick{Value: y, Label: "Fold " + strconv.Itoa(r.no)})

		dataStyle := chart.Style{StrokeColor: dataColor, StrokeWidth: barWidth}
		futureStyle := chart.Style{StrokeColor: futureColor, StrokeWidth: barWidth}
		if !r.kept {
			dataStyle.StrokeColor = removedColor
			futureStyle.StrokeColor = removedColor
		}
		ch.Series = append(ch.Series,
			chart.TimeSeries{Name: display.DataLabel, Style: dataStyle, XValues: []time.Time{r.fold.Start, r.fold.Mid}, YValues: []float64{y, y}},
			chart.TimeSeries{Name: display.FutureLabel, Style: futureStyle, XValues: []time.Time{r.fold.Mid, r.fold.End}, YValues: []float64{y, y}},
		)

		if req.BarLabels != LabelNone {
			for _, part := range [][2]time.Time{{r.fold.Start, r.fold.Mid}, {r.fold.Mid, r.fold.End}} {
				center := part[0].Add(part[1].Sub(part[0]) / 2)
				annotations = append(annotations, chart.Value2{
					XValue: chart.TimeToFloat64(center),
					YValue: y,
					Label:  barLabel(req.BarLabels, req.Frame, part[0], part[1]),
				})
			}
		}
	}
	if len(annotations) > 0 {
		ch.Series = append(ch.Series, chart.AnnotationSeries{Annotations: annotations})
	}

	ch.XAxis = chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02")}
	ch.YAxis = chart.YAxis{
		Range: &chart.ContinuousRange{Min: 0, Max: float64(len(rows) + 1)},
		Ticks: ticks,
	}
	return render(w, ch, "folds")
}

func barLabel(labels BarLabels, frame *timeseries.Frame, start, end time.Time) string {
	d := end.Sub(start)
	switch labels {
	case LabelDays:
		return formatAmount(d.Hours()/24, "day")
	case LabelHours:
		return formatAmount(d.Hours(), "hour")
	case LabelRows:
		if frame == nil {
			return ""
		}
		return formatAmount(float64(frame.Between(start, end).Len()), "row")
	default:
		return ""
	}
}

func formatAmount(v float64, unit string) string {
	v = math.Round(v*10) / 10
	s := strconv.FormatFloat(v, 'f', -1, 64) + " " + unit
	if v != 1 {
		s += "s"
	}
	return s
}

// Aggregation draws the Data and Future data values of column across folds.
func Aggregation(w io.Writer, opts Options, agg *display.Aggregations, column, function string) error {
	pivot, err := agg.Pivot(column)
	if err != nil {
		return err
	}

	ch := opts.newChart(fmt.Sprintf("%s('%s')", function, column))
	var values []float64
	var times []time.Time
	for _, part := range []struct {
		name  string
		color drawing.Color
		value func(display.PivotRow) float64
	}{
		{display.DataLabel, dataColor, func(r display.PivotRow) float64 { return r.Data }},
		{display.FutureLabel, futureColor, func(r display.PivotRow) float64 { return r.Future }},
	} {
		s := chart.TimeSeries{
			Name:  part.name,
			Style: chart.Style{StrokeColor: part.color, StrokeWidth: 2, DotColor: part.color, DotWidth: 4},
		}
		for _, r := range pivot {
			v := part.value(r)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			s.XValues = append(s.XValues, r.Fold)
			s.YValues = append(s.YValues, v)
		}
		if len(s.XValues) == 0 {
			continue
		}
		values = append(values, s.YValues...)
		times = append(times, s.XValues...)
		ch.Series = append(ch.Series, s)
	}
	if len(ch.Series) == 0 {
		return ErrNothingToPlot
	}

	ch.XAxis = chart.XAxis{
		ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
		Range:          timeRange(times),
	}
	ch.YAxis = chart.YAxis{Range: valueRange(values)}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return render(w, ch, "aggregation")
}

// Raw draws every column of frame against its index.
func Raw(w io.Writer, opts Options, frame *timeseries.Frame) error {
	ch := opts.newChart(frame.IndexName)
	var values []float64
	var times []time.Time
	for i, c := range frame.Columns {
		color := seriesColors[i%len(seriesColors)]
		s := chart.TimeSeries{Name: c.Name, Style: chart.Style{StrokeColor: color, StrokeWidth: 1.5}}
		for j, v := range c.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			s.XValues = append(s.XValues, frame.Index[j])
			s.YValues = append(s.YValues, v)
		}
		if len(s.XValues) == 0 {
			continue
		}
		values = append(values, s.YValues...)
		times = append(times, s.XValues...)
		ch.Series = append(ch.Series, s)
	}
	if len(ch.Series) == 0 {
		return ErrNothingToPlot
	}

	ch.XAxis = chart.XAxis{
		ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02 15:04"),
		Range:          timeRange(times),
	}
	ch.YAxis = chart.YAxis{Range: valueRange(values)}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return render(w, ch, "raw")
}

// timeRange pads single-valued ranges, which cannot be drawn.
func timeRange(times []time.Time) *chart.ContinuousRange {
	lo, hi := times[0], times[0]
	for _, t := range times[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	if lo.Equal(hi) {
		lo, hi = lo.Add(-12*time.Hour), hi.Add(12*time.Hour)
	}
	return &chart.ContinuousRange{Min: chart.TimeToFloat64(lo), Max: chart.TimeToFloat64(hi)}
}

func valueRange(values []float64) *chart.ContinuousRange {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo == hi {
		pad := math.Max(1, math.Abs(lo)*0.1)
		lo, hi = lo-pad, hi+pad
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}
