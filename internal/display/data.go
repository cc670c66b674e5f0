package display

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// Head returns the first n rows of frame and a caption describing the
// selection. Non-positive n keeps every row.
func Head(frame *timeseries.Frame, n int) (*timeseries.Frame, string) {
	total := frame.Len()
	head := frame
	if n > 0 && n < total {
		head = frame.Head(n)
	}
	shown := head.Len()

	which := "the first"
	if shown == total {
		which = "all"
	}
	ratio := 1.0
	if total > 0 {
		ratio = float64(shown) / float64(total)
	}
	caption := fmt.Sprintf("Showing %s %s of %s (%s) rows.", which, formatCount(shown), formatCount(total), FormatPercent(ratio))
	return head, caption
}

// Summary describes the extent of a frame.
type Summary struct {
	Rows  int       `json:"rows"`
	Cols  int       `json:"cols"`
	Start time.Time `json:"start"`
	Span  string    `json:"span"`
	End   time.Time `json:"end"`
}

// Summarize returns the summary of frame.
func Summarize(frame *timeseries.Frame) Summary {
	rows, cols := frame.Shape()
	s := Summary{Rows: rows, Cols: cols}
	if lo, hi, ok := frame.Limits(); ok {
		s.Start, s.End = lo, hi
		s.Span = FormatSeconds(hi.Sub(lo).Seconds())
	}
	return s
}

// ColumnOverview holds summary statistics for one column.
type ColumnOverview struct {
	Column string `json:"column"`
	Dtype  string `json:"dtype"`
	Memory string `json:"memory"`
	NaN    string `json:"nan"`
	Min    string `json:"min"`
	Mean   string `json:"mean"`
	Max    string `json:"max"`
	Sum    string `json:"sum"`
}

// DataOverview describes every column of a frame.
type DataOverview struct {
	Caption string           `json:"caption"`
	Columns []ColumnOverview `json:"columns"`
}

const valueSize = 8

// NewDataOverview computes the overview of frame.
func NewDataOverview(frame *timeseries.Frame) DataOverview {
	rows, cols := frame.Shape()
	size := int64(frame.Size())
	indexBytes := int64(rows) * valueSize

	elements := formatCount(int(size))
	overview := DataOverview{
		Caption: fmt.Sprintf("Data has shape %dx%d and contains %s elements, using %s of memory (including %s for index=%q of type DatetimeIndex[datetime64[ns]]).",
			rows, cols, elements, FormatBytes(size*valueSize+indexBytes), FormatBytes(indexBytes), frame.IndexName),
	}

	for _, st := range frame.Describe() {
		nan := math.NaN()
		if rows > 0 {
			nan = 1 - st.NonNull
		}
		overview.Columns = append(overview.Columns, ColumnOverview{
			Column: st.Column,
			Dtype:  "float64",
			Memory: FormatBytes(int64(rows) * valueSize),
			NaN:    FormatPercent(nan),
			Min:    formatStat(st.Min),
			Mean:   formatStat(st.Mean),
			Max:    formatStat(st.Max),
			Sum:    formatStat(st.Sum),
		})
	}
	return overview
}

func formatCount(n int) string {
	if n > 9999 {
		return GroupDigits(int64(n))
	}
	return strconv.Itoa(n)
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return MakeFormatter(v)(v)
}

// About returns the help text shown in the about view, as markdown.
func About(cfg *config.Config, version string) string {
	var b strings.Builder
	b.WriteString("## Time Split\n")
	b.WriteString("This application is designed to help experiment with time-based splitting parameters.\n\n")
	b.WriteString("#### 🚀 Getting started\n")
	b.WriteString("1. Use the `⚙️ Configure data` menu to select a datetime range or a dataset.\n")
	b.WriteString("2. Use the sidebar widgets to control how the data is split.\n")
	b.WriteString("3. Use the `📊 Folds` and `📈 Aggregations per fold` tabs to explore the effects.\n\n")
	b.WriteString("#### ⚙️ Server configuration\n")
	b.WriteString("These values cannot be changed.\n\n")
	b.WriteString(cfg.ServerConfigInfo())
	b.WriteString("\n### Version\n")
	fmt.Fprintf(&b, "Server version is `%s`. Copy one of the snippets from the `📊 Folds` tab to get started.\n", version)
	return b.String()
}
