package datasets

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// IndexKind describes the index a reader produced.
type IndexKind int

const (
	// RangeIndex is a positional index
	RangeIndex IndexKind = iota
	// ObjectIndex holds raw labels
	ObjectIndex
	// DatetimeIndex holds timestamps
	DatetimeIndex
)

func (k IndexKind) String() string {
	switch k {
	case DatetimeIndex:
		return "DatetimeIndex"
	case ObjectIndex:
		return "Index"
	default:
		return "RangeIndex"
	}
}

// Table is the raw output of a reader: string cells stored column by column
// along with the index the reader produced.
type Table struct {
	IndexName string
	IndexKind IndexKind
	Labels    []string
	Times     []time.Time
	Header    []string
	Cells     [][]string
}

// Rows returns the number of rows.
func (t *Table) Rows() int {
	if len(t.Cells) > 0 {
		return len(t.Cells[0])
	}
	return len(t.Labels)
}

func (t *Table) columnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// setIndex moves a column into the index.
func (t *Table) setIndex(pos int) {
	t.IndexName = t.Header[pos]
	t.IndexKind = ObjectIndex
	t.Labels = t.Cells[pos]
	t.Header = append(t.Header[:pos:pos], t.Header[pos+1:]...)
	t.Cells = append(t.Cells[:pos:pos], t.Cells[pos+1:]...)
}

// parseIndexDates converts the index labels to timestamps, leaving the
// index untouched if any label does not parse.
func (t *Table) parseIndexDates() {
	times := make([]time.Time, len(t.Labels))
	for i, label := range t.Labels {
		ts, ok := parseIndexLabel(label)
		if !ok {
			return
		}
		times[i] = ts
	}
	t.Times = times
	t.IndexKind = DatetimeIndex
}

// toFrame converts the table to a frame with numeric columns. Columns with
// cells that are not numbers are skipped and returned by name.
func (t *Table) toFrame() (*timeseries.Frame, []string, error) {
	if t.IndexKind != DatetimeIndex {
		return nil, nil, fmt.Errorf("index is a %s", t.IndexKind)
	}

	var columns []timeseries.Column
	var skipped []string
	for j, name := range t.Header {
		values, ok := parseNumbers(t.Cells[j])
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		columns = append(columns, timeseries.Column{Name: name, Values: values})
	}

	frame, err := timeseries.New(t.IndexName, t.Times, columns...)
	if err != nil {
		return nil, nil, err
	}
	return frame, skipped, nil
}

func parseNumbers(cells []string) ([]float64, bool) {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		cell = strings.TrimSpace(cell)
		switch strings.ToLower(cell) {
		case "", "nan", "null", "none", "na", "n/a":
			values[i] = math.NaN()
			continue
		case "true":
			values[i] = 1
			continue
		case "false":
			values[i] = 0
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}
