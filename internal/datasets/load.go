package datasets

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// BadIndexError is returned when data that should carry a datetime index does not.
type BadIndexError struct {
	Kind IndexKind
}

func (e *BadIndexError) Error() string {
	return fmt.Sprintf("Bad index; expected a %s but got %s.", DatetimeIndex, e.Kind)
}

// DuplicateIndexError is returned when the index holds repeated timestamps,
// i.e. the data has not been aggregated.
type DuplicateIndexError struct {
	// Samples holds up to five duplicated rows, latest first.
	Samples     *timeseries.Frame
	NDuplicated int
	NTotal      int
}

func (e *DuplicateIndexError) Error() string {
	return "Data must be pre-aggregated."
}

// Note describes the duplicated rows.
func (e *DuplicateIndexError) Note() string {
	return fmt.Sprintf("Sample data (showing 3/%d duplicate rows):\n%s", e.NDuplicated, FormatRows(e.Samples, 3))
}

const duplicateSamples = 5

func newDuplicateIndexError(frame *timeseries.Frame) *DuplicateIndexError {
	var rows []int
	for i, dup := range frame.DuplicatedIndex() {
		if dup {
			rows = append(rows, i)
		}
	}

	n := len(rows)
	if len(rows) > duplicateSamples {
		rows = rows[:duplicateSamples]
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return frame.Index[rows[i]].After(frame.Index[rows[j]])
	})

	return &DuplicateIndexError{Samples: frame.Take(rows), NDuplicated: n, NTotal: frame.Len()}
}

// FrameFromPath reads a frame from path using the reader derived from its
// suffixes. Index names the index column, or is UseOriginalIndex if the data
// already has a datetime index. With verify set, a repeated index value is a
// *DuplicateIndexError. Columns that are not numeric are returned by name.
func FrameFromPath(path, index string, kwargs map[string]any, verify bool) (*timeseries.Frame, []string, error) {
	rf, err := ReadFunctionFor(path)
	if err != nil {
		return nil, nil, err
	}

	rc, err := openData(path, rf.Compression)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open path=%q: %w", path, err)
	}
	defer rc.Close()

	table, err := rf.Read(rc, kwargs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read path=%q: %w", path, err)
	}

	if err := table.useIndex(index); err != nil {
		return nil, nil, err
	}

	frame, skipped, err := table.toFrame()
	if err != nil {
		return nil, nil, err
	}

	if verify && !frame.IndexIsUnique() {
		return nil, nil, newDuplicateIndexError(frame)
	}
	return frame, skipped, nil
}

// useIndex makes sure the table is datetime indexed by index.
func (t *Table) useIndex(index string) error {
	if index == UseOriginalIndex {
		if t.IndexKind != DatetimeIndex {
			return &BadIndexError{Kind: t.IndexKind}
		}
		return nil
	}

	if pos := t.columnIndex(index); pos >= 0 {
		t.setIndex(pos)
	} else if t.IndexName != index || t.IndexKind == RangeIndex {
		return fmt.Errorf("index column %q not found; columns=%v", index, t.Header)
	}
	if t.IndexKind == DatetimeIndex {
		return nil
	}

	times := make([]time.Time, len(t.Labels))
	for i, label := range t.Labels {
		ts, ok := parseIndexLabel(label)
		if !ok {
			return fmt.Errorf("index column %q: cannot parse %q (row %d) as a timestamp", index, label, i)
		}
		times[i] = ts
	}
	t.Times = times
	t.IndexKind = DatetimeIndex
	return nil
}

// FormatRows renders the first n rows of frame as an aligned text table.
func FormatRows(frame *timeseries.Frame, n int) string {
	head := frame.Head(n)

	header := append([]string{head.IndexName}, head.ColumnNames()...)
	rows := [][]string{header}
	for i, t := range head.Index {
		row := []string{t.Format("2006-01-02 15:04:05")}
		for _, c := range head.Columns {
			row = append(row, strconv.FormatFloat(c.Values[i], 'g', -1, 64))
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for j, cell := range row {
			widths[j] = max(widths[j], len(cell))
		}
	}

	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, cell := range row {
			if j > 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "%-*s", widths[j], cell)
		}
	}
	return strings.TrimRight(b.String(), " ")
}
