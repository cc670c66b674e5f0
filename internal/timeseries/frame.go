package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Column is a named numeric column. Missing values are NaN.
type Column struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Frame is an in-memory table indexed by time.
type Frame struct {
	IndexName string
	Index     []time.Time
	Columns   []Column
}

// New creates a frame, verifying that every column matches the index length
// and that column names are unique.
func New(indexName string, index []time.Time, columns ...Column) (*Frame, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if len(c.Values) != len(index) {
			return nil, fmt.Errorf("column %q has %d values, expected %d", c.Name, len(c.Values), len(index))
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
	}
	return &Frame{IndexName: indexName, Index: index, Columns: columns}, nil
}

// MustNew is like New but panics on error.
func MustNew(indexName string, index []time.Time, columns ...Column) *Frame {
	f, err := New(indexName, index, columns...)
	if err != nil {
		panic(err)
	}
	return f
}

// DateRange returns timestamps from start to end inclusive, step apart.
func DateRange(start, end time.Time, step time.Duration) []time.Time {
	if step <= 0 || end.Before(start) {
		return nil
	}
	index := make([]time.Time, 0, int(end.Sub(start)/step)+1)
	for t := start; !t.After(end); t = t.Add(step) {
		index = append(index, t)
	}
	return index
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Index)
}

// Shape returns the number of rows and columns.
func (f *Frame) Shape() (int, int) {
	if f == nil {
		return 0, 0
	}
	return len(f.Index), len(f.Columns)
}

// Size returns rows times columns.
func (f *Frame) Size() int {
	rows, cols := f.Shape()
	return rows * cols
}

// ColumnNames returns the column names in order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (f *Frame) Column(name string) (Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Points returns the named column as points.
func (f *Frame) Points(name string) []Point {
	c, ok := f.Column(name)
	if !ok {
		return nil
	}
	points := make([]Point, len(f.Index))
	for i, t := range f.Index {
		points[i] = NewPoint(t, c.Values[i])
	}
	return points
}

// Take returns a new frame with the given rows, in the given order.
func (f *Frame) Take(rows []int) *Frame {
	out := &Frame{IndexName: f.IndexName, Index: make([]time.Time, len(rows))}
	for i, r := range rows {
		out.Index[i] = f.Index[r]
	}
	out.Columns = make([]Column, len(f.Columns))
	for j, c := range f.Columns {
		values := make([]float64, len(rows))
		for i, r := range rows {
			values[i] = c.Values[r]
		}
		out.Columns[j] = Column{Name: c.Name, Values: values}
	}
	return out
}

// slice returns a view of rows [lo, hi).
func (f *Frame) slice(lo, hi int) *Frame {
	out := &Frame{IndexName: f.IndexName, Index: f.Index[lo:hi], Columns: make([]Column, len(f.Columns))}
	for j, c := range f.Columns {
		out.Columns[j] = Column{Name: c.Name, Values: c.Values[lo:hi]}
	}
	return out
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > f.Len() {
		n = f.Len()
	}
	if n < 0 {
		n = 0
	}
	return f.slice(0, n)
}

// Select returns a frame holding only the named columns.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := &Frame{IndexName: f.IndexName, Index: f.Index}
	for _, name := range names {
		c, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		out.Columns = append(out.Columns, c)
	}
	return out, nil
}

// IsSorted reports whether the index is non-decreasing.
func (f *Frame) IsSorted() bool {
	return sort.SliceIsSorted(f.Index, func(i, j int) bool { return f.Index[i].Before(f.Index[j]) })
}

// Sorted returns f sorted by index. Equal timestamps keep their order.
func (f *Frame) Sorted() *Frame {
	if f.IsSorted() {
		return f
	}
	rows := make([]int, len(f.Index))
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(i, j int) bool { return f.Index[rows[i]].Before(f.Index[rows[j]]) })
	return f.Take(rows)
}

// Between returns the rows with start <= t < end. The frame must be sorted.
func (f *Frame) Between(start, end time.Time) *Frame {
	lo := sort.Search(len(f.Index), func(i int) bool { return !f.Index[i].Before(start) })
	hi := sort.Search(len(f.Index), func(i int) bool { return !f.Index[i].Before(end) })
	if hi < lo {
		hi = lo
	}
	return f.slice(lo, hi)
}

// Limits returns the smallest and largest index values.
func (f *Frame) Limits() (time.Time, time.Time, bool) {
	if f.Len() == 0 {
		return time.Time{}, time.Time{}, false
	}
	lo, hi := f.Index[0], f.Index[0]
	for _, t := range f.Index[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	return lo, hi, true
}

// DuplicatedIndex marks every row whose index value occurs more than once.
func (f *Frame) DuplicatedIndex() []bool {
	counts := make(map[int64]int, len(f.Index))
	for _, t := range f.Index {
		counts[t.UnixNano()]++
	}
	mask := make([]bool, len(f.Index))
	for i, t := range f.Index {
		mask[i] = counts[t.UnixNano()] > 1
	}
	return mask
}

// IndexIsUnique reports whether no index value is repeated.
func (f *Frame) IndexIsUnique() bool {
	seen := make(map[int64]struct{}, len(f.Index))
	for _, t := range f.Index {
		key := t.UnixNano()
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}

// Span returns the time between the first and last index value in hours.
func (f *Frame) Span() float64 {
	lo, hi, ok := f.Limits()
	if !ok {
		return math.NaN()
	}
	return hi.Sub(lo).Hours()
}
