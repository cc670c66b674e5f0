package timeseries

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// AggFunc reduces a column to a single value. NaN values are skipped.
type AggFunc func(values []float64) float64

var aggregations = map[string]AggFunc{
	"count":  count,
	"first":  first,
	"last":   last,
	"max":    maximum,
	"mean":   mean,
	"median": median,
	"min":    minimum,
	"std":    std,
	"sum":    sum,
}

// Aggregation returns the named aggregation function.
func Aggregation(name string) (AggFunc, error) {
	fn, ok := aggregations[name]
	if !ok {
		return nil, fmt.Errorf("unknown aggregation %q; expected one of: %s", name, strings.Join(AggregationNames(), ", "))
	}
	return fn, nil
}

// AggregationNames returns the known aggregation names, sorted.
func AggregationNames() []string {
	names := make([]string, 0, len(aggregations))
	for name := range aggregations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aggregate applies spec (column name to aggregation name) to f.
func (f *Frame) Aggregate(spec map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(spec))
	for column, agg := range spec {
		c, ok := f.Column(column)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", column)
		}
		fn, err := Aggregation(agg)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		out[column] = fn(c.Values)
	}
	return out, nil
}

// Stats summarises a column.
type Stats struct {
	Column  string  `json:"column"`
	Count   int     `json:"count"`
	NonNull float64 `json:"non_null"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Sum     float64 `json:"sum"`
}

// Describe returns summary statistics for every column.
func (f *Frame) Describe() []Stats {
	stats := make([]Stats, len(f.Columns))
	for i, c := range f.Columns {
		n := count(c.Values)
		nonNull := math.NaN()
		if len(c.Values) > 0 {
			nonNull = n / float64(len(c.Values))
		}
		stats[i] = Stats{
			Column:  c.Name,
			Count:   int(n),
			NonNull: nonNull,
			Mean:    mean(c.Values),
			Std:     std(c.Values),
			Min:     minimum(c.Values),
			Max:     maximum(c.Values),
			Sum:     sum(c.Values),
		}
	}
	return stats
}

func valid(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func count(values []float64) float64 {
	return float64(len(valid(values)))
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

func mean(values []float64) float64 {
	n := count(values)
	if n == 0 {
		return math.NaN()
	}
	return sum(values) / n
}

// std is the sample standard deviation.
func std(values []float64) float64 {
	vs := valid(values)
	if len(vs) < 2 {
		return math.NaN()
	}
	m := mean(vs)
	ss := 0.0
	for _, v := range vs {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(vs)-1))
}

func minimum(values []float64) float64 {
	vs := valid(values)
	if len(vs) == 0 {
		return math.NaN()
	}
	m := vs[0]
	for _, v := range vs[1:] {
		m = math.Min(m, v)
	}
	return m
}

func maximum(values []float64) float64 {
	vs := valid(values)
	if len(vs) == 0 {
		return math.NaN()
	}
	m := vs[0]
	for _, v := range vs[1:] {
		m = math.Max(m, v)
	}
	return m
}

func median(values []float64) float64 {
	vs := valid(values)
	if len(vs) == 0 {
		return math.NaN()
	}
	sort.Float64s(vs)
	mid := len(vs) / 2
	if len(vs)%2 == 1 {
		return vs[mid]
	}
	return (vs[mid-1] + vs[mid]) / 2
}

func first(values []float64) float64 {
	vs := valid(values)
	if len(vs) == 0 {
		return math.NaN()
	}
	return vs[0]
}

func last(values []float64) float64 {
	vs := valid(values)
	if len(vs) == 0 {
		return math.NaN()
	}
	return vs[len(vs)-1]
}
