package display

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aaronlmathis/timesplit/internal/split"
	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// Reserved aggregation columns added to every fold.
const (
	RowsColumn  = "n_rows"
	HoursColumn = "n_hours"
)

// Dataset labels for the two parts of a fold.
const (
	DataLabel   = "Data"
	FutureLabel = "Future data"
)

// AggregationRow holds the aggregated values of one part of one fold.
type AggregationRow struct {
	FoldNo  int                `json:"fold_no"`
	Fold    time.Time          `json:"fold"`
	Dataset string             `json:"dataset"`
	Values  map[string]float64 `json:"values"`
}

// MarshalJSON encodes NaN values as null.
func (r AggregationRow) MarshalJSON() ([]byte, error) {
	values := make(map[string]*float64, len(r.Values))
	for k, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			values[k] = nil
			continue
		}
		v := v
		values[k] = &v
	}
	type row AggregationRow
	return json.Marshal(struct {
		row
		Values map[string]*float64 `json:"values"`
	}{row: row(r), Values: values})
}

// Aggregations are per-fold aggregation results, two rows per fold.
type Aggregations struct {
	Columns []string         `json:"columns"`
	Rows    []AggregationRow `json:"rows"`
}

// AggregateFolds aggregates the data and future data of every fold using
// aggregations (column name to function name). The reserved columns n_rows
// and n_hours are always added and may not be redefined.
func AggregateFolds(frame *timeseries.Frame, folds []split.Fold, aggregations map[string]string) (*Aggregations, error) {
	for _, reserved := range []string{RowsColumn, HoursColumn} {
		if _, ok := aggregations[reserved]; ok {
			return nil, fmt.Errorf("column name %q is reserved; rename the column or remove its aggregation", reserved)
		}
	}

	columns := make([]string, 0, len(aggregations))
	for name := range aggregations {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	result := &Aggregations{
		Columns: append([]string{RowsColumn, HoursColumn}, columns...),
		Rows:    make([]AggregationRow, 0, 2*len(folds)),
	}
	for i, fold := range folds {
		for _, part := range []struct {
			label      string
			start, end time.Time
		}{
			{DataLabel, fold.Start, fold.Mid},
			{FutureLabel, fold.Mid, fold.End},
		} {
			values, err := aggregatePart(frame.Between(part.start, part.end), aggregations)
			if err != nil {
				return nil, fmt.Errorf("fold %d: %w", i, err)
			}
			result.Rows = append(result.Rows, AggregationRow{FoldNo: i, Fold: fold.Mid, Dataset: part.label, Values: values})
		}
	}
	return result, nil
}

func aggregatePart(frame *timeseries.Frame, aggregations map[string]string) (map[string]float64, error) {
	values, err := frame.Aggregate(aggregations)
	if err != nil {
		return nil, err
	}
	values[RowsColumn] = float64(frame.Len())
	values[HoursColumn] = frame.Span()
	return values, nil
}

// PivotRow holds one column's values for a single fold.
type PivotRow struct {
	FoldNo int       `json:"fold_no"`
	Fold   time.Time `json:"fold"`
	Data   float64   `json:"data"`
	Future float64   `json:"future"`
}

// Pivot returns the values of column per fold, in fold order.
func (a *Aggregations) Pivot(column string) ([]PivotRow, error) {
	known := false
	for _, c := range a.Columns {
		known = known || c == column
	}
	if !known {
		return nil, fmt.Errorf("column %q not in %v", column, a.Columns)
	}

	var rows []PivotRow
	for _, r := range a.Rows {
		if len(rows) == 0 || rows[len(rows)-1].FoldNo != r.FoldNo {
			rows = append(rows, PivotRow{FoldNo: r.FoldNo, Fold: r.Fold, Data: math.NaN(), Future: math.NaN()})
		}
		last := &rows[len(rows)-1]
		switch r.Dataset {
		case DataLabel:
			last.Data = r.Values[column]
		case FutureLabel:
			last.Future = r.Values[column]
		}
	}
	return rows, nil
}
