package datasets

import (
	"fmt"

	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// Dataset is a loaded dataset.
type Dataset struct {
	DatasetConfig
	Frame *timeseries.Frame `json:"-"`
	// SkippedColumns were dropped because they are not numeric.
	SkippedColumns []string `json:"skipped_columns,omitempty"`
}

// LoadDataset reads the data described by cfg. Every configured aggregation
// must name an existing column and a known aggregation.
func LoadDataset(cfg DatasetConfig) (*Dataset, error) {
	frame, skipped, err := FrameFromPath(cfg.Path, cfg.Index, cfg.ReadFunctionKwargs, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %q: %w", cfg.Label, err)
	}

	ds := &Dataset{DatasetConfig: cfg, Frame: frame, SkippedColumns: skipped}
	if err := ds.checkAggregations(); err != nil {
		return nil, fmt.Errorf("dataset %q: %w", cfg.Label, err)
	}
	return ds, nil
}

func (d *Dataset) checkAggregations() error {
	for column, name := range d.Aggregations {
		if _, ok := d.Frame.Column(column); !ok {
			return fmt.Errorf("aggregation column %q not in %v", column, d.Frame.ColumnNames())
		}
		if _, err := timeseries.Aggregation(name); err != nil {
			return fmt.Errorf("column %q: %w", column, err)
		}
	}
	return nil
}
