package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/timesplit/internal/datasets"
	"github.com/aaronlmathis/timesplit/internal/display"
	"github.com/aaronlmathis/timesplit/internal/plugins"
	"github.com/aaronlmathis/timesplit/internal/query"
	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// Source is where the data of a render pass comes from.
type Source string

const (
	SourceGenerate Source = "generate"
	SourceUpload   Source = "upload"
	SourceBundled  Source = "bundled"
	SourceLoader   Source = "loader"
)

// GeneratedInfo is shown with generated data.
const GeneratedInfo = "This is generated data. Use the `⚙️ Configure data` view to select a dataset."

// SourceOption is a selectable data source.
type SourceOption struct {
	ID      string `json:"id"`
	Source  Source `json:"source"`
	Title   string `json:"title"`
	Caption string `json:"caption,omitempty"`

	loader int
}

// DatasetOption is a selectable bundled dataset.
type DatasetOption struct {
	Index       int    `json:"index"`
	Label       string `json:"label"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
}

// sourceOptions lists the available sources in display order. Generated
// and bundled data are offered whenever data asks for them, so that a link
// to a disabled source fails with an explanation.
func (d *Dashboard) sourceOptions(data query.Data, bundled []*datasets.Dataset) []SourceOption {
	var options []SourceOption
	if d.cfg.Features.DataGenerator || data.Kind == query.DataRange {
		options = append(options, SourceOption{ID: string(SourceGenerate), Source: SourceGenerate, Title: plugins.SampleTitle})
	}
	if d.cfg.Uploads.MaxMB > 0 {
		options = append(options, SourceOption{
			ID: string(SourceUpload), Source: SourceUpload, Title: "📁 Upload",
			Caption: fmt.Sprintf("Limit %d MB.", d.cfg.Uploads.MaxMB),
		})
	}
	if len(bundled) > 0 || data.Kind == query.DataIndex || data.Kind == query.DataLabel {
		options = append(options, SourceOption{
			ID: string(SourceBundled), Source: SourceBundled, Title: "📖 Datasets",
			Caption: fmt.Sprintf("Select one of %d datasets.", len(bundled)),
		})
	}
	for i, l := range d.ext.Loaders {
		options = append(options, SourceOption{
			ID: string(SourceLoader) + ":" + l.Name, Source: SourceLoader,
			Title: l.Title(), Caption: l.Description(), loader: i,
		})
	}
	return options
}

// selectSource picks the submitted source, or the one data refers to.
func (d *Dashboard) selectSource(state State, options []SourceOption, data query.Data) (SourceOption, error) {
	if len(options) == 0 {
		return SourceOption{}, &Problem{
			Title:  "No data sources available.",
			Detail: "Enable the data generator or uploads, or configure datasets or a DATASET_LOADER.",
		}
	}

	if state.has(FieldSource) {
		id := state.get(FieldSource)
		for _, o := range options {
			if o.ID == id {
				return o, nil
			}
		}
		return SourceOption{}, &Problem{Title: fmt.Sprintf("Unknown data source %q.", id)}
	}

	find := func(source Source, loader int) (SourceOption, bool) {
		for _, o := range options {
			if o.Source == source && o.loader == loader {
				return o, true
			}
		}
		return SourceOption{}, false
	}

	switch data.Kind {
	case query.DataRange:
		if o, ok := find(SourceGenerate, 0); ok {
			return o, nil
		}
	case query.DataIndex, query.DataLabel:
		if o, ok := find(SourceBundled, 0); ok {
			return o, nil
		}
	case query.DataBytes:
		if len(d.ext.Loaders) == 0 {
			return SourceOption{}, &Problem{
				Title:  fmt.Sprintf("Cannot use data=%s without a DATASET_LOADER.", data.Encode()),
				Detail: "Byte data is passed to custom dataset loaders.",
			}
		}
		i, _ := plugins.Route(d.ext.Loaders, data.Bytes)
		if o, ok := find(SourceLoader, i); ok {
			return o, nil
		}
	default:
		return options[0], nil
	}
	return options[0], nil
}

// loaded is the output of a data source.
type loaded struct {
	frame        *timeseries.Frame
	aggregations map[string]string
	data         query.Data
	info         string
	warnings     []string
}

func (d *Dashboard) load(ctx context.Context, state State, params query.Params, bundled []*datasets.Dataset, v *View) (*loaded, error) {
	switch v.Source.Source {
	case SourceGenerate:
		return d.loadGenerated(state, params, v)
	case SourceUpload:
		return d.loadUpload(state, v)
	case SourceBundled:
		return d.loadBundled(state, params, bundled, v)
	default:
		return d.loadCustom(ctx, state, params, v)
	}
}

func (d *Dashboard) loadGenerated(state State, params query.Params, v *View) (*loaded, error) {
	if !d.cfg.Features.DataGenerator {
		return nil, &Problem{Title: fmt.Sprintf("Cannot use data=%s with ENABLE_DATA_GENERATOR=false", params.Data.Encode())}
	}

	start, end := d.sample.InitialRange()
	if params.Data.Kind == query.DataRange {
		start, end = params.Data.Start, params.Data.End
	}
	for _, field := range []struct {
		key string
		t   *time.Time
	}{{FieldStart, &start}, {FieldEnd, &end}} {
		if !state.has(field.key) {
			continue
		}
		t, err := timeseries.ParseTimestamp(state.get(field.key))
		if err != nil {
			return nil, &Problem{Title: fmt.Sprintf("Bad %s=%q.", field.key, state.get(field.key)), Err: err}
		}
		*field.t = t
	}
	v.Range = [2]time.Time{start, end}

	frame, err := d.sample.LoadRange(start, end)
	if errors.Is(err, plugins.ErrBadRange) {
		return nil, &Problem{Title: "Select a valid range.", Detail: fmt.Sprintf("Start %s must be before end %s.", start, end)}
	}
	if err != nil {
		return nil, &Problem{Title: "Failed to generate data.", Err: err}
	}
	return &loaded{frame: frame, data: query.RangeData(start, end), info: GeneratedInfo}, nil
}

func (d *Dashboard) loadUpload(state State, v *View) (*loaded, error) {
	id := state.get(FieldUpload)
	if id == "" {
		return nil, &Problem{Title: "Upload a file to continue.", Detail: fmt.Sprintf("Limit %d MB.", d.cfg.Uploads.MaxMB)}
	}
	upload, ok := d.uploads.Get(id)
	if !ok {
		return nil, &Problem{Title: "The uploaded file has expired.", Detail: "Upload the file again to continue."}
	}
	v.Upload = upload
	v.IndexChoices = upload.Table.IndexChoices()

	index := state.get(FieldIndex)
	if index == "" {
		index = upload.Table.DetectIndex()
	}
	v.Index = index
	if index == "" {
		return nil, &Problem{Title: "Select a datetime-like index column to continue."}
	}

	frame, skipped, err := upload.Table.Frame(index)
	if err != nil {
		return nil, indexProblem(err)
	}
	l := &loaded{frame: frame, info: upload.Caption()}
	if len(skipped) > 0 {
		l.warnings = append(l.warnings, fmt.Sprintf("Skipped non-numeric columns: %s.", strings.Join(skipped, ", ")))
	}
	return l, nil
}

func (d *Dashboard) loadBundled(state State, params query.Params, bundled []*datasets.Dataset, v *View) (*loaded, error) {
	for i, ds := range bundled {
		v.Datasets = append(v.Datasets, DatasetOption{Index: i, Label: ds.Label, Summary: ds.Summary(), Description: ds.Description})
	}
	v.DatasetWidget = "select"
	if len(bundled) <= d.cfg.Datasets.RadioLimit {
		v.DatasetWidget = "radio"
	}
	if len(bundled) == 0 {
		return nil, &Problem{
			Title:  "No datasets available.",
			Detail: fmt.Sprintf("Check the dataset configuration at DATASETS_CONFIG_PATH=%q.", d.cfg.Datasets.ConfigPath),
		}
	}

	i := 0
	switch {
	case state.has(FieldDataset):
		n, err := strconv.Atoi(state.get(FieldDataset))
		if err != nil {
			return nil, &Problem{Title: fmt.Sprintf("Bad dataset=%q.", state.get(FieldDataset)), Err: err}
		}
		i = n
	case params.Data.Kind == query.DataIndex:
		i = params.Data.Index
	case params.Data.Kind == query.DataLabel:
		i = -1
		want := query.NormalizeDataset(params.Data.Label)
		labels := make([]string, len(bundled))
		for j, ds := range bundled {
			labels[j] = query.NormalizeDataset(ds.Label)
			if labels[j] == want && i < 0 {
				i = j
			}
		}
		if i < 0 {
			return nil, &Problem{
				Title:  fmt.Sprintf("Unknown dataset %q.", params.Data.Label),
				Detail: fmt.Sprintf("Available datasets: %s.", strings.Join(labels, ", ")),
			}
		}
	}
	if i < 0 || i >= len(bundled) {
		return nil, &Problem{
			Title:  fmt.Sprintf("Bad dataset index=%d.", i),
			Detail: fmt.Sprintf("Select one of %d datasets.", len(bundled)),
		}
	}

	ds := bundled[i]
	v.Dataset = i
	return &loaded{
		frame:        ds.Frame,
		aggregations: ds.Aggregations,
		data:         query.LabelData(ds.Label),
		info:         ds.Description,
	}, nil
}

func (d *Dashboard) loadCustom(ctx context.Context, state State, params query.Params, v *View) (*loaded, error) {
	no := v.Source.loader
	loader := d.ext.Loaders[no]

	var raw []byte
	if state.has(FieldParams) {
		raw = []byte(state.get(FieldParams))
	} else if params.Data.Kind == query.DataBytes {
		if i, rest := plugins.Route(d.ext.Loaders, params.Data.Bytes); i == no {
			raw = rest
		}
	}

	result, err := loader.Load(ctx, raw)
	if err != nil {
		return nil, &Problem{Title: fmt.Sprintf("Failed to load data using %s.", loader.Title()), Err: err}
	}
	result, warnings, err := plugins.CheckResult(loader, result, no == 0)
	if err != nil {
		return nil, &Problem{Title: "Bad dataset loader.", Err: err}
	}
	v.LoaderParams = string(result.Params)

	return &loaded{
		frame:        result.Frame.Sorted(),
		aggregations: result.Aggregations,
		data:         query.BytesData(loader.Tag(result.Params)),
		info:         loader.Description(),
		warnings:     warnings,
	}, nil
}

func indexProblem(err error) *Problem {
	var dup *datasets.DuplicateIndexError
	if errors.As(err, &dup) {
		return &Problem{
			Title:  dup.Error(),
			Detail: fmt.Sprintf("Found %d duplicate index values out of %d rows.\n%s", dup.NDuplicated, dup.NTotal, dup.Note()),
			Err:    err,
		}
	}
	var bad *datasets.BadIndexError
	if errors.As(err, &bad) {
		return &Problem{Title: "Data must have a DatetimeIndex.", Err: err}
	}
	return &Problem{Title: "Failed to read data.", Err: err}
}

// loadCaption is shown once data is ready.
func loadCaption(frame *timeseries.Frame, elapsed time.Duration) string {
	rows, cols := frame.Shape()
	return fmt.Sprintf("Finished loading dataset of type `Frame` and `shape=%dx%d` in `%s`.",
		rows, cols, display.FormatSeconds(elapsed.Seconds()))
}
