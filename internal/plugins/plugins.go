// Package plugins holds the registry of user-provided extensions: custom
// dataset loaders and replacements for the parameter selector, the fold
// figure, the permalink and the initial generator range. Extensions are
// registered by name at startup and selected by the extension settings.
package plugins

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

//go:generate go run go.uber.org/mock/mockgen@v0.5.2 -destination=mock/loader.mock.go -package=mock github.com/aaronlmathis/timesplit/internal/plugins DataLoader

// DataLoader loads data from a custom source.
type DataLoader interface {
	// Title is shown as the name of the data source.
	Title() string
	// Description is shown below the title.
	Description() string
	// Prefix identifies the loader when its parameters are round tripped in
	// a link. A nil prefix is derived from the registered name.
	Prefix() []byte
	// Load returns the data. Params are the bytes passed in the data URL
	// parameter, or nil.
	Load(ctx context.Context, params []byte) (Result, error)
}

// Result is the output of a DataLoader. Params may be passed back to Load to
// recreate the frame; HasParams tells whether they were set.
type Result struct {
	Frame        *timeseries.Frame
	Aggregations map[string]string
	Params       []byte
	HasParams    bool
}

// ImplementationError is returned when an extension breaks its contract.
type ImplementationError struct {
	Type   string
	Reason string
}

func (e *ImplementationError) Error() string {
	return fmt.Sprintf("Bad implementation %s: %s", e.Type, e.Reason)
}

// ParamsWarning is emitted when a secondary loader returns parameters.
const ParamsWarning = "Params are only supported for the primary loader."

// Loader is a registered DataLoader with its effective prefix.
type Loader struct {
	DataLoader
	Name   string
	prefix []byte
}

// NewLoader checks the prefix of dl and derives one from name if needed.
func NewLoader(name string, dl DataLoader) (*Loader, error) {
	first := dl.Prefix()
	second := dl.Prefix()
	if !bytes.Equal(first, second) || (first == nil) != (second == nil) {
		return nil, &ImplementationError{
			Type:   typeName(dl),
			Reason: fmt.Sprintf("Prefix(): Prefixes first=%q and second=%q do not match.", first, second),
		}
	}

	if first == nil {
		return &Loader{DataLoader: dl, Name: name, prefix: DerivePrefix(name)}, nil
	}
	if len(first) == 0 {
		return nil, &ImplementationError{
			Type:   typeName(dl),
			Reason: "Prefix(): Prefix is empty; return nil instead.",
		}
	}
	return &Loader{DataLoader: dl, Name: name, prefix: bytes.Clone(first)}, nil
}

// Prefix returns the effective prefix.
func (l *Loader) Prefix() []byte {
	return l.prefix
}

// Tag prepends the loader prefix to params.
func (l *Loader) Tag(params []byte) []byte {
	return append(bytes.Clone(l.prefix), params...)
}

// DerivePrefix returns the prefix used for loaders without one.
func DerivePrefix(name string) []byte {
	sum := sha256.Sum256([]byte(name))
	return sum[:4]
}

// Route picks the loader for data passed in a link. The loader whose prefix
// data starts with receives the remaining bytes. Untagged data goes to the
// first loader as is.
func Route(loaders []*Loader, data []byte) (int, []byte) {
	for i, l := range loaders {
		if bytes.HasPrefix(data, l.prefix) {
			return i, data[len(l.prefix):]
		}
	}
	return 0, data
}

// CheckResult verifies the output of loader. Only the primary loader may
// return params; params from other loaders are dropped with a warning.
func CheckResult(loader DataLoader, result Result, primary bool) (Result, []string, error) {
	bad := func(reason string) error {
		return &ImplementationError{
			Type: typeName(loader),
			Reason: fmt.Sprintf("Must return either a tuple `(df, aggregations, params)` or just `DataFrame`. Got: %s. %s",
				describe(result), reason),
		}
	}

	if result.Frame == nil {
		return Result{}, nil, bad("The frame is nil.")
	}
	if result.Params != nil && !result.HasParams {
		return Result{}, nil, bad("Params are set but HasParams is false.")
	}

	var warnings []string
	if result.HasParams && !primary {
		if len(result.Params) > 0 {
			warnings = append(warnings, fmt.Sprintf("%s The parameters %q returned by %s will be ignored.",
				ParamsWarning, result.Params, typeName(loader)))
		}
		result.Params = nil
		result.HasParams = false
	}

	if result.Aggregations == nil {
		result.Aggregations = map[string]string{}
	}
	for column, agg := range result.Aggregations {
		if _, ok := result.Frame.Column(column); !ok {
			return Result{}, warnings, bad(fmt.Sprintf("Aggregation column %q is not in %v.", column, result.Frame.ColumnNames()))
		}
		if _, err := timeseries.Aggregation(agg); err != nil {
			return Result{}, warnings, bad(err.Error())
		}
	}
	return result, warnings, nil
}

func describe(r Result) string {
	frame := "nil"
	if r.Frame != nil {
		rows, cols := r.Frame.Shape()
		frame = fmt.Sprintf("Frame(shape=%dx%d)", rows, cols)
	}
	if !r.HasParams {
		return frame
	}
	return fmt.Sprintf("(%s, %v, %q)", frame, r.Aggregations, r.Params)
}

func typeName(v any) string {
	if l, ok := v.(*Loader); ok {
		v = l.DataLoader
	}
	return fmt.Sprintf("%T", v)
}
