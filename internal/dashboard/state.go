package dashboard

import (
	"net/url"
	"strings"

	"github.com/aaronlmathis/timesplit/internal/config"
	"github.com/aaronlmathis/timesplit/internal/query"
)

// Form fields in addition to the query parameters.
const (
	FieldSource          = "source"
	FieldDataset         = "dataset"
	FieldStart           = "start"
	FieldEnd             = "end"
	FieldUpload          = "upload"
	FieldIndex           = "index"
	FieldParams          = "params"
	FieldBarLabels       = "bar_labels"
	FieldTypePreference  = "type_preference"
	FieldTimestampFormat = "timestamp_format"
	// FieldAggregation is followed by a column name.
	FieldAggregation = "agg."
)

// State holds the values of one render pass. Values hold the query
// parameters on the first pass and the submitted form afterwards.
type State struct {
	Values url.Values
	Limits config.Limits
}

// NewState creates the initial state from query parameters.
func NewState(params query.Params, limits config.Limits) State {
	return State{Values: params.Values(), Limits: limits}
}

func (s State) get(key string) string {
	return strings.TrimSpace(s.Values.Get(key))
}

func (s State) has(key string) bool {
	_, ok := s.Values[key]
	return ok && s.get(key) != ""
}

// aggregations returns the per-column choices in the form.
func (s State) aggregations() map[string]string {
	out := make(map[string]string)
	for key := range s.Values {
		if column, ok := strings.CutPrefix(key, FieldAggregation); ok && column != "" {
			out[column] = s.get(key)
		}
	}
	return out
}

// Encode returns the values that reproduce the state, in a stable order.
func (s State) Encode() string {
	return s.Values.Encode()
}
