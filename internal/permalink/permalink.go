// Package permalink creates links that reproduce the current selections.
package permalink

import (
	"net/url"
	"strings"

	"github.com/aaronlmathis/timesplit/internal/query"
	"github.com/aaronlmathis/timesplit/internal/split"
)

// DefaultHost is used when no public base address is configured.
const DefaultHost = "http://localhost:8501/"

// Plot holds the figure options of the current view.
type Plot struct {
	ShowRemoved bool
	// BarLabels cannot be passed in a link and is ignored.
	BarLabels string
}

// LinkFn creates a link to host for the given selections.
type LinkFn func(host string, kwargs split.Kwargs, plot Plot, data query.Data) string

// Host returns base, or DefaultHost and true if base is empty.
func Host(base string) (string, bool) {
	if strings.TrimSpace(base) == "" {
		return DefaultHost, true
	}
	return base, false
}

// Params converts the selections to URL parameters.
func Params(kwargs split.Kwargs, plot Plot, data query.Data) query.Params {
	schedule := kwargs.Schedule.String()
	before := kwargs.Before.String()
	after := kwargs.After.String()
	step := kwargs.Step
	nSplits := kwargs.NSplits
	showRemoved := plot.ShowRemoved

	expand := query.ExpandLimits{Enabled: kwargs.ExpandLimits.Enabled()}
	if expand.Enabled && !kwargs.ExpandLimits.Auto {
		expand.Spec = kwargs.ExpandLimits.String()
	}

	return query.Params{
		Schedule:     &schedule,
		Before:       &before,
		After:        &after,
		Step:         &step,
		NSplits:      &nSplits,
		ExpandLimits: &expand,
		ShowRemoved:  &showRemoved,
		Data:         data,
	}
}

// CreateExplorerLink returns host with the selections encoded as query
// parameters. Ranges are written as a pair of UNIX timestamps and bytes as
// upper-case hex prefixed by "0x".
func CreateExplorerLink(host string, kwargs split.Kwargs, plot Plot, data query.Data) string {
	values := Params(kwargs, plot, data).Values()
	return host + "?" + encode(values)
}

// encode is url.Values.Encode with a fixed key order matching the form.
func encode(values url.Values) string {
	order := []string{
		query.KeySchedule, query.KeyBefore, query.KeyAfter, query.KeyStep,
		query.KeyNSplits, query.KeyExpandLimits, query.KeyShowRemoved, query.KeyData,
	}

	var b strings.Builder
	for _, key := range order {
		v, ok := values[key]
		if !ok || len(v) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v[0]))
	}
	return b.String()
}

