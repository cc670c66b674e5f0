// Package query decodes the URL parameters that preselect dashboard values.
//
// For example /?n_splits=3&step=3&show_removed=true yields
//
//	Params{Step: 3, NSplits: 3, ShowRemoved: true}
//
// with every other field unset.
package query

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Parameter names.
const (
	KeySchedule     = "schedule"
	KeyStep         = "step"
	KeyNSplits      = "n_splits"
	KeyBefore       = "before"
	KeyAfter        = "after"
	KeyExpandLimits = "expand_limits"
	KeyShowRemoved  = "show_removed"
	KeyData         = "data"
)

// maxValueLength bounds every parameter value.
const maxValueLength = 4096

// ErrInvalid is matched by every parameter error.
var ErrInvalid = errors.New("invalid query parameter")

// Error describes a rejected parameter value.
type Error struct {
	Parameter string
	Value     string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("Bad value='%s' for parameter='%s'", e.Value, e.Parameter)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalid}
	}
	return []error{ErrInvalid, e.Err}
}

// ExpandLimits is either a boolean or a free-form level spec. The value
// "auto" is the same as true.
type ExpandLimits struct {
	Spec    string
	Enabled bool
}

func (e ExpandLimits) String() string {
	if e.Spec != "" {
		return e.Spec
	}
	return strconv.FormatBool(e.Enabled)
}

// Params are the parameters which may be passed in the URL. Nil fields were
// not given.
type Params struct {
	Schedule     *string
	Step         *int
	NSplits      *int
	Before       *string
	After        *string
	ExpandLimits *ExpandLimits
	ShowRemoved  *bool
	Data         Data
}

// IsZero reports whether no parameter was given.
func (p Params) IsZero() bool {
	return p.Schedule == nil && p.Step == nil && p.NSplits == nil && p.Before == nil &&
		p.After == nil && p.ExpandLimits == nil && p.ShowRemoved == nil && p.Data.Kind == DataNone
}

// Parse decodes values. Unknown keys are ignored; when a key is repeated the
// last value wins.
func Parse(values url.Values) (Params, error) {
	var p Params

	get := func(key string) (string, bool, error) {
		v := values[key]
		if len(v) == 0 {
			return "", false, nil
		}
		last := v[len(v)-1]
		if len(last) > maxValueLength {
			return "", false, &Error{Parameter: key, Value: last[:32] + "...", Err: errors.New("value too long")}
		}
		return last, true, nil
	}

	for _, key := range []string{KeySchedule, KeyBefore, KeyAfter} {
		v, ok, err := get(key)
		if err != nil {
			return Params{}, err
		}
		if !ok {
			continue
		}
		s := v
		switch key {
		case KeySchedule:
			p.Schedule = &s
		case KeyBefore:
			p.Before = &s
		case KeyAfter:
			p.After = &s
		}
	}

	for _, key := range []string{KeyStep, KeyNSplits} {
		v, ok, err := get(key)
		if err != nil {
			return Params{}, err
		}
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Params{}, &Error{Parameter: key, Value: v, Err: err}
		}
		if key == KeyStep {
			p.Step = &n
		} else {
			p.NSplits = &n
		}
	}

	if v, ok, err := get(KeyShowRemoved); err != nil {
		return Params{}, err
	} else if ok {
		b, err := parseBool(KeyShowRemoved, v)
		if err != nil {
			return Params{}, err
		}
		p.ShowRemoved = &b
	}

	if v, ok, err := get(KeyExpandLimits); err != nil {
		return Params{}, err
	} else if ok {
		el := ExpandLimits{Spec: v}
		if b, err := parseBool(KeyExpandLimits, v); err == nil {
			el = ExpandLimits{Enabled: b}
		} else if strings.EqualFold(v, "auto") {
			el = ExpandLimits{Enabled: true}
		}
		p.ExpandLimits = &el
	}

	if v, ok, err := get(KeyData); err != nil {
		return Params{}, err
	} else if ok {
		data, err := parseData(v)
		if err != nil {
			return Params{}, err
		}
		p.Data = data
	}

	return p, nil
}

func parseBool(key, value string) (bool, error) {
	switch strings.ToLower(value) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, &Error{Parameter: key, Value: value}
}

func parseData(value string) (Data, error) {
	if rest, ok := strings.CutPrefix(value, "0x"); ok {
		b, err := hex.DecodeString(rest)
		if err != nil {
			return Data{}, &Error{Parameter: KeyData, Value: value, Err: err}
		}
		return BytesData(b), nil
	}
	if start, end, ok := asRange(value); ok {
		return RangeData(ConvertTimestamps(start, end)), nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return IndexData(n), nil
	}
	return LabelData(value), nil
}

// minTimestamp is 1990-01-01, the earliest date the range inputs accept.
const minTimestamp = 631152000

// asRange parses "<start>-<end>" UNIX timestamps.
func asRange(value string) (int64, int64, bool) {
	if strings.Count(value, "-") != 1 {
		return 0, 0, false
	}
	left, right, _ := strings.Cut(value, "-")
	start, err := strconv.ParseInt(strings.TrimSpace(left), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	end, err := strconv.ParseInt(strings.TrimSpace(right), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if start < minTimestamp || end < minTimestamp {
		return 0, 0, false
	}
	return start, end, true
}

// NormalizeDataset normalizes a dataset label by removing markdown
// emphasis, backticks and spaces, and lower-casing the rest.
func NormalizeDataset(label string) string {
	r := strings.NewReplacer("*", "", "`", "", " ", "")
	return strings.ToLower(r.Replace(label))
}

// ToMap returns the parameters keyed by name with prefix prepended. Unset
// parameters are omitted when filter is set.
func (p Params) ToMap(prefix string, filter bool) map[string]any {
	m := map[string]any{
		KeySchedule:     deref(p.Schedule),
		KeyStep:         deref(p.Step),
		KeyNSplits:      deref(p.NSplits),
		KeyBefore:       deref(p.Before),
		KeyAfter:        deref(p.After),
		KeyExpandLimits: nil,
		KeyShowRemoved:  deref(p.ShowRemoved),
		KeyData:         nil,
	}
	if p.ExpandLimits != nil {
		m[KeyExpandLimits] = p.ExpandLimits.String()
	}
	if p.Data.Kind != DataNone {
		m[KeyData] = p.Data.Encode()
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		if filter && v == nil {
			continue
		}
		out[prefix+k] = v
	}
	return out
}

// Fields returns the set parameters as log fields with prefix prepended.
func (p Params) Fields(prefix string) []zap.Field {
	m := p.ToMap(prefix, true)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, len(keys))
	for i, k := range keys {
		fields[i] = zap.Any(k, m[k])
	}
	return fields
}

// Values encodes the set parameters so that Parse returns them again.
func (p Params) Values() url.Values {
	values := url.Values{}
	for k, v := range p.ToMap("", true) {
		values.Set(k, fmt.Sprint(v))
	}
	return values
}

func deref[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
