// Package display shapes fold and frame data for presentation: overviews,
// per-fold aggregations, formatted numbers and copy-paste code snippets.
package display

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/timesplit/internal/split"
)

// Formatter formats a number.
type Formatter func(float64) string

// MakeFormatter picks a format by the magnitude of v.
func MakeFormatter(v float64) Formatter {
	v = math.Abs(v)
	switch {
	case v > 9999:
		return func(f float64) string { return GroupDigits(int64(f)) }
	case v > 999:
		return func(f float64) string { return strconv.FormatInt(int64(f), 10) }
	case v > 10:
		return func(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) }
	case v > 1:
		return func(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }
	default:
		return func(f float64) string { return strconv.FormatFloat(f, 'g', 4, 64) }
	}
}

// MakeSeriesFormatter picks a format by the mean absolute value of values.
func MakeSeriesFormatter(values []float64) Formatter {
	var total float64
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			total += math.Abs(v)
			n++
		}
	}
	if n == 0 {
		return MakeFormatter(0)
	}
	return MakeFormatter(total / float64(n))
}

// GroupDigits formats n with underscores between groups of three digits.
func GroupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

// FormatSeconds formats a duration in seconds using at most two units, e.g.
// "250 ms", "4.2 sec", "3m 20s" or "12d 6h".
func FormatSeconds(seconds float64) string {
	if seconds < 0 {
		return "-" + FormatSeconds(-seconds)
	}
	if seconds < 1 {
		return fmt.Sprintf("%.0f ms", seconds*1000)
	}
	if seconds < 60 {
		return fmt.Sprintf("%.1f sec", seconds)
	}

	total := int64(math.Round(seconds))
	units := []struct {
		name string
		size int64
	}{{"d", 86400}, {"h", 3600}, {"m", 60}, {"s", 1}}

	for i, u := range units {
		n := total / u.size
		if n == 0 {
			continue
		}
		parts := []string{fmt.Sprintf("%d%s", n, u.name)}
		if i+1 < len(units) {
			if m := (total % u.size) / units[i+1].size; m > 0 {
				parts = append(parts, fmt.Sprintf("%d%s", m, units[i+1].name))
			}
		}
		return strings.Join(parts, " ")
	}
	return "0s"
}

// FormatDuration formats d using FormatSeconds.
func FormatDuration(d time.Duration) string {
	return FormatSeconds(d.Seconds())
}

// FormatBytes formats a size using binary prefixes.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	for _, prefix := range []string{"KiB", "MiB", "GiB", "TiB"} {
		value /= unit
		if value < unit || prefix == "TiB" {
			return fmt.Sprintf("%.1f %s", value, prefix)
		}
	}
	return ""
}

// FormatPercent formats a ratio as a percentage with two decimals.
func FormatPercent(ratio float64) string {
	return strconv.FormatFloat(100*ratio, 'f', 2, 64) + "%"
}

// Timestamp table formats.
const (
	TimestampAuto = "{.auto}"
	TimestampISO  = "{.iso}"
	TimestampDate = "{.date}"
)

// TimestampFormatter returns a function formatting timestamps according to
// format: one of the named formats or a strftime layout such as "%Y-%m-%d %H:%M",
// optionally wrapped as "{:%Y-%m-%d}".
// The auto format drops the time of day when every value is at midnight.
func TimestampFormatter(format string, values []time.Time) (func(time.Time) string, error) {
	switch format {
	case TimestampAuto, "":
		dateOnly := true
		for _, t := range values {
			if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
				dateOnly = false
				break
			}
		}
		if dateOnly {
			return func(t time.Time) string { return t.Format(time.DateOnly) }, nil
		}
		return func(t time.Time) string { return t.Format(time.DateTime) }, nil
	case TimestampISO:
		return func(t time.Time) string { return t.Format("2006-01-02T15:04:05") }, nil
	case TimestampDate:
		return func(t time.Time) string { return t.Format(time.DateOnly) }, nil
	}

	if strings.HasPrefix(format, "{:") && strings.HasSuffix(format, "}") {
		format = format[2 : len(format)-1]
	}
	layout, err := StrftimeLayout(format)
	if err != nil {
		return nil, err
	}
	return func(t time.Time) string { return t.Format(layout) }, nil
}

var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'a': "Mon",
	'A': "Monday",
	'b': "Jan",
	'B': "January",
	'j': "002",
	'f': "000000",
	'z': "-0700",
	'Z': "MST",
	'%': "%",
}

// StrftimeLayout converts a strftime format to a time layout.
func StrftimeLayout(format string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 == len(format) {
			return "", fmt.Errorf("bad format %q: trailing %%", format)
		}
		i++
		layout, ok := strftimeDirectives[format[i]]
		if !ok {
			return "", fmt.Errorf("bad format %q: unknown directive %%%c", format, format[i])
		}
		if format[i] == 'f' {
			if s := b.String(); !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, ",") {
				return "", fmt.Errorf("bad format %q: %%f must follow '.' or ','", format)
			}
		}
		b.WriteString(layout)
	}
	return b.String(), nil
}

// FoldTable formats the start, mid and end of every fold.
func FoldTable(folds []split.Fold, format string) ([][3]string, error) {
	values := make([]time.Time, 0, 3*len(folds))
	for _, f := range folds {
		values = append(values, f.Start, f.Mid, f.End)
	}
	formatter, err := TimestampFormatter(format, values)
	if err != nil {
		return nil, err
	}
	rows := make([][3]string, len(folds))
	for i, f := range folds {
		rows[i] = [3]string{formatter(f.Start), formatter(f.Mid), formatter(f.End)}
	}
	return rows, nil
}
