package display

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/timesplit/internal/split"
)

// TypePreference selects how timestamps and durations are written in code
// snippets.
type TypePreference string

const (
	PreferString TypePreference = "string"
	PreferPython TypePreference = "python"
	PreferPandas TypePreference = "pandas"
)

// TypePreferences lists the preferences in display order.
var TypePreferences = []TypePreference{PreferString, PreferPython, PreferPandas}

// Example returns a sample timestamp written in the preferred style.
func (p TypePreference) Example() string {
	switch p {
	case PreferString:
		return "'2019-05-11'"
	case PreferPython:
		return "datetime(2024, 6, 25)"
	default:
		return "pd.Timestamp('2024-06-25')"
	}
}

// ParseTypePreference parses a preference name, case-insensitively. The
// empty string selects pandas.
func ParseTypePreference(s string) (TypePreference, error) {
	if s == "" {
		return PreferPandas, nil
	}
	p := TypePreference(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range TypePreferences {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown type preference %q; expected one of %v", s, TypePreferences)
}

// Arg is a named argument in a generated call.
type Arg struct {
	Name  string
	Value any
}

// Tuple is rendered as a parenthesised pair.
type Tuple [2]any

// SplitArgs returns kwargs as call arguments.
func SplitArgs(kwargs split.Kwargs) []Arg {
	var schedule any
	switch kwargs.Schedule.Kind {
	case split.Every:
		schedule = kwargs.Schedule.Every
	case split.List:
		schedule = kwargs.Schedule.Times
	default:
		schedule = kwargs.Schedule.Cron
	}

	var expand any = kwargs.ExpandLimits.String()
	if !kwargs.ExpandLimits.Enabled() {
		expand = false
	}

	return []Arg{
		{"schedule", schedule},
		{"before", spanValue(kwargs.Before)},
		{"after", spanValue(kwargs.After)},
		{"step", kwargs.Step},
		{"n_splits", kwargs.NSplits},
		{"expand_limits", expand},
	}
}

func spanValue(s split.Span) any {
	switch s.Kind {
	case split.Steps:
		return s.Steps
	case split.Length:
		return s.Duration
	default:
		return "all"
	}
}

// Snippets renders copy-paste code for a type preference.
type Snippets struct {
	pref TypePreference
}

// NewSnippets creates a renderer for pref.
func NewSnippets(pref TypePreference) Snippets {
	return Snippets{pref: pref}
}

// SplitCode returns a call computing the folds for limits.
func (s Snippets) SplitCode(kwargs split.Kwargs, limits [2]time.Time) string {
	args := append(SplitArgs(kwargs), Arg{"available", Tuple{limits[0], limits[1]}})
	text := s.makeCall("splits", "split", args)
	text = s.withImports(text)
	return addLoggedSplits(text)
}

// PlotCode returns a call plotting the folds for limits.
func (s Snippets) PlotCode(kwargs split.Kwargs, limits [2]time.Time, plot []Arg) string {
	args := append(SplitArgs(kwargs), Arg{"available", Tuple{limits[0], limits[1]}})
	args = append(args, plot...)
	text := s.makeCall("ax", "plot", args)
	text = "from rics import plotting \n\nplotting.configure()  # Configure plot style\n" + text
	return s.withImports(text)
}

// FoldsCode returns the folds as a literal list.
func (s Snippets) FoldsCode(folds []split.Fold) string {
	var lines []string
	for _, f := range folds {
		start, mid, end := s.repr(f.Start), s.repr(f.Mid), s.repr(f.End)
		if s.pref == PreferPandas {
			lines = append(lines, fmt.Sprintf("    DatetimeSplitBounds(start=%s, mid=%s, end=%s),", start, mid, end))
		} else {
			lines = append(lines, fmt.Sprintf("    (%s, %s, %s),", start, mid, end))
		}
	}
	text := "\nsplits = [\n" + strings.Join(lines, "\n") + "\n]"

	if s.pref == PreferPandas {
		text = "from time_split.types import DatetimeSplitBounds\n" + text
	}
	text = s.withImports(text)
	if s.pref == PreferPandas {
		text = addLoggedSplits(text)
	}
	return stripMidnight(text)
}

func (s Snippets) makeCall(assign, fn string, args []Arg) string {
	lines := make([]string, 0, len(args))
	for _, a := range args {
		if t, ok := a.Value.(Tuple); ok {
			lines = append(lines, fmt.Sprintf("    %s=(%s,", a.Name, s.repr(t[0])))
			lines = append(lines, strings.Repeat(" ", len(a.Name)+6)+s.repr(t[1])+"),")
			continue
		}
		lines = append(lines, fmt.Sprintf("    %s=%s,", a.Name, s.repr(a.Value)))
	}
	text := fmt.Sprintf("\n%s = time_split.%s(\n%s\n)", assign, fn, strings.Join(lines, "\n"))
	return stripMidnight(text)
}

func (s Snippets) withImports(text string) string {
	text = "import time_split\n" + text

	var imports []string
	switch s.pref {
	case PreferPython:
		if strings.Contains(text, "datetime.datetime(") {
			text = strings.ReplaceAll(text, "datetime.datetime(", "datetime(")
			imports = append(imports, "datetime")
		}
		if strings.Contains(text, "datetime.timedelta(") {
			text = strings.ReplaceAll(text, "datetime.timedelta(", "timedelta(")
			imports = append(imports, "timedelta")
		}
		if len(imports) > 0 {
			text = "from datetime import " + strings.Join(imports, ", ") + "\n" + text
		}
	case PreferPandas:
		found := false
		for _, name := range []string{"Timestamp(", "Timedelta("} {
			if strings.Contains(text, name) {
				text = strings.ReplaceAll(text, name, "pd."+name)
				found = true
			}
		}
		if found {
			text = "import pandas as pd\n" + text
		}
	}
	return text
}

func addLoggedSplits(text string) string {
	return text + "\nlogged_splits = time_split.log_split_progress(splits, logger=\"<logger-or-name>\")"
}

func stripMidnight(text string) string {
	text = strings.ReplaceAll(text, " 00:00:00'", "'")
	return strings.ReplaceAll(text, ", 0, 0)", ")")
}

// repr writes v as a literal.
func (s Snippets) repr(v any) string {
	switch v := v.(type) {
	case string:
		return quote(v)
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(v)
	case time.Time:
		return s.timestamp(v)
	case time.Duration:
		return s.timedelta(v)
	case []time.Time:
		parts := make([]string, len(v))
		for i, t := range v {
			parts[i] = s.timestamp(t)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Tuple:
		return "(" + s.repr(v[0]) + ", " + s.repr(v[1]) + ")"
	default:
		return quote(fmt.Sprint(v))
	}
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func (s Snippets) timestamp(t time.Time) string {
	t = t.UTC()
	switch s.pref {
	case PreferString:
		return quote(t.Format(time.DateTime))
	case PreferPython:
		fields := []int{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute()}
		if us := t.Nanosecond() / 1000; us != 0 {
			fields = append(fields, t.Second(), us)
		} else if t.Second() != 0 {
			fields = append(fields, t.Second())
		}
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = strconv.Itoa(f)
		}
		return "datetime.datetime(" + strings.Join(parts, ", ") + ")"
	default:
		return "Timestamp(" + quote(t.Format("2006-01-02 15:04:05.999999999")) + ")"
	}
}

func (s Snippets) timedelta(d time.Duration) string {
	days, rest := splitDays(d)
	seconds := int64(rest / time.Second)
	micros := int64(rest%time.Second) / 1000

	switch s.pref {
	case PreferString:
		// Same as str(datetime.timedelta).
		clock := fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
		if micros != 0 {
			clock += fmt.Sprintf(".%06d", micros)
		}
		if days == 0 {
			return quote(clock)
		}
		unit := "days"
		if days == 1 || days == -1 {
			unit = "day"
		}
		return quote(fmt.Sprintf("%d %s, %s", days, unit, clock))
	case PreferPython:
		var parts []string
		if days != 0 {
			parts = append(parts, fmt.Sprintf("days=%d", days))
		}
		if seconds != 0 {
			parts = append(parts, fmt.Sprintf("seconds=%d", seconds))
		}
		if micros != 0 {
			parts = append(parts, fmt.Sprintf("microseconds=%d", micros))
		}
		if len(parts) == 0 {
			parts = []string{"0"}
		}
		return "datetime.timedelta(" + strings.Join(parts, ", ") + ")"
	default:
		clock := fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
		if micros != 0 {
			clock += fmt.Sprintf(".%06d", micros)
		}
		if days < 0 {
			clock = "+" + clock
		}
		return fmt.Sprintf("Timedelta('%d days %s')", days, clock)
	}
}

// splitDays returns whole days (floored) and the non-negative remainder.
func splitDays(d time.Duration) (int64, time.Duration) {
	days := int64(d / split.Day)
	rest := d % split.Day
	if rest < 0 {
		days--
		rest += split.Day
	}
	return days, rest
}
