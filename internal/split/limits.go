package split

import (
	"fmt"
	"strings"
	"time"
)

// Level rounds a limit to a calendar unit when it is within Tolerance of it.
type Level struct {
	Unit      byte
	Tolerance time.Duration
}

func (l Level) String() string {
	return fmt.Sprintf("%c<%s", l.Unit, FormatDuration(l.Tolerance))
}

var levelUnits = map[byte]time.Duration{
	'd': Day,
	'h': time.Hour,
	'm': time.Minute,
	's': time.Second,
}

// AutoLevels are used by the "auto" expansion: days within three hours, then
// hours within fifteen minutes.
var AutoLevels = []Level{
	{Unit: 'd', Tolerance: 3 * time.Hour},
	{Unit: 'h', Tolerance: 15 * time.Minute},
}

// ExpandLimits describes how the available data range is widened before
// folds are computed. A zero value disables expansion.
type ExpandLimits struct {
	Auto   bool
	Levels []Level
}

// Enabled reports whether limits are expanded.
func (e ExpandLimits) Enabled() bool {
	return e.Auto || len(e.Levels) > 0
}

func (e ExpandLimits) levels() []Level {
	if e.Auto {
		return AutoLevels
	}
	return e.Levels
}

func (e ExpandLimits) String() string {
	if e.Auto {
		return "auto"
	}
	if len(e.Levels) == 0 {
		return "false"
	}
	parts := make([]string, len(e.Levels))
	for i, l := range e.Levels {
		parts[i] = l.String()
	}
	return strings.Join(parts, " ")
}

// ParseExpandLimits parses "auto", "true", "false", "" or level specs such as
// "d<3h h<15m", separated by spaces or commas.
func ParseExpandLimits(s string) (ExpandLimits, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "auto", "true", "1":
		return ExpandLimits{Auto: true}, nil
	case "", "false", "0":
		return ExpandLimits{}, nil
	}

	var levels []Level
	for _, spec := range strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' }) {
		unit, tolerance, ok := strings.Cut(spec, "<")
		if !ok || len(unit) != 1 {
			return ExpandLimits{}, fmt.Errorf("bad limits spec %q: expected '<level><<tolerance>', e.g. 'd<3h'", spec)
		}
		if _, ok := levelUnits[unit[0]]; !ok {
			return ExpandLimits{}, fmt.Errorf("bad limits spec %q: level must be one of d, h, m or s", spec)
		}
		d, err := ParseDuration(tolerance)
		if err != nil {
			return ExpandLimits{}, fmt.Errorf("bad limits spec %q: %w", spec, err)
		}
		if d < 0 {
			return ExpandLimits{}, fmt.Errorf("bad limits spec %q: tolerance must not be negative", spec)
		}
		levels = append(levels, Level{Unit: unit[0], Tolerance: d})
	}
	return ExpandLimits{Levels: levels}, nil
}

// Expand widens start down and end up to the first level boundary within
// tolerance. Each side is expanded independently.
func (e ExpandLimits) Expand(start, end time.Time) (time.Time, time.Time) {
	newStart, newEnd := start, end
	startDone, endDone := false, false
	for _, l := range e.levels() {
		size := levelUnits[l.Unit]
		if !startDone {
			if floor := start.Truncate(size); start.Sub(floor) <= l.Tolerance {
				newStart, startDone = floor, true
			}
		}
		if !endDone {
			ceil := end.Truncate(size)
			if ceil.Before(end) {
				ceil = ceil.Add(size)
			}
			if ceil.Sub(end) <= l.Tolerance {
				newEnd, endDone = ceil, true
			}
		}
	}
	return newStart, newEnd
}
