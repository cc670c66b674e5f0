package split

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// ScheduleKind tells how fold boundaries are produced.
type ScheduleKind int

const (
	// Cron schedules fire on a cron expression.
	Cron ScheduleKind = iota
	// Every schedules are a fixed duration apart, counted back from the end of the data.
	Every
	// List schedules are explicit timestamps.
	List
)

func (k ScheduleKind) String() string {
	switch k {
	case Cron:
		return "cron"
	case Every:
		return "duration"
	default:
		return "list"
	}
}

// DefaultCron is the initial cron schedule.
const DefaultCron = "0 0 * * MON,FRI"

// maxScheduleLength bounds the number of boundaries a schedule may produce.
const maxScheduleLength = 100_000

// ErrScheduleTooLong is returned when a schedule produces too many boundaries.
var ErrScheduleTooLong = errors.New("schedule produces too many timestamps")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule determines fold boundary timestamps.
type Schedule struct {
	Kind  ScheduleKind
	Cron  string
	Every time.Duration
	Times []time.Time

	cron cron.Schedule
}

// CronSchedule parses a five-field cron expression.
func CronSchedule(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	parsed, err := cronParser.Parse(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("bad cron expression %q: %w", expr, err)
	}
	return Schedule{Kind: Cron, Cron: expr, cron: parsed}, nil
}

// EverySchedule creates boundaries d apart.
func EverySchedule(d time.Duration) (Schedule, error) {
	if d <= 0 {
		return Schedule{}, fmt.Errorf("bad duration=%s; must be positive", FormatDuration(d))
	}
	return Schedule{Kind: Every, Every: d}, nil
}

// ListSchedule creates a schedule from explicit timestamps. They are sorted
// and duplicates are removed.
func ListSchedule(times []time.Time) (Schedule, error) {
	if len(times) == 0 {
		return Schedule{}, errors.New("schedule list is empty")
	}
	sorted := append([]time.Time(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	unique := sorted[:1]
	for _, t := range sorted[1:] {
		if !t.Equal(unique[len(unique)-1]) {
			unique = append(unique, t)
		}
	}
	return Schedule{Kind: List, Times: unique}, nil
}

// ParseList parses a free-form list of timestamps. Both JSON-like lists
// ["2019-04-26", "2019-04-29"] and plain comma or newline separated values
// are accepted.
func ParseList(s string) ([]time.Time, error) {
	s = strings.TrimSpace(s)

	var items []string
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "(") {
		normalized := strings.NewReplacer("'", `"`, "(", "[", ")", "]").Replace(s)
		if err := json.Unmarshal([]byte(normalized), &items); err != nil {
			return nil, fmt.Errorf("bad timestamp list %q: %w", s, err)
		}
	} else {
		items = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == ';' })
	}

	times := make([]time.Time, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		t, err := timeseries.ParseTimestamp(item)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, nil
}

// ParseSchedule interprets s as a list of timestamps, a duration or a cron
// expression, in that order.
func ParseSchedule(s string) (Schedule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Schedule{}, errors.New("empty schedule")
	}
	if times, err := ParseList(s); err == nil {
		return ListSchedule(times)
	}
	if d, err := ParseDuration(s); err == nil {
		return EverySchedule(d)
	}
	return CronSchedule(s)
}

// Timestamps returns the boundaries between start and end, inclusive, in
// ascending order.
func (s Schedule) Timestamps(start, end time.Time) ([]time.Time, error) {
	var out []time.Time
	switch s.Kind {
	case Cron:
		sched := s.cron
		if sched == nil {
			parsed, err := CronSchedule(s.Cron)
			if err != nil {
				return nil, err
			}
			sched = parsed.cron
		}
		for t := sched.Next(start.Add(-time.Nanosecond)); !t.IsZero() && !t.After(end); t = sched.Next(t) {
			if len(out) == maxScheduleLength {
				return nil, fmt.Errorf("%w: cron=%q", ErrScheduleTooLong, s.Cron)
			}
			out = append(out, t)
		}
	case Every:
		if s.Every <= 0 {
			return nil, fmt.Errorf("bad duration=%s; must be positive", FormatDuration(s.Every))
		}
		if n := end.Sub(start) / s.Every; n >= maxScheduleLength {
			return nil, fmt.Errorf("%w: duration=%s", ErrScheduleTooLong, FormatDuration(s.Every))
		}
		for t := end; !t.Before(start); t = t.Add(-s.Every) {
			out = append(out, t)
		}
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	case List:
		for _, t := range s.Times {
			if !t.Before(start) && !t.After(end) {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (s Schedule) String() string {
	switch s.Kind {
	case Cron:
		return s.Cron
	case Every:
		return FormatDuration(s.Every)
	default:
		parts := make([]string, len(s.Times))
		for i, t := range s.Times {
			parts[i] = `"` + timeseries.FormatTimestamp(t, true) + `"`
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
}
