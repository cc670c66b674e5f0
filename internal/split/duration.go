package split

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Day is the length of a calendar day in UTC.
const Day = 24 * time.Hour

var unitDurations = map[string]time.Duration{
	"w": 7 * Day, "week": 7 * Day, "weeks": 7 * Day,
	"d": Day, "day": Day, "days": Day,
	"h": time.Hour, "hr": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"ms": time.Millisecond, "us": time.Microsecond, "ns": time.Nanosecond,
}

var (
	termPattern  = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*([a-zA-Z]+)\s*,?`)
	clockPattern = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})$`)
)

// ParseDuration parses durations such as "7d", "3h30m", "1 day" or
// "10 days 6 hours". A trailing "H:MM:SS" clock is accepted after days,
// e.g. "10 days 06:00:00".
func ParseDuration(s string) (time.Duration, error) {
	input := strings.TrimSpace(s)
	if input == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(input); err == nil {
		return d, nil
	}

	negative := false
	rest := input
	if strings.HasPrefix(rest, "-") {
		negative = true
		rest = rest[1:]
	}

	var total time.Duration
	for rest != "" {
		if m := clockPattern.FindStringSubmatch(strings.TrimSpace(rest)); m != nil {
			h, _ := strconv.Atoi(m[1])
			mm, _ := strconv.Atoi(m[2])
			ss, _ := strconv.Atoi(m[3])
			total += time.Duration(h)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second
			break
		}

		m := termPattern.FindStringSubmatch(rest)
		if m == nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		unit, ok := unitDurations[strings.ToLower(m[2])]
		if !ok {
			return 0, fmt.Errorf("invalid duration %q: unknown unit %q", s, m[2])
		}
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += time.Duration(value * float64(unit))
		rest = strings.TrimSpace(rest[len(m[0]):])
	}

	if negative {
		total = -total
	}
	return total, nil
}

// FormatDuration formats d so that ParseDuration accepts it, using days as
// the largest unit: 36h is "1d12h".
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	for _, u := range []struct {
		name string
		size time.Duration
	}{{"d", Day}, {"h", time.Hour}, {"m", time.Minute}, {"s", time.Second}} {
		if n := d / u.size; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, u.name)
			d -= n * u.size
		}
	}
	if d > 0 {
		fmt.Fprintf(&b, "%dns", d)
	}
	return b.String()
}
