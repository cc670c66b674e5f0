package split

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SpanKind tells how far a fold reaches from its boundary.
type SpanKind int

const (
	// Steps spans a number of schedule periods.
	Steps SpanKind = iota
	// Length spans a fixed duration.
	Length
	// All spans to the edge of the available data.
	All
)

// Span is the before or after extent of a fold.
type Span struct {
	Kind     SpanKind
	Steps    int
	Duration time.Duration
}

// Default spans.
var (
	DefaultBefore = Span{Kind: Length, Duration: 7 * Day}
	DefaultAfter  = Span{Kind: Steps, Steps: 1}
)

// ParseSpan parses "all", a positive integer or a duration.
func ParseSpan(s string) (Span, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return Span{Kind: All}, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return Span{}, fmt.Errorf("bad span=%d; must be at least 1", n)
		}
		return Span{Kind: Steps, Steps: n}, nil
	}
	d, err := ParseDuration(s)
	if err != nil {
		return Span{}, fmt.Errorf("bad span %q: expected 'all', an integer or a duration", s)
	}
	if d <= 0 {
		return Span{}, fmt.Errorf("bad span=%s; must be positive", FormatDuration(d))
	}
	return Span{Kind: Length, Duration: d}, nil
}

func (s Span) String() string {
	switch s.Kind {
	case All:
		return "all"
	case Length:
		return FormatDuration(s.Duration)
	default:
		return strconv.Itoa(s.Steps)
	}
}
