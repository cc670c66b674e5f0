// Package split computes the folds explored by the dashboard: boundaries
// from a schedule, spans before and after each boundary, and filters that
// keep the latest folds.
package split

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoFolds is returned when no fold fits in the available data.
var ErrNoFolds = errors.New("no folds")

// Fold is one split of the data. Data is [Start, Mid) and future data is
// [Mid, End).
type Fold struct {
	Start time.Time `json:"start"`
	Mid   time.Time `json:"mid"`
	End   time.Time `json:"end"`
}

// Data returns the length of the data part.
func (f Fold) Data() time.Duration { return f.Mid.Sub(f.Start) }

// Future returns the length of the future data part.
func (f Fold) Future() time.Duration { return f.End.Sub(f.Mid) }

// Kwargs are the splitting parameters.
type Kwargs struct {
	Schedule     Schedule
	Before       Span
	After        Span
	Step         int
	NSplits      int
	ExpandLimits ExpandLimits
}

// DefaultKwargs returns the initial parameters.
func DefaultKwargs() Kwargs {
	schedule, _ := CronSchedule(DefaultCron)
	return Kwargs{
		Schedule:     schedule,
		Before:       DefaultBefore,
		After:        DefaultAfter,
		Step:         1,
		ExpandLimits: ExpandLimits{Auto: true},
	}
}

// Validate checks the filter parameters.
func (k Kwargs) Validate() error {
	if k.Step < 1 {
		return fmt.Errorf("bad step=%d; must be at least 1", k.Step)
	}
	if k.NSplits < 0 {
		return fmt.Errorf("bad n_splits=%d; must not be negative", k.NSplits)
	}
	return nil
}

func (k Kwargs) String() string {
	return fmt.Sprintf("schedule=%q, before=%q, after=%q, step=%d, n_splits=%d, expand_limits=%q",
		k.Schedule, k.Before, k.After, k.Step, k.NSplits, k.ExpandLimits)
}

// Result holds the folds computed for some data.
type Result struct {
	// Available is the original data range.
	Available [2]time.Time
	// Expanded is the range folds are fitted to.
	Expanded [2]time.Time
	// All folds before filtering, oldest first.
	All []Fold
	// Kept marks the folds in All that pass the filters.
	Kept []bool
}

// Folds returns the folds that pass the filters.
func (r *Result) Folds() []Fold {
	var folds []Fold
	for i, f := range r.All {
		if r.Kept[i] {
			folds = append(folds, f)
		}
	}
	return folds
}

// Removed returns the folds dropped by the filters.
func (r *Result) Removed() []Fold {
	var folds []Fold
	for i, f := range r.All {
		if !r.Kept[i] {
			folds = append(folds, f)
		}
	}
	return folds
}

// Plan computes every fold for data in [start, end] and marks those kept by
// the filters.
func Plan(kwargs Kwargs, start, end time.Time) (*Result, error) {
	if err := kwargs.Validate(); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("bad limits: end=%s is before start=%s", end, start)
	}

	lo, hi := start, end
	if kwargs.ExpandLimits.Enabled() {
		lo, hi = kwargs.ExpandLimits.Expand(start, end)
	}

	boundaries, err := kwargs.Schedule.Timestamps(lo, hi)
	if err != nil {
		return nil, err
	}

	var folds []Fold
	for i, mid := range boundaries {
		foldStart, ok := reach(kwargs.Before, boundaries, i, -1, lo, hi)
		if !ok {
			continue
		}
		foldEnd, ok := reach(kwargs.After, boundaries, i, 1, lo, hi)
		if !ok {
			continue
		}
		if foldStart.Before(lo) || foldEnd.After(hi) || !foldStart.Before(mid) || !mid.Before(foldEnd) {
			continue
		}
		folds = append(folds, Fold{Start: foldStart, Mid: mid, End: foldEnd})
	}

	return &Result{
		Available: [2]time.Time{start, end},
		Expanded:  [2]time.Time{lo, hi},
		All:       folds,
		Kept:      filter(len(folds), kwargs.Step, kwargs.NSplits),
	}, nil
}

// reach returns the far edge of span from boundaries[i] in direction dir.
func reach(span Span, boundaries []time.Time, i, dir int, lo, hi time.Time) (time.Time, bool) {
	switch span.Kind {
	case All:
		if dir < 0 {
			return lo, true
		}
		return hi, true
	case Length:
		return boundaries[i].Add(time.Duration(dir) * span.Duration), true
	default:
		j := i + dir*span.Steps
		if j < 0 || j >= len(boundaries) {
			return time.Time{}, false
		}
		return boundaries[j], true
	}
}

// filter keeps every step-th fold counting from the last, then the last
// nSplits of those. Zero nSplits keeps all.
func filter(n, step, nSplits int) []bool {
	kept := make([]bool, n)
	count := 0
	for i := n - 1; i >= 0; i-- {
		if (n-1-i)%step != 0 {
			continue
		}
		if nSplits > 0 && count == nSplits {
			break
		}
		kept[i] = true
		count++
	}
	return kept
}

// Split returns the folds for data in [start, end]. Filters are skipped when
// ignoreFilters is set.
func Split(kwargs Kwargs, start, end time.Time, ignoreFilters bool) ([]Fold, error) {
	result, err := Plan(kwargs, start, end)
	if err != nil {
		return nil, err
	}

	folds := result.Folds()
	if ignoreFilters {
		folds = result.All
	}
	if len(folds) == 0 {
		return nil, NoFoldsError(kwargs, start, end)
	}
	return folds, nil
}

// NoFoldsError wraps ErrNoFolds with the kwargs and range that produced no folds.
func NoFoldsError(kwargs Kwargs, start, end time.Time) error {
	return fmt.Errorf("%w for kwargs=(%s) and available=(%s, %s)",
		ErrNoFolds, kwargs, start.Format(time.DateTime), end.Format(time.DateTime))
}
