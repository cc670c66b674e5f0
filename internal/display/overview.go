package display

import (
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/timesplit/internal/split"
)

// Counts holds a value for kept, removed and all folds.
type Counts [3]int64

func (c Counts) join(format func(int64) string) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = format(v)
	}
	return strings.Join(parts, " / ")
}

// Overview summarises folds before and after filtering.
type Overview struct {
	Folds Counts `json:"folds"`
	// DataSeconds and FutureSeconds are the summed fold part lengths.
	DataSeconds   Counts `json:"data_seconds"`
	FutureSeconds Counts `json:"future_seconds"`
	// UsedSeconds is the time between the earliest and latest fold bound.
	UsedSeconds      int64 `json:"used_seconds"`
	AvailableSeconds int64 `json:"available_seconds"`
}

// OverviewHeader names the columns of Overview.Rows.
const OverviewHeader = "Kept / Removed / Total"

// NewOverview summarises kept folds against all folds.
func NewOverview(kept, all []split.Fold, limits [2]time.Time) Overview {
	keptData, keptFuture := foldSeconds(kept)
	allData, allFuture := foldSeconds(all)

	o := Overview{
		Folds:            Counts{int64(len(kept)), int64(len(all) - len(kept)), int64(len(all))},
		DataSeconds:      Counts{keptData, allData - keptData, allData},
		FutureSeconds:    Counts{keptFuture, allFuture - keptFuture, allFuture},
		AvailableSeconds: int64(limits[1].Sub(limits[0]).Seconds()),
	}
	if len(kept) > 0 {
		lo, hi := kept[0].Start, kept[0].End
		for _, f := range kept[1:] {
			if f.Start.Before(lo) {
				lo = f.Start
			}
			if f.End.After(hi) {
				hi = f.End
			}
		}
		o.UsedSeconds = int64(hi.Sub(lo).Seconds())
	}
	return o
}

func foldSeconds(folds []split.Fold) (int64, int64) {
	var data, future time.Duration
	for _, f := range folds {
		data += f.Data()
		future += f.Future()
	}
	return int64(data.Seconds()), int64(future.Seconds())
}

// Utilization returns the fraction of the available time covered by folds.
func (o Overview) Utilization() float64 {
	if o.AvailableSeconds <= 0 {
		return 0
	}
	return float64(o.UsedSeconds) / float64(o.AvailableSeconds)
}

// Row is a labelled overview value.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Rows returns the overview as a table.
func (o Overview) Rows() []Row {
	seconds := func(v int64) string { return FormatSeconds(float64(v)) }
	return []Row{
		{Label: "Fold counts", Value: o.Folds.join(func(v int64) string { return strconv.FormatInt(v, 10) })},
		{Label: "Data time", Value: o.DataSeconds.join(seconds)},
		{Label: "Future data time", Value: o.FutureSeconds.join(seconds)},
	}
}

// UtilizationText describes the data utilization.
func (o Overview) UtilizationText() string {
	return "Folds use " + FormatSeconds(float64(o.UsedSeconds)) + " of " +
		FormatSeconds(float64(o.AvailableSeconds)) + " (" + FormatPercent(o.Utilization()) + ") of the available data."
}
