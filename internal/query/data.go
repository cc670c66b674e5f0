package query

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DataKind tells which field of Data is set.
type DataKind int

const (
	// DataNone means the parameter was not given.
	DataNone DataKind = iota
	// DataIndex selects a bundled dataset by position.
	DataIndex
	// DataLabel selects a bundled dataset by normalized label.
	DataLabel
	// DataRange selects generated data between two timestamps.
	DataRange
	// DataBytes are opaque parameters for a custom loader.
	DataBytes
)

func (k DataKind) String() string {
	switch k {
	case DataIndex:
		return "index"
	case DataLabel:
		return "label"
	case DataRange:
		return "range"
	case DataBytes:
		return "bytes"
	default:
		return "none"
	}
}

// Data is the value of the data parameter.
type Data struct {
	Kind  DataKind
	Index int
	Label string
	Start time.Time
	End   time.Time
	Bytes []byte
}

// IndexData selects a dataset by position.
func IndexData(i int) Data { return Data{Kind: DataIndex, Index: i} }

// LabelData selects a dataset by label.
func LabelData(label string) Data { return Data{Kind: DataLabel, Label: label} }

// RangeData selects generated data between start and end.
func RangeData(start, end time.Time) Data { return Data{Kind: DataRange, Start: start, End: end} }

// BytesData holds custom loader parameters.
func BytesData(b []byte) Data {
	if b == nil {
		b = []byte{}
	}
	return Data{Kind: DataBytes, Bytes: b}
}

// Encode returns the URL form of d: "<start>-<end>" UNIX timestamps for
// ranges, upper-case hex prefixed by "0x" for bytes.
func (d Data) Encode() string {
	switch d.Kind {
	case DataIndex:
		return strconv.Itoa(d.Index)
	case DataLabel:
		return NormalizeDataset(d.Label)
	case DataRange:
		return fmt.Sprintf("%d-%d", d.Start.Unix(), d.End.Unix())
	case DataBytes:
		return "0x" + strings.ToUpper(hex.EncodeToString(d.Bytes))
	default:
		return ""
	}
}

func (d Data) String() string {
	if d.Kind == DataRange {
		const layout = "2006-01-02 15:04:05"
		return fmt.Sprintf("(%s, %s)", d.Start.Format(layout), d.End.Format(layout))
	}
	return d.Encode()
}

const roundTo = 5 * 60

// ConvertTimestamps converts a pair of UNIX timestamps to UTC times rounded
// to the nearest multiple of five minutes. Ties round to even.
func ConvertTimestamps(start, end int64) (time.Time, time.Time) {
	return roundTimestamp(start), roundTimestamp(end)
}

func roundTimestamp(ts int64) time.Time {
	t := time.Unix(ts, 0).UTC()
	seconds := float64(t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
	delta := math.RoundToEven(seconds/roundTo) * roundTo
	hour := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	return hour.Add(time.Duration(delta) * time.Second)
}
