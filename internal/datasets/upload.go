package datasets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aaronlmathis/timesplit/internal/timeseries"
)

// IndexCandidates are the lower-cased column names preselected as the index
// of uploaded data.
var IndexCandidates = []string{"date", "time", "datetime", "timestamp"}

// ErrTooLarge is returned when decompressed upload data exceeds its limit.
var ErrTooLarge = errors.New("decompressed data exceeds the size limit")

// ReadUpload reads uploaded data. The reader and compression are derived
// from the suffixes of name; reader options are not supported. Reading
// stops with ErrTooLarge after maxBytes decompressed bytes, unless maxBytes
// is zero.
func ReadUpload(name string, r io.Reader, maxBytes int64) (*Table, error) {
	rf, err := ReadFunctionFor(name)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "timesplit-upload-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to save upload %q: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	rc, err := openData(path, rf.Compression)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %q: %w", name, err)
	}
	defer rc.Close()

	var data io.Reader = rc
	if maxBytes > 0 {
		data = newCappedReader(rc, maxBytes)
	}
	table, err := rf.Read(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %q: %w", name, err)
	}
	return table, nil
}

// cappedReader fails once more than max bytes have been read.
type cappedReader struct {
	r         io.Reader
	remaining int64
}

func newCappedReader(r io.Reader, max int64) *cappedReader {
	return &cappedReader{r: io.LimitReader(r, max+1), remaining: max}
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

// IndexChoices lists the values accepted by Frame. The original index comes
// first when it is already datetime-like.
func (t *Table) IndexChoices() []string {
	choices := make([]string, 0, len(t.Header)+1)
	if t.IndexKind == DatetimeIndex {
		choices = append(choices, UseOriginalIndex)
	}
	return append(choices, t.Header...)
}

// DetectIndex guesses the index of uploaded data. It returns the empty string
// when no guess can be made.
func (t *Table) DetectIndex() string {
	if t.IndexKind == DatetimeIndex {
		return UseOriginalIndex
	}
	for _, h := range t.Header {
		if slices.Contains(IndexCandidates, strings.ToLower(strings.TrimSpace(h))) {
			return h
		}
	}
	return ""
}

// Frame converts t to a frame indexed by index. The table is not modified.
// Repeated index values are a *DuplicateIndexError.
func (t *Table) Frame(index string) (*timeseries.Frame, []string, error) {
	c := *t
	if err := c.useIndex(index); err != nil {
		return nil, nil, err
	}
	frame, skipped, err := c.toFrame()
	if err != nil {
		return nil, nil, err
	}
	frame = frame.Sorted()
	if err := CheckIndex(frame); err != nil {
		return nil, nil, err
	}
	return frame, skipped, nil
}

// CheckIndex returns a *DuplicateIndexError if the index of frame has
// repeated values.
func CheckIndex(frame *timeseries.Frame) error {
	if frame.IndexIsUnique() {
		return nil
	}
	return newDuplicateIndexError(frame)
}
