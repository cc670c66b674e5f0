package datasets

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadUpload(t *testing.T) {
	table, err := ReadUpload("my-data.csv", strings.NewReader("Timestamp,x,label\n2019-05-12,19,b\n2019-05-11,20,a\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Timestamp", "x", "label"}, table.IndexChoices())

	index := table.DetectIndex()
	assert.Equal(t, "Timestamp", index)

	frame, skipped, err := table.Frame(index)
	require.NoError(t, err)
	assert.Equal(t, []string{"label"}, skipped)
	assert.Equal(t, []time.Time{
		time.Date(2019, 5, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2019, 5, 12, 0, 0, 0, 0, time.UTC),
	}, frame.Index)

	// The table is left as read.
	assert.Equal(t, RangeIndex, table.IndexKind)
	assert.Len(t, table.Header, 3)
}

func TestReadUploadCompressed(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sampleCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	table, err := ReadUpload("data.csv.gzip", &buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Rows())
}

func TestReadUploadDecompressedLimit(t *testing.T) {
	var content strings.Builder
	content.WriteString("date,x\n")
	start := time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10_000; i++ {
		content.WriteString(start.AddDate(0, 0, i).Format(time.DateOnly) + ",1\n")
	}

	compress := func() *bytes.Buffer {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write([]byte(content.String()))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return &buf
	}

	buf := compress()
	require.Less(t, buf.Len(), 64<<10)
	_, err := ReadUpload("data.csv.gzip", buf, 64<<10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge), err)

	table, err := ReadUpload("data.csv.gzip", compress(), int64(content.Len()))
	require.NoError(t, err)
	assert.Equal(t, 10_000, table.Rows())
}

func TestReadUploadBadSuffix(t *testing.T) {
	_, err := ReadUpload("data.xlsx", strings.NewReader(""), 0)
	var rfe *ReadFunctionError
	assert.True(t, errors.As(err, &rfe))
}

func TestDetectIndexNone(t *testing.T) {
	table, err := ReadUpload("data.csv", strings.NewReader("when,x\n2019-05-11,1\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, "", table.DetectIndex())

	_, _, err = table.Frame(UseOriginalIndex)
	var bad *BadIndexError
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, RangeIndex, bad.Kind)
}

func TestUploadDuplicateIndex(t *testing.T) {
	table, err := ReadUpload("data.csv", strings.NewReader("date,x\n2019-05-11,1\n2019-05-11,2\n2019-05-12,3\n"), 0)
	require.NoError(t, err)

	_, _, err = table.Frame("date")
	var dup *DuplicateIndexError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, 2, dup.NDuplicated)
	assert.Equal(t, 3, dup.NTotal)
}
