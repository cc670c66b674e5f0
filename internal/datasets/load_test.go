package datasets

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const sampleCSV = "date,x\n2019-05-11,20\n2019-05-12,19\n"

// setupDataset copies the named config into a temporary directory next to a
// zipped data.csv holding content.
func setupDataset(t *testing.T, config, content string) DatasetConfig {
	t.Helper()
	dir := t.TempDir()

	toml, err := os.ReadFile(filepath.Join("testdata", config+".toml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datasets.toml"), toml, 0o600))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("data.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.csv.zip"), buf.Bytes(), 0o600))

	_, configs, err := LoadConfigs(filepath.Join(dir, "datasets.toml"))
	require.NoError(t, err)
	require.NotEmpty(t, configs)
	return configs[0]
}

func TestLoadDataset(t *testing.T) {
	for _, name := range []string{"ok", "ok-explicit-index"} {
		t.Run(name, func(t *testing.T) {
			cfg := setupDataset(t, name, sampleCSV)

			ds, err := LoadDataset(cfg)
			require.NoError(t, err)

			assert.Equal(t, "ok", ds.Label)
			assert.Equal(t, "date", ds.Frame.IndexName)
			assert.Equal(t, []string{"x"}, ds.Frame.ColumnNames())
			assert.Equal(t, time.Date(2019, 5, 11, 0, 0, 0, 0, time.UTC), ds.Frame.Index[0])

			sum, err := ds.Frame.Aggregate(ds.Aggregations)
			require.NoError(t, err)
			assert.Equal(t, 39.0, sum["x"])
		})
	}
}

func TestLoadDatasetBadIndex(t *testing.T) {
	cfg := setupDataset(t, "bad-index-type", sampleCSV)

	_, err := LoadDataset(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad index; expected a DatetimeIndex but got Index.")

	var badIndex *BadIndexError
	require.True(t, errors.As(err, &badIndex))
	assert.Equal(t, ObjectIndex, badIndex.Kind)
}

func TestLoadDatasetDuplicateIndex(t *testing.T) {
	var b strings.Builder
	b.WriteString("date,x\n")
	for i := 0; i < 8; i++ {
		b.WriteString("2019-05-11,20\n2019-05-12,19\n")
	}
	b.WriteString("2025-01-01,2025\n")

	cfg := setupDataset(t, "ok", b.String())

	_, err := LoadDataset(cfg)
	require.Error(t, err)

	var dupErr *DuplicateIndexError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, 5, dupErr.Samples.Len())
	assert.Equal(t, 16, dupErr.NDuplicated)
	assert.Equal(t, 17, dupErr.NTotal)
	assert.Contains(t, dupErr.Note(), "2019-05-11")
	assert.Contains(t, dupErr.Note(), "showing 3/16 duplicate rows")

	// Latest first.
	assert.Equal(t, time.Date(2019, 5, 12, 0, 0, 0, 0, time.UTC), dupErr.Samples.Index[0])
	assert.Equal(t, time.Date(2019, 5, 11, 0, 0, 0, 0, time.UTC), dupErr.Samples.Index[4])
}

func TestLoadDatasetUnknownAggregationColumn(t *testing.T) {
	cfg := setupDataset(t, "ok", sampleCSV)
	cfg.Aggregations = map[string]string{"y": "sum"}

	_, err := LoadDataset(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `aggregation column "y"`)
}

func TestLoadDatasetUnknownAggregation(t *testing.T) {
	cfg := setupDataset(t, "ok", sampleCSV)
	cfg.Aggregations = map[string]string{"x": "mode"}

	_, err := LoadDataset(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "x"`)
}

func TestFrameFromPathNoVerify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,x\n2019-05-11,1\n2019-05-11,2\n"), 0o600))

	frame, _, err := FrameFromPath(path, "date", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 2, frame.Len())

	_, _, err = FrameFromPath(path, "date", nil, true)
	var dupErr *DuplicateIndexError
	assert.True(t, errors.As(err, &dupErr))
}

func TestFrameFromPathSkipsTextColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	content := "when,city,cases\n2020-01-01 00:00,Oslo,3\n2020-01-01 01:00,Lund,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	frame, skipped, err := FrameFromPath(path, "when", nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"city"}, skipped)
	assert.Equal(t, []string{"cases"}, frame.ColumnNames())
	assert.True(t, frame.Points("cases")[1].IsMissing())
}

func TestFrameFromPathBadIndexValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,x\nyesterday,1\n"), 0o600))

	_, _, err := FrameFromPath(path, "date", nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cannot parse "yesterday"`)
}

func TestFrameFromPathRangeIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	_, _, err := FrameFromPath(path, UseOriginalIndex, nil, true)
	assert.EqualError(t, err, "Bad index; expected a DatetimeIndex but got RangeIndex.")
}

func TestFrameFromPathCompression(t *testing.T) {
	compressors := map[string]func(t *testing.T, data []byte) []byte{
		"gzip": func(t *testing.T, data []byte) []byte {
			var buf bytes.Buffer
			w := gzip.NewWriter(&buf)
			_, err := w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			return buf.Bytes()
		},
		"zstd": func(t *testing.T, data []byte) []byte {
			enc, err := zstd.NewWriter(nil)
			require.NoError(t, err)
			defer enc.Close()
			return enc.EncodeAll(data, nil)
		},
		"xz": func(t *testing.T, data []byte) []byte {
			var buf bytes.Buffer
			w, err := xz.NewWriter(&buf)
			require.NoError(t, err)
			_, err = w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			return buf.Bytes()
		},
	}

	for suffix, compress := range compressors {
		t.Run(suffix, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data.csv."+suffix)
			require.NoError(t, os.WriteFile(path, compress(t, []byte(sampleCSV)), 0o600))

			frame, _, err := FrameFromPath(path, "date", nil, true)
			require.NoError(t, err)
			assert.Equal(t, 2, frame.Len())
		})
	}
}

func TestOpenZipRequiresSingleMember(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"a.csv", "b.csv"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(sampleCSV))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "data.csv.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	_, _, err := FrameFromPath(path, "date", nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a single file")
}

func TestFrameFromPathUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.parquet")
	require.NoError(t, os.WriteFile(path, []byte("PAR1"), 0o600))

	_, _, err := FrameFromPath(path, UseOriginalIndex, nil, true)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
