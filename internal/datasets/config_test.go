package datasets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigs(t *testing.T) {
	_, configs, err := LoadConfigs(filepath.Join("testdata", "ok.toml"))
	require.NoError(t, err)

	expected := []DatasetConfig{{
		Label:              "ok",
		Path:               filepath.Join("testdata", "data.csv.zip"),
		Index:              UseOriginalIndex,
		Aggregations:       map[string]string{"x": "sum"},
		Description:        "",
		ReadFunctionKwargs: map[string]any{"index_col": "date", "parse_dates": true},
	}}
	if diff := cmp.Diff(expected, configs); diff != "" {
		t.Errorf("LoadConfigs() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigsBadPath(t *testing.T) {
	_, _, err := LoadConfigs(filepath.Join("testdata", "bad-path.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not derive a read function; suffix='xlsx'")

	var rfErr *ReadFunctionError
	require.True(t, errors.As(err, &rfErr))
	assert.Equal(t, "xlsx", rfErr.Suffix)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "bad-path", cfgErr.Section)
}

func TestLoadConfigsDuplicateLabel(t *testing.T) {
	_, _, err := LoadConfigs(filepath.Join("testdata", "duplicate-label.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate label: 'ok'")

	var dupErr *DuplicateLabelError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, filepath.Join("testdata", "data.csv.zip"), dupErr.Previous.Path)
	assert.Equal(t, filepath.Join("testdata", "other.csv"), dupErr.Current.Path)
	assert.Contains(t, err.Error(), "previous=DatasetConfig(label='ok'")
}

func TestLoadConfigsUnknownKey(t *testing.T) {
	_, _, err := LoadConfigs(filepath.Join("testdata", "unknown-key.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ok.colour")
}

func TestLoadConfigsBadKwargs(t *testing.T) {
	_, _, err := LoadConfigs(filepath.Join("testdata", "bad-kwargs.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unexpected read_function_kwargs key "index_col" for json files`)
}

func TestLoadConfigsRemote(t *testing.T) {
	_, _, err := LoadConfigs("s3://bucket/datasets.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote paths are not supported")
}

func TestLoadConfigsMissing(t *testing.T) {
	_, _, err := LoadConfigs(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseConfigsOrderAndDefaults(t *testing.T) {
	data := []byte(`
[zebra]
path = "/data/z.csv"
description = """
Zebra counts.
Collected daily.
"""

[alpha]
label = "Alpha"
path = "/data/a.json.gz"
index = "ts"
`)
	// gz is not a compression suffix, so the format suffix is "gz".
	_, err := ParseConfigs(data, "", Digest{})
	require.Error(t, err)

	data = []byte(`
[zebra]
path = "/data/z.csv"
description = """
Zebra counts.
Collected daily.
"""

[alpha]
label = "Alpha"
path = "/data/a.json.gzip"
index = "ts"
`)
	configs, err := ParseConfigs(data, "", Digest{})
	require.NoError(t, err)
	require.Len(t, configs, 2)

	assert.Equal(t, "zebra", configs[0].Label)
	assert.Equal(t, UseOriginalIndex, configs[0].Index)
	assert.Equal(t, "Zebra counts.", configs[0].Summary())

	assert.Equal(t, "Alpha", configs[1].Label)
	assert.Equal(t, "ts", configs[1].Index)
	assert.Equal(t, "/data/a.json.gzip", configs[1].Path)
}

func TestLoadConfigsRelativePaths(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "datasets.toml")
	content := []byte("[rel]\npath = \"sub/data.csv\"\n\n[abs]\npath = \"/data/a.csv\"\n")
	require.NoError(t, os.WriteFile(file, content, 0o600))

	_, configs, err := LoadConfigs(file)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	byLabel := map[string]string{}
	for _, c := range configs {
		byLabel[c.Label] = c.Path
	}
	assert.Equal(t, filepath.Join(dir, "sub", "data.csv"), byLabel["rel"])
	assert.Equal(t, "/data/a.csv", byLabel["abs"])

	// Without a file name, paths are left as written.
	configs, err = ParseConfigs(content, "", Digest{})
	require.NoError(t, err)
	for _, c := range configs {
		assert.NotEqual(t, filepath.Join(dir, "sub", "data.csv"), c.Path)
	}
}

func TestDigest(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "datasets.toml")

	content := []byte("[ok]\npath = \"data.csv\"\n")
	require.NoError(t, os.WriteFile(file, content, 0o600))

	first, _, err := LoadConfigs(file)
	require.NoError(t, err)
	second, _, err := LoadConfigs(file)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.False(t, first.IsZero())
	assert.Len(t, first.Prefixed(), 66)

	require.NoError(t, os.WriteFile(file, append(content, '\n'), 0o600))
	third, _, err := LoadConfigs(file)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestReadFunctionFor(t *testing.T) {
	tests := []struct {
		path        string
		format      string
		compression string
		wantErr     bool
	}{
		{"data.csv", "csv", "", false},
		{"data.csv.zip", "csv", "zip", false},
		{"dir.v2/data.json.xz", "json", "xz", false},
		{"data.parq", "parquet", "", false},
		{"data.ftr.zstd", "feather", "zstd", false},
		{"data.xlsx", "", "", true},
		{"data", "", "", true},
		{"data.zip", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rf, err := ReadFunctionFor(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.path)
				}
				return
			}
			require.NoError(t, err)
			if rf.Format != tt.format {
				t.Errorf("Expected format %q, got %q", tt.format, rf.Format)
			}
			if rf.Compression != tt.compression {
				t.Errorf("Expected compression %q, got %q", tt.compression, rf.Compression)
			}
		})
	}
}

func TestReadFunctionErrorMessage(t *testing.T) {
	_, err := ReadFunctionFor("/tmp/data.xlsx")
	expected := "Could not derive a read function; suffix='xlsx' (from path='/tmp/data.xlsx') not in " +
		"('csv', 'json', 'parq', 'parquet', 'feather', 'ftr', 'orc')."
	if err == nil || err.Error() != expected {
		t.Errorf("Expected %q, got %v", expected, err)
	}
}
