package scaffold

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/timesplit/internal/datasets"
)

func TestCreate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "my-app")

	files, err := Create(out)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"Dockerfile",
		"README.md",
		"entrypoint.sh",
		"extensions.env",
		"my_extensions.go",
		"start-dev.sh",
		"datasets/datasets.toml",
		"datasets/sample.csv",
	}, files)

	for _, f := range files {
		info, err := os.Stat(filepath.Join(out, filepath.FromSlash(f)))
		require.NoError(t, err, f)
		assert.NotZero(t, info.Size(), f)
	}

	for _, script := range []string{"entrypoint.sh", "start-dev.sh"} {
		info, err := os.Stat(filepath.Join(out, script))
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&0o100, "%s is not executable", script)
	}

	readme, err := os.ReadFile(filepath.Join(out, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "# my-app")

	ext, err := os.ReadFile(filepath.Join(out, "my_extensions.go"))
	require.NoError(t, err)
	assert.Contains(t, string(ext), `plugins.RegisterLoader("my-dataset-loader"`)
}

func TestCreateBundledDatasetLoads(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app")
	_, err := Create(out)
	require.NoError(t, err)

	_, configs, err := datasets.LoadConfigs(filepath.Join(out, "datasets", "datasets.toml"))
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "Sample data", configs[0].Label)

	ds, err := datasets.LoadDataset(configs[0])
	require.NoError(t, err)
	assert.Equal(t, 14*24*12+1, ds.Frame.Len())
	assert.Equal(t, []string{"column 0", "column 1", "column 2"}, ds.Frame.ColumnNames())
	assert.Contains(t, ds.Description, "Generated by `timesplit new`")
}

func TestCreateExisting(t *testing.T) {
	out := t.TempDir()

	_, err := Create(out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExists))
}
