// Package scaffold creates a new dashboard project: a container build that
// compiles custom extensions into timesplit, and a bundled dataset to start
// from.
package scaffold

import (
	"bytes"
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/aaronlmathis/timesplit/internal/plugins"
	"github.com/aaronlmathis/timesplit/internal/timeseries"
	"github.com/aaronlmathis/timesplit/internal/version"
)

//go:embed all:template
var templateFS embed.FS

// DefaultOut is the default project directory.
const DefaultOut = "my-time-split-app"

// SampleFile is the generated dataset, relative to the project root.
const SampleFile = "datasets/sample.csv"

// Sample data covers two weeks.
var (
	sampleStart = time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC)
	sampleEnd   = time.Date(2019, 4, 15, 0, 0, 0, 0, time.UTC)
)

// ErrExists is returned when the output directory already exists.
var ErrExists = errors.New("output directory already exists")

type templateData struct {
	Name    string
	Version string
	Created string
}

// Create writes a new project to out, which must not exist. It returns the
// created files relative to out.
func Create(out string) ([]string, error) {
	if _, err := os.Stat(out); err == nil {
		return nil, fmt.Errorf("%s: %w", out, ErrExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", out, err)
	}

	abs, err := filepath.Abs(out)
	if err != nil {
		return nil, err
	}
	data := templateData{
		Name:    filepath.Base(abs),
		Version: version.Get().Version,
		Created: time.Now().UTC().Format(time.DateOnly),
	}

	var created []string
	err = fs.WalkDir(templateFS, "template", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel := strings.TrimSuffix(strings.TrimPrefix(name, "template/"), ".tmpl")
		if err := renderFile(name, filepath.Join(out, filepath.FromSlash(rel)), data); err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
		created = append(created, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := writeSample(filepath.Join(out, filepath.FromSlash(SampleFile))); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", SampleFile, err)
	}
	return append(created, SampleFile), nil
}

func renderFile(name, dst string, data templateData) error {
	raw, err := templateFS.ReadFile(name)
	if err != nil {
		return err
	}
	tmpl, err := template.New(path.Base(name)).Parse(string(raw))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, buf.Bytes(), fileMode(name))
}

// fileMode makes scripts executable.
func fileMode(name string) os.FileMode {
	if strings.HasSuffix(name, ".sh") {
		return 0o755
	}
	return 0o644
}

func writeSample(dst string) error {
	frame, err := plugins.GenerateSampleData(sampleStart, sampleEnd)
	if err != nil {
		return err
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{frame.IndexName}, frame.ColumnNames()...)); err != nil {
		return err
	}
	record := make([]string, len(frame.Columns)+1)
	for i, t := range frame.Index {
		record[0] = timeseries.FormatTimestamp(t, false)
		for c, col := range frame.Columns {
			record[c+1] = strconv.FormatFloat(col.Values[i], 'f', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
