package datasets

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// FileSuffixes are the permitted file types, in display order.
var FileSuffixes = []string{"csv", "json", "parq", "parquet", "feather", "ftr", "orc"}

// CompressionSuffixes are the permitted compression types.
var CompressionSuffixes = []string{"zip", "gzip", "bz2", "zstd", "xz", "tar"}

// ErrUnsupportedFormat is returned when reading a recognised but unsupported format.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ReadFunc parses a decompressed stream into a table.
type ReadFunc func(r io.Reader, kwargs Kwargs) (*Table, error)

// ReadFunction pairs a file format with its reader.
type ReadFunction struct {
	Format      string
	Compression string
	Read        ReadFunc
	// Options are the accepted read_function_kwargs.
	Options []string
}

var readFunctions = map[string]ReadFunction{
	"csv":     {Format: "csv", Read: readCSV, Options: csvOptions},
	"json":    {Format: "json", Read: readJSON, Options: jsonOptions},
	"parq":    {Format: "parquet", Read: unsupported("parquet")},
	"parquet": {Format: "parquet", Read: unsupported("parquet")},
	"feather": {Format: "feather", Read: unsupported("feather")},
	"ftr":     {Format: "feather", Read: unsupported("feather")},
	"orc":     {Format: "orc", Read: unsupported("orc")},
}

// ReadFunctionError is returned when no reader matches a path.
type ReadFunctionError struct {
	Suffix string
	Path   string
}

func (e *ReadFunctionError) Error() string {
	quoted := make([]string, len(FileSuffixes))
	for i, s := range FileSuffixes {
		quoted[i] = "'" + s + "'"
	}
	return fmt.Sprintf("Could not derive a read function; suffix='%s' (from path='%s') not in (%s).",
		e.Suffix, e.Path, strings.Join(quoted, ", "))
}

// ReadFunctionFor derives a reader from the suffixes of path. When the last
// suffix is a compression suffix, the format is taken from the one before it.
func ReadFunctionFor(path string) (ReadFunction, error) {
	parts := strings.Split(path, ".")
	if len(parts) > 4 {
		parts = parts[len(parts)-4:]
	}

	var suffix, compression string
	last := parts[len(parts)-1]
	if isCompression(last) && len(parts) > 1 {
		compression = last
		if len(parts) > 2 {
			suffix = parts[len(parts)-2]
		}
	} else if len(parts) > 1 {
		suffix = last
	}

	rf, ok := readFunctions[strings.ToLower(suffix)]
	if !ok {
		return ReadFunction{}, &ReadFunctionError{Suffix: suffix, Path: path}
	}
	rf.Compression = compression
	return rf, nil
}

func isCompression(suffix string) bool {
	for _, s := range CompressionSuffixes {
		if s == suffix {
			return true
		}
	}
	return false
}

func unsupported(format string) ReadFunc {
	return func(io.Reader, Kwargs) (*Table, error) {
		return nil, fmt.Errorf("reading %s files: %w", format, ErrUnsupportedFormat)
	}
}

// checkKwargs verifies that every option is accepted by the reader for path.
func checkKwargs(path string, kwargs map[string]any) error {
	rf, err := ReadFunctionFor(path)
	if err != nil {
		return err
	}
	accepted := make(map[string]bool, len(rf.Options))
	for _, o := range rf.Options {
		accepted[o] = true
	}
	for key := range kwargs {
		if !accepted[key] {
			return fmt.Errorf("unexpected read_function_kwargs key %q for %s files; expected one of %v", key, rf.Format, rf.Options)
		}
	}
	return nil
}
