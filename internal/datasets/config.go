package datasets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// UseOriginalIndex indicates that the dataset already has a datetime-like index.
const UseOriginalIndex = "__INDEX__"

// Digest is the SHA-256 hash of a dataset config file.
type Digest [sha256.Size]byte

// String returns the digest as lower-case hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Prefixed returns the digest as "0x"-prefixed hex.
func (d Digest) Prefixed() string {
	return "0x" + d.String()
}

// IsZero reports whether d is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// DatasetConfig is the configuration of a dataset on disk.
type DatasetConfig struct {
	// Label is the name shown in the UI. Defaults to the section header.
	Label string `json:"label"`
	// Path to the data. Relative paths are resolved against the config file directory.
	Path string `json:"path"`
	// Index column. UseOriginalIndex if the data already has a datetime index.
	Index string `json:"index"`
	// Aggregations are default per-column aggregations, e.g. {"cases": "max"}.
	Aggregations map[string]string `json:"aggregations,omitempty"`
	// Description is shown in the UI. The first line is used as a summary.
	Description string `json:"description,omitempty"`
	// ReadFunctionKwargs are options for the reader derived from Path.
	ReadFunctionKwargs map[string]any `json:"read_function_kwargs,omitempty"`
}

// Summary returns the first line of the description.
func (c DatasetConfig) Summary() string {
	summary, _, _ := strings.Cut(strings.TrimSpace(c.Description), "\n")
	return strings.TrimSpace(summary)
}

func (c DatasetConfig) String() string {
	return fmt.Sprintf("DatasetConfig(label='%s', path='%s', index='%s', aggregations=%v)",
		c.Label, c.Path, c.Index, sortedMap(c.Aggregations))
}

func sortedMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("'%s': '%s'", k, m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// DuplicateLabelError is returned when two sections share a label.
type DuplicateLabelError struct {
	Label    string
	Current  DatasetConfig
	Previous DatasetConfig
}

func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("Duplicate label: '%s'. Current: %s, previous=%s.", e.Label, e.Current, e.Previous)
}

// ConfigError adds the failing section and file to an error.
type ConfigError struct {
	Section string
	File    string
	Digest  Digest
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v (section=%q, file=%q, digest=%s)", e.Err, e.Section, e.File, e.Digest)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

type rawConfig struct {
	Label              *string           `toml:"label"`
	Path               string            `toml:"path"`
	Index              *string           `toml:"index"`
	Aggregations       map[string]string `toml:"aggregations"`
	Description        string            `toml:"description"`
	ReadFunctionKwargs map[string]any    `toml:"read_function_kwargs"`
}

// LoadConfigs reads dataset configs from a TOML file, one per top-level
// table in document order, and returns them with the digest of the file.
func LoadConfigs(file string) (Digest, []DatasetConfig, error) {
	if strings.Contains(file, "://") {
		return Digest{}, nil, fmt.Errorf("cannot load dataset config file=%q: remote paths are not supported", file)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return Digest{}, nil, fmt.Errorf("failed to read dataset config: %w", err)
	}

	digest := Digest(sha256.Sum256(data))
	configs, err := ParseConfigs(data, file, digest)
	return digest, configs, err
}

// ParseConfigs decodes dataset configs. File is used for error context and
// to resolve relative dataset paths.
func ParseConfigs(data []byte, file string, digest Digest) ([]DatasetConfig, error) {
	var raw map[string]toml.Primitive
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset config file=%q: %w", file, err)
	}

	var sections []string
	for _, key := range md.Keys() {
		if len(key) == 1 {
			sections = append(sections, key[0])
		}
	}

	seen := make(map[string]DatasetConfig, len(sections))
	configs := make([]DatasetConfig, 0, len(sections))
	for _, section := range sections {
		cfg, err := createConfig(md, raw[section], section, file, seen)
		if err != nil {
			return nil, &ConfigError{Section: section, File: file, Digest: digest, Err: err}
		}
		configs = append(configs, cfg)
	}

	for _, key := range md.Undecoded() {
		// Reader options are free-form and checked per reader.
		if len(key) > 2 && key[1] == "read_function_kwargs" {
			continue
		}
		return nil, &ConfigError{
			Section: key[0],
			File:    file,
			Digest:  digest,
			Err:     fmt.Errorf("unexpected key %q", key.String()),
		}
	}

	return configs, nil
}

func createConfig(md toml.MetaData, prim toml.Primitive, section, file string, seen map[string]DatasetConfig) (DatasetConfig, error) {
	if md.Type(section) != "Hash" {
		return DatasetConfig{}, fmt.Errorf("expected a table, got %s", md.Type(section))
	}

	var rc rawConfig
	if err := md.PrimitiveDecode(prim, &rc); err != nil {
		return DatasetConfig{}, err
	}
	if !md.IsDefined(section, "path") {
		return DatasetConfig{}, fmt.Errorf("missing required key 'path'")
	}

	cfg := DatasetConfig{
		Label:              section,
		Path:               rc.Path,
		Index:              UseOriginalIndex,
		Aggregations:       rc.Aggregations,
		Description:        rc.Description,
		ReadFunctionKwargs: rc.ReadFunctionKwargs,
	}
	if rc.Label != nil {
		cfg.Label = *rc.Label
	}
	if rc.Index != nil {
		cfg.Index = *rc.Index
	}
	if cfg.Aggregations == nil {
		cfg.Aggregations = map[string]string{}
	}
	if cfg.ReadFunctionKwargs == nil {
		cfg.ReadFunctionKwargs = map[string]any{}
	}
	if cfg.Path != "" && !filepath.IsAbs(cfg.Path) && file != "" {
		cfg.Path = filepath.Join(filepath.Dir(file), cfg.Path)
	}

	if previous, ok := seen[cfg.Label]; ok {
		return DatasetConfig{}, &DuplicateLabelError{Label: cfg.Label, Current: cfg, Previous: previous}
	}

	if _, err := ReadFunctionFor(cfg.Path); err != nil {
		return DatasetConfig{}, err
	}
	if err := checkKwargs(cfg.Path, cfg.ReadFunctionKwargs); err != nil {
		return DatasetConfig{}, err
	}

	seen[cfg.Label] = cfg
	return cfg, nil
}
