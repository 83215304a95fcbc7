// Package config loads the YAML configuration describing data sources and
// their descriptors. Descriptors and DataSources are immutable once
// loaded, for the lifetime of a process, as required by the data model.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/watsonlog/tfresolve/pkg/tferrors"
	"github.com/watsonlog/tfresolve/pkg/timeutil"
)

// Descriptor is one (paths, filters, extractor, index) bundle within a
// data source.
type Descriptor struct {
	// SourceName is the name of the data source this descriptor belongs
	// to, filled in by Load (not part of the YAML shape).
	SourceName string `yaml:"-"`

	Paths   []string `yaml:"paths"`
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`

	FileTimeIsEndTime *bool  `yaml:"file_time_is_end_time,omitempty"`
	Extractor         string `yaml:"extractor,omitempty"`

	IndexType string `yaml:"index_type,omitempty"`
	IndexPath string `yaml:"index_path,omitempty"`
	Indexer   string `yaml:"indexer,omitempty"`
}

// IsEndTime reports whether the path-derived timestamp denotes the end of
// the file's data interval. Defaults to true per section 6.
func (d Descriptor) IsEndTime() bool {
	if d.FileTimeIsEndTime == nil {
		return true
	}
	return *d.FileTimeIsEndTime
}

// HasIndex reports whether this descriptor carries enough index
// configuration to be used for indexed resolution or index building.
func (d Descriptor) HasIndex() bool {
	return d.IndexType != "" && d.IndexPath != ""
}

// DataSource is a named set of descriptors.
type DataSource struct {
	Name        string
	Descriptors []Descriptor
}

// Config is the fully loaded, validated configuration document.
type Config struct {
	Sources map[string]DataSource
}

type rawDocument struct {
	Sources map[string][]Descriptor `yaml:"sources"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", tferrors.ErrConfigInvalid, path, err)
	}

	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", tferrors.ErrConfigInvalid, path, err)
	}

	cfg := &Config{Sources: make(map[string]DataSource, len(doc.Sources))}
	for name, descs := range doc.Sources {
		for i := range descs {
			descs[i].SourceName = name
			if descs[i].IndexType == "" {
				descs[i].IndexType = "sqlite"
			}
		}
		cfg.Sources[name] = DataSource{Name: name, Descriptors: descs}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants section 3 and section 6 require: every
// descriptor has at least one path glob, every named extractor is
// registered, index_type is one of the known variants, and no two
// descriptors in DIFFERENT data sources share an index_path (descriptors
// within one data source may share one).
func (c *Config) Validate() error {
	indexOwner := make(map[string]string) // index_path -> source name

	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src := c.Sources[name]
		for _, d := range src.Descriptors {
			if len(d.Paths) == 0 {
				return fmt.Errorf("%w: source %q: descriptor has no paths", tferrors.ErrConfigInvalid, name)
			}
			if d.Extractor != "" && !timeutil.Known(d.Extractor) {
				return fmt.Errorf("%w: source %q: %w", tferrors.ErrConfigInvalid, name, tferrors.ErrExtractorUnknown)
			}
			switch d.IndexType {
			case "", "sqlite", "sqlite_nfs":
			default:
				return fmt.Errorf("%w: source %q: unknown index_type %q", tferrors.ErrConfigInvalid, name, d.IndexType)
			}
			if d.IndexPath == "" {
				continue
			}
			if owner, exists := indexOwner[d.IndexPath]; exists && owner != name {
				return fmt.Errorf("%w: index_path %q shared across sources %q and %q", tferrors.ErrConfigInvalid, d.IndexPath, owner, name)
			}
			indexOwner[d.IndexPath] = name
		}
	}
	return nil
}

// SourceNames returns the configured data source names, sorted.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for name := range c.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
