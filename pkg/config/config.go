package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/akak/unused-dep/pkg/manifest"
)

// Config holds all configuration options for unused-dep.
type Config struct {
	// Manifest to compare against
	Manifest ManifestConfig `koanf:"manifest" toml:"manifest"`

	// Source file selection and scan limits
	Scan ScanConfig `koanf:"scan" toml:"scan"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// ManifestConfig selects the manifest and its dependency sections.
type ManifestConfig struct {
	Path     string   `koanf:"path" toml:"path"`
	Sections []string `koanf:"sections" toml:"sections"`
}

// ScanConfig controls which files are scanned and how.
type ScanConfig struct {
	Pattern        string `koanf:"pattern" toml:"pattern"`
	MaxParallel    int    `koanf:"max_parallel" toml:"max_parallel"`
	IncludeRequire bool   `koanf:"include_require" toml:"include_require"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, json, markdown, toon, yaml
	Color  bool   `koanf:"color" toml:"color"`
}

// Formats accepted by output.format.
var Formats = []string{"text", "json", "markdown", "toon", "yaml"}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Manifest: ManifestConfig{
			Path:     "./package.json",
			Sections: []string{manifest.SectionDependencies},
		},
		Scan: ScanConfig{
			Pattern:     "src/**/*.ts",
			MaxParallel: 100,
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				"node_modules",
				".git",
				".unused-dep",
				"dist",
				"build",
				"coverage",
			},
			Patterns: []string{
				"*.d.ts",
				"*.min.js",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: false,
			Dir:     ".unused-dep/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// Load loads configuration from a file, on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	return cfg, nil
}

// ConfigNames are the file names searched for, in order.
var ConfigNames = []string{
	"unused-dep.toml",
	"unused-dep.yaml",
	"unused-dep.yml",
	"unused-dep.json",
	".unused-dep.toml",
	".unused-dep.yaml",
	".unused-dep.yml",
	".unused-dep.json",
}

// SearchDirs are the directories searched for a config file, in order.
var SearchDirs = []string{".", ".unused-dep"}

// LoadResult is a loaded configuration and where it came from.
type LoadResult struct {
	Config *Config
	// Source is the file the config was read from, empty for defaults.
	Source string
}

type loadOptions struct {
	path string
	dirs []string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads exactly this file. A missing file is an error.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchDirs replaces the directories searched for a config file.
func WithSearchDirs(dirs ...string) LoadOption {
	return func(o *loadOptions) {
		o.dirs = dirs
	}
}

// LoadConfig loads an explicit config file, or the first config found in
// the search directories, or the defaults when there is none.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{dirs: SearchDirs}
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	if path := find(o.dirs); path != "" {
		cfg, err := Load(path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: path}, nil
	}

	return &LoadResult{Config: DefaultConfig()}, nil
}

func find(dirs []string) string {
	for _, dir := range dirs {
		for _, name := range ConfigNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// Validate checks that every setting is in range.
func (c *Config) Validate() error {
	var errs []error

	if c.Manifest.Path == "" {
		errs = append(errs, errors.New("manifest.path must not be empty"))
	}
	if len(c.Manifest.Sections) == 0 {
		errs = append(errs, errors.New("manifest.sections must not be empty"))
	}
	for _, s := range c.Manifest.Sections {
		if !contains(manifest.KnownSections, s) {
			errs = append(errs, fmt.Errorf("manifest.sections: unknown section %q (want one of %s)",
				s, strings.Join(manifest.KnownSections, ", ")))
		}
	}
	if c.Scan.Pattern == "" {
		errs = append(errs, errors.New("scan.pattern must not be empty"))
	}
	if c.Scan.MaxParallel <= 0 {
		errs = append(errs, fmt.Errorf("scan.max_parallel must be positive, got %d", c.Scan.MaxParallel))
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir must not be empty when the cache is enabled"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %d", c.Cache.TTL))
	}
	if !contains(Formats, strings.ToLower(c.Output.Format)) {
		errs = append(errs, fmt.Errorf("output.format: unknown format %q (want one of %s)",
			c.Output.Format, strings.Join(Formats, ", ")))
	}

	return errors.Join(errs...)
}

// ShouldExclude checks if a path should be excluded from scanning.
func (c *Config) ShouldExclude(path string) bool {
	path = filepath.ToSlash(path)

	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, "/"+dir+"/") || strings.HasPrefix(path, dir+"/") {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
