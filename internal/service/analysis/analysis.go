// Package analysis runs the unused-dependency check end to end: manifest,
// file discovery, scan, and report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/akak/unused-dep/internal/cache"
	"github.com/akak/unused-dep/internal/fileproc"
	"github.com/akak/unused-dep/internal/report"
	"github.com/akak/unused-dep/internal/scanner"
	"github.com/akak/unused-dep/pkg/analyzer/usage"
	"github.com/akak/unused-dep/pkg/config"
	"github.com/akak/unused-dep/pkg/imports"
	"github.com/akak/unused-dep/pkg/manifest"
)

// ErrNoFiles is returned when the file pattern matches no source file.
var ErrNoFiles = errors.New("no source files found")

// Service orchestrates the unused-dependency check.
type Service struct {
	config  *config.Config
	version string
	debug   bool
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithVersion records the tool version in reports.
func WithVersion(v string) Option {
	return func(s *Service) {
		s.version = v
	}
}

// WithDebug lists per-file errors in the report.
func WithDebug(debug bool) Option {
	return func(s *Service) {
		s.debug = debug
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{config: config.DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the configuration in use.
func (s *Service) Config() *config.Config {
	return s.config
}

// Hooks observe a run. Every field is optional.
type Hooks struct {
	// OnFiles is called once with the discovered files, before scanning.
	OnFiles func(files []string)
	// OnProgress fires once per file.
	OnProgress fileproc.ProgressFunc
	// OnError fires for every file that fails.
	OnError fileproc.ErrorFunc
}

// Run is the outcome of a check.
type Run struct {
	Report *report.Report
	Scan   *usage.Result
	Files  []string
}

// FindUnused loads the manifest, resolves the file pattern relative to dir,
// scans the matching files and compares the two. A manifest problem aborts
// before any file is read. ErrNoFiles is returned when nothing matched.
func (s *Service) FindUnused(ctx context.Context, dir string, hooks Hooks) (*Run, error) {
	cfg := s.config

	manifestPath := resolve(dir, cfg.Manifest.Path)
	sections := cfg.Manifest.Sections
	if len(sections) == 0 {
		sections = manifest.DefaultSections
	}
	m, err := manifest.Load(manifestPath, sections...)
	if err != nil {
		return nil, err
	}

	pattern := resolve(dir, cfg.Scan.Pattern)
	files, err := scanner.NewScanner(cfg).Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve files: %w", err)
	}
	if len(files) == 0 {
		return &Run{}, ErrNoFiles
	}
	if hooks.OnFiles != nil {
		hooks.OnFiles(files)
	}

	c, err := s.openCache(dir)
	if err != nil {
		return nil, err
	}

	a := usage.New(
		usage.WithMaxParallel(cfg.Scan.MaxParallel),
		usage.WithExtractOptions(imports.Options{CallExpressions: cfg.Scan.IncludeRequire}),
		usage.WithCache(c),
		usage.WithErrorHandler(hooks.OnError),
	)
	defer a.Close()

	result := a.Scan(ctx, files, nil, hooks.OnProgress)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := report.New(report.Metadata{
		Manifest: manifestPath,
		Pattern:  pattern,
		Sections: sections,
		Version:  s.version,
	}, m, result, report.WithFailures(s.debug))

	return &Run{Report: rep, Scan: result, Files: files}, nil
}

// CacheVariant names the extraction settings cache entries are keyed on.
func CacheVariant(cfg *config.Config) string {
	if cfg.Scan.IncludeRequire {
		return "esm+calls"
	}
	return "esm"
}

func (s *Service) openCache(dir string) (*cache.Cache, error) {
	cfg := s.config
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	c, err := cache.New(resolve(dir, cfg.Cache.Dir), cfg.Cache.TTL, true, CacheVariant(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return c, nil
}

func resolve(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
