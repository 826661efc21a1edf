// Package usage scans source files for the external modules they import.
package usage

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/akak/unused-dep/internal/cache"
	"github.com/akak/unused-dep/internal/fileproc"
	"github.com/akak/unused-dep/pkg/analyzer"
	"github.com/akak/unused-dep/pkg/depset"
	"github.com/akak/unused-dep/pkg/imports"
	"github.com/akak/unused-dep/pkg/source"
	"github.com/akak/unused-dep/pkg/syntax"
)

// DefaultMaxParallel is the number of files processed at once when no
// limit is configured.
const DefaultMaxParallel = 100

// Analyzer collects module references from a set of source files.
type Analyzer struct {
	maxParallel int
	extract     imports.Options
	cache       *cache.Cache
	src         source.ContentSource
	onError     fileproc.ErrorFunc
}

// Compile-time check that Analyzer implements FileAnalyzer.
var _ analyzer.FileAnalyzer[*Result] = (*Analyzer)(nil)

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithMaxParallel bounds the number of files in flight. Values <= 0 keep
// the default.
func WithMaxParallel(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxParallel = n
		}
	}
}

// WithExtractOptions sets which import forms are recognized.
func WithExtractOptions(opts imports.Options) Option {
	return func(a *Analyzer) {
		a.extract = opts
	}
}

// WithCache reuses references of files whose content is unchanged.
func WithCache(c *cache.Cache) Option {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// WithSource reads file content from src instead of the filesystem.
func WithSource(src source.ContentSource) Option {
	return func(a *Analyzer) {
		if src != nil {
			a.src = src
		}
	}
}

// WithErrorHandler is called for every file that fails, as it fails.
func WithErrorHandler(fn fileproc.ErrorFunc) Option {
	return func(a *Analyzer) {
		a.onError = fn
	}
}

// New creates a new usage analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		maxParallel: DefaultMaxParallel,
		src:         source.NewFilesystem(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MaxParallel returns the configured concurrency limit.
func (a *Analyzer) MaxParallel() int {
	return a.maxParallel
}

type fileRefs struct {
	refs   []string
	cached bool
}

// Scan processes files with at most MaxParallel in flight and merges every
// file's references into used. A failing file is recorded in Result.Errors
// and never stops the others. onProgress fires exactly once per file.
func (a *Analyzer) Scan(ctx context.Context, files []string, used *depset.SyncSet, onProgress fileproc.ProgressFunc) *Result {
	if used == nil {
		used = depset.NewSyncSet()
	}

	outcomes := fileproc.MapFiles(ctx, files, a.maxParallel, func(psr *syntax.Parser, path string) (fileRefs, error) {
		fr, err := a.scanFile(psr, path)
		if err != nil {
			return fileRefs{}, err
		}
		used.AddAll(fr.refs)
		return fr, nil
	}, onProgress, a.onError)

	result := &Result{
		Files:  make([]FileResult, 0, len(files)),
		Errors: fileproc.CollectErrors(outcomes),
		Used:   used,
		inputs: files,
		failed: roaring.New(),
	}
	for i, o := range outcomes {
		if !o.OK() {
			result.failed.Add(uint32(i))
			result.Failed++
			continue
		}
		result.Processed++
		result.Files = append(result.Files, FileResult{
			Path:       o.Path,
			References: o.Value.refs,
			Cached:     o.Value.cached,
		})
	}
	return result
}

// Analyze scans files into a fresh aggregate. Progress is reported to the
// tracker carried by ctx, if any. Per-file failures are in Result.Errors;
// the returned error is only set when ctx was cancelled.
func (a *Analyzer) Analyze(ctx context.Context, files []string) (*Result, error) {
	var onProgress fileproc.ProgressFunc
	target := a
	if tracker := analyzer.TrackerFromContext(ctx); tracker != nil {
		tracker.Add(len(files))
		onProgress = tracker.Done

		copied := *a
		copied.onError = func(path string, err error) {
			tracker.Fail(path)
			if a.onError != nil {
				a.onError(path, err)
			}
		}
		target = &copied
	}

	result := target.Scan(ctx, files, depset.NewSyncSet(), onProgress)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// Close releases any resources held by the analyzer.
func (a *Analyzer) Close() {}

func (a *Analyzer) scanFile(psr *syntax.Parser, path string) (fileRefs, error) {
	content, err := a.src.Read(path)
	if err != nil {
		return fileRefs{}, &ReadError{Path: path, Err: err}
	}

	if refs, ok := a.cache.Lookup(path, content); ok {
		return fileRefs{refs: refs, cached: true}, nil
	}

	tree, err := psr.Parse(content, syntax.DetectLanguage(path), path)
	if err != nil {
		return fileRefs{}, err
	}

	refs := imports.Extract(tree, a.extract)
	// A failed cache write only costs a re-parse next run.
	_ = a.cache.Store(path, content, refs)
	return fileRefs{refs: refs}, nil
}
