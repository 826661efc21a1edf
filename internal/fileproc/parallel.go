// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/akak/unused-dep/pkg/syntax"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Len returns the number of collected errors.
func (e *ProcessingErrors) Len() int {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors)
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	if e == nil {
		return "no errors"
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// Unwrap exposes the individual file errors to errors.Is and errors.As.
func (e *ProcessingErrors) Unwrap() []error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	errs := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		errs[i] = pe
	}
	return errs
}

// ErrPanic marks a task that panicked instead of returning.
var ErrPanic = errors.New("panic while processing file")

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count
// when no explicit limit is given.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called once with the path of each file that reaches a
// terminal state.
type ProgressFunc func(path string)

// ErrorFunc is called when a file processing error occurs.
// Receives the file path and the error. If nil, errors are silently skipped.
type ErrorFunc func(path string, err error)

// Outcome is the terminal state of one file: a value or an error.
type Outcome[T any] struct {
	Path  string
	Value T
	Err   error
}

// OK reports whether the file was processed successfully.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// MapFiles processes files with at most maxWorkers running at once, calling
// fn with a parser owned by that task. A failing file never stops the others.
// Outcomes are returned in input order. If maxWorkers is <= 0, defaults to
// 2x NumCPU.
//
// Once ctx is done, files that have not started are marked failed with the
// context error.
func MapFiles[T any](
	ctx context.Context,
	files []string,
	maxWorkers int,
	fn func(*syntax.Parser, string) (T, error),
	onProgress ProgressFunc,
	onError ErrorFunc,
) []Outcome[T] {
	if len(files) == 0 {
		return nil
	}

	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	// Each task writes only its own slot.
	outcomes := make([]Outcome[T], len(files))

	p := pool.New().WithMaxGoroutines(maxWorkers)
	for i, path := range files {
		p.Go(func() {
			out := &outcomes[i]
			out.Path = path

			if err := ctx.Err(); err != nil {
				out.Err = err
			} else {
				out.Value, out.Err = runTask(path, fn)
			}

			if out.Err != nil && onError != nil {
				onError(path, out.Err)
			}
			if onProgress != nil {
				onProgress(path)
			}
		})
	}
	p.Wait()

	return outcomes
}

// runTask calls fn with a fresh parser, turning a panic into an error.
func runTask[T any](path string, fn func(*syntax.Parser, string) (T, error)) (T, error) {
	var (
		value T
		err   error
		pc    panics.Catcher
	)
	pc.Try(func() {
		psr := syntax.New()
		defer psr.Close()
		value, err = fn(psr, path)
	})
	if r := pc.Recovered(); r != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrPanic, r.Value)
	}
	return value, err
}

// CollectErrors gathers the failed outcomes into a ProcessingErrors, or nil
// when every file succeeded.
func CollectErrors[T any](outcomes []Outcome[T]) *ProcessingErrors {
	errs := &ProcessingErrors{}
	for _, o := range outcomes {
		if o.Err != nil {
			errs.Add(o.Path, o.Err)
		}
	}
	if !errs.HasErrors() {
		return nil
	}
	return errs
}
