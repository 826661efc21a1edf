package usage

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/akak/unused-dep/internal/fileproc"
	"github.com/akak/unused-dep/pkg/depset"
)

// ReadError reports a source file that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// FileResult holds the module references found in one file.
type FileResult struct {
	Path       string   `json:"path"`
	References []string `json:"references"`
	Cached     bool     `json:"cached,omitempty"`
}

// Result is the outcome of one scan run.
type Result struct {
	// Files lists successfully processed files in input order.
	Files     []FileResult               `json:"files"`
	Errors    *fileproc.ProcessingErrors `json:"-"`
	Processed int                        `json:"processed"`
	Failed    int                        `json:"failed"`
	// Used is the aggregate the scan merged into.
	Used *depset.SyncSet `json:"-"`

	inputs []string
	failed *roaring.Bitmap
}

// FailedFiles returns the failed input paths in input order.
func (r *Result) FailedFiles() []string {
	if r == nil || r.failed == nil {
		return nil
	}
	out := make([]string, 0, r.failed.GetCardinality())
	it := r.failed.Iterator()
	for it.HasNext() {
		out = append(out, r.inputs[it.Next()])
	}
	return out
}

// ErrorFor returns the processing error recorded for a failed input path.
func (r *Result) ErrorFor(path string) (fileproc.ProcessingError, bool) {
	if r == nil || r.Errors == nil {
		return fileproc.ProcessingError{}, false
	}
	for _, pe := range r.Errors.Errors {
		if pe.Path == path {
			return pe, true
		}
	}
	return fileproc.ProcessingError{}, false
}

// References returns the sorted union of references across processed files.
func (r *Result) References() []string {
	if r == nil || r.Used == nil {
		return nil
	}
	return r.Used.Sorted()
}
