// Package analyzer defines the contract shared by file analyzers and the
// progress tracking they report through a context.
package analyzer

import "context"

// FileAnalyzer processes a set of files into a result of type T.
type FileAnalyzer[T any] interface {
	// Analyze processes files and returns the result. Per-file failures
	// belong in T; the error is reserved for the run as a whole, such as
	// cancellation of ctx.
	Analyze(ctx context.Context, files []string) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}
