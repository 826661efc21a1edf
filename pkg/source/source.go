// Package source abstracts where file content is read from.
package source

import (
	"os"

	"github.com/spf13/afero"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct{}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// FSSource reads files from an afero filesystem.
type FSSource struct {
	fs afero.Fs
}

// NewFS creates a source backed by fsys.
func NewFS(fsys afero.Fs) *FSSource {
	return &FSSource{fs: fsys}
}

// NewMemory creates an in-memory source holding files.
func NewMemory(files map[string]string) *FSSource {
	fsys := afero.NewMemMapFs()
	src := &FSSource{fs: fsys}
	for path, content := range files {
		src.Set(path, content)
	}
	return src
}

// Set stores content under path, replacing any previous value. Errors are
// dropped; a path that cannot be written simply reads as missing.
func (s *FSSource) Set(path, content string) {
	_ = afero.WriteFile(s.fs, path, []byte(content), 0o644)
}

// Read implements ContentSource. Unknown paths fail with an error wrapping
// fs.ErrNotExist, like os.ReadFile.
func (s *FSSource) Read(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}
