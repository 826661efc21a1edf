// Package scanner resolves a file glob to the source files to scan.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/gobwas/glob"

	"github.com/akak/unused-dep/pkg/config"
	"github.com/akak/unused-dep/pkg/syntax"
)

// Scanner finds source files matching a glob.
type Scanner struct {
	config   *config.Config
	matchers []gitignore.Matcher
	// matchRoot is the directory exclusion patterns are relative to.
	matchRoot string
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// Pattern is a compiled file glob. "**" matches across directories, and
// "dir/**/x" also matches "dir/x".
type Pattern struct {
	source string
	base   string
	globs  []glob.Glob
}

// CompilePattern compiles a glob with '/' as the separator.
func CompilePattern(pattern string) (*Pattern, error) {
	pattern = normalize(pattern)
	if pattern == "" {
		return nil, fmt.Errorf("invalid pattern: empty")
	}

	p := &Pattern{source: pattern, base: staticBase(pattern)}
	for _, variant := range variants(pattern) {
		g, err := glob.Compile(variant, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		p.globs = append(p.globs, g)
	}
	return p, nil
}

// Base is the longest leading directory of the pattern with no wildcards.
func (p *Pattern) Base() string {
	return p.base
}

// Match reports whether path matches the pattern.
func (p *Pattern) Match(path string) bool {
	path = normalize(path)
	for _, g := range p.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func (p *Pattern) String() string {
	return p.source
}

func normalize(path string) string {
	path = filepath.ToSlash(path)
	for strings.HasPrefix(path, "./") {
		path = path[2:]
	}
	return path
}

// variants expands every "**/" segment into both its recursive form and
// its zero-directory form.
func variants(pattern string) []string {
	out := []string{pattern}
	if strings.HasPrefix(pattern, "**/") {
		out = append(out, strings.TrimPrefix(pattern, "**/"))
	}
	if strings.Contains(pattern, "/**/") {
		out = append(out, strings.ReplaceAll(pattern, "/**/", "/"))
	}
	return out
}

func hasMeta(segment string) bool {
	return strings.ContainsAny(segment, "*?[{")
}

func staticBase(pattern string) string {
	parts := strings.Split(pattern, "/")
	var static []string
	for i, part := range parts {
		if hasMeta(part) || i == len(parts)-1 {
			break
		}
		static = append(static, part)
	}
	if len(static) == 0 {
		if strings.HasPrefix(pattern, "/") {
			return "/"
		}
		return "."
	}
	base := strings.Join(static, "/")
	if base == "" {
		return "/"
	}
	return filepath.FromSlash(base)
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns loads exclusion patterns from both config and .gitignore files.
// Config patterns are parsed as gitignore patterns and combined with .gitignore files.
func (s *Scanner) loadExcludePatterns(root string) {
	s.matchers = nil
	s.matchRoot = root

	var patterns []gitignore.Pattern
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}

	// ReadPatterns recursively reads every .gitignore below the git root.
	if s.config.Exclude.Gitignore {
		if gitRoot := findGitRoot(root); gitRoot != "" {
			s.matchRoot = gitRoot
			if gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil {
				patterns = append(patterns, gitPatterns...)
			}
		}
	}

	if len(patterns) > 0 {
		s.matchers = append(s.matchers, gitignore.NewMatcher(patterns))
	}
}

// isExcluded checks if an absolute path matches any exclusion rule.
func (s *Scanner) isExcluded(absPath string, isDir bool) bool {
	if isDir {
		name := filepath.Base(absPath)
		for _, dir := range s.config.Exclude.Dirs {
			if name == dir {
				return true
			}
		}
	}

	if len(s.matchers) == 0 {
		return false
	}
	rel, err := filepath.Rel(s.matchRoot, absPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}

	pathParts := strings.Split(filepath.ToSlash(rel), "/")
	for _, m := range s.matchers {
		if m.Match(pathParts, isDir) {
			return true
		}
	}
	return false
}

// Glob returns the supported source files matching pattern, in lexical
// order. Paths are returned as the walk produced them, relative when the
// pattern is relative. A base directory that does not exist yields no
// files and no error.
func (s *Scanner) Glob(pattern string) ([]string, error) {
	p, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	root := p.Base()
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	s.loadExcludePatterns(absRoot)

	files := make([]string, 0, 256)
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		absPath := filepath.Join(absRoot, relTo(root, path))

		// Security: validate path stays within root (prevent symlink traversal)
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
			info, err := os.Stat(resolved)
			if err != nil || info.IsDir() {
				return nil
			}
		}

		if d.IsDir() {
			if path != root && s.isExcluded(absPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !p.Match(path) || s.isExcluded(absPath, false) {
			return nil
		}
		if syntax.DetectLanguage(path) != syntax.LangUnknown {
			files = append(files, path)
		}
		return nil
	})

	return files, walkErr
}

func relTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	if !strings.HasPrefix(absPath, root+string(filepath.Separator)) && absPath != root {
		return false
	}

	return true
}

// GroupByLanguage groups files by their detected language.
func GroupByLanguage(files []string) map[syntax.Language][]string {
	groups := make(map[syntax.Language][]string)
	for _, f := range files {
		lang := syntax.DetectLanguage(f)
		if lang != syntax.LangUnknown {
			groups[lang] = append(groups[lang], f)
		}
	}
	return groups
}
