// Package report assembles the unused-dependency report of a scan.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/akak/unused-dep/internal/fileproc"
	"github.com/akak/unused-dep/internal/output"
	"github.com/akak/unused-dep/pkg/analyzer/usage"
	"github.com/akak/unused-dep/pkg/depset"
	"github.com/akak/unused-dep/pkg/manifest"
	"github.com/akak/unused-dep/pkg/syntax"
)

// Metadata describes the inputs of a run.
type Metadata struct {
	Manifest string   `json:"manifest" yaml:"manifest"`
	Pattern  string   `json:"pattern" yaml:"pattern"`
	Sections []string `json:"sections" yaml:"sections"`
	Version  string   `json:"version,omitempty" yaml:"version,omitempty"`
}

// Dependency is one unused manifest entry.
type Dependency struct {
	Name    string `json:"name" yaml:"name"`
	Section string `json:"section" yaml:"section"`
}

// Failure is a file that could not be scanned.
type Failure struct {
	Path  string `json:"path" yaml:"path"`
	Kind  string `json:"kind" yaml:"kind"`
	Error string `json:"error" yaml:"error"`
}

// Summary holds the counts of a run.
type Summary struct {
	Declared     int `json:"declared" yaml:"declared"`
	Used         int `json:"used" yaml:"used"`
	Unused       int `json:"unused" yaml:"unused"`
	FilesScanned int `json:"files_scanned" yaml:"files_scanned"`
	FilesFailed  int `json:"files_failed" yaml:"files_failed"`
	FilesCached  int `json:"files_cached,omitempty" yaml:"files_cached,omitempty"`
}

// Report is the outcome of comparing a manifest against a scan.
type Report struct {
	Metadata Metadata     `json:"metadata" yaml:"metadata"`
	Summary  Summary      `json:"summary" yaml:"summary"`
	Unused   []Dependency `json:"unused" yaml:"unused"`
	Failures []Failure    `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Compile-time check that Report implements Renderable.
var _ output.Renderable = (*Report)(nil)

// Option configures how a report is built.
type Option func(*options)

type options struct {
	failures bool
}

// WithFailures lists every failed file with its error. Without it only the
// failed-file count is reported.
func WithFailures(enabled bool) Option {
	return func(o *options) {
		o.failures = enabled
	}
}

// New builds a report from the manifest and a finished scan. Unused names
// are sorted; each is attributed to the first requested section declaring it.
func New(meta Metadata, m *manifest.Manifest, result *usage.Result, opts ...Option) *Report {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sections := meta.Sections
	if len(sections) == 0 {
		sections = manifest.DefaultSections
		meta.Sections = sections
	}

	declared := m.Declared(sections...)
	var used depset.Reader = depset.Set{}
	if result != nil && result.Used != nil {
		used = result.Used
	}
	unused := depset.Diff(declared, used)

	r := &Report{
		Metadata: meta,
		Unused:   make([]Dependency, 0, unused.Len()),
	}
	for _, name := range unused.Sorted() {
		r.Unused = append(r.Unused, Dependency{Name: name, Section: sectionOf(m, sections, name)})
	}

	r.Summary = Summary{
		Declared: declared.Len(),
		Used:     declared.Len() - unused.Len(),
		Unused:   unused.Len(),
	}
	if result != nil {
		r.Summary.FilesScanned = result.Processed
		r.Summary.FilesFailed = result.Failed
		for _, f := range result.Files {
			if f.Cached {
				r.Summary.FilesCached++
			}
		}
		if o.failures {
			r.Failures = failures(result)
		}
	}
	return r
}

// Names returns the unused dependency names in order.
func (r *Report) Names() []string {
	names := make([]string, len(r.Unused))
	for i, d := range r.Unused {
		names[i] = d.Name
	}
	return names
}

// failures lists the failed files in input order.
func failures(result *usage.Result) []Failure {
	failed := result.FailedFiles()
	if len(failed) == 0 {
		return nil
	}
	out := make([]Failure, 0, len(failed))
	for _, path := range failed {
		if pe, ok := result.ErrorFor(path); ok {
			out = append(out, failureOf(pe))
		}
	}
	return out
}

func sectionOf(m *manifest.Manifest, sections []string, name string) string {
	for _, s := range sections {
		if m.Sections[s].Has(name) {
			return s
		}
	}
	return ""
}

func failureOf(pe fileproc.ProcessingError) Failure {
	kind := "error"
	var (
		readErr  *usage.ReadError
		parseErr *syntax.ParseError
	)
	switch {
	case errors.As(pe.Err, &readErr):
		kind = "read"
	case errors.As(pe.Err, &parseErr):
		kind = "parse"
	case errors.Is(pe.Err, fileproc.ErrPanic):
		kind = "panic"
	}
	return Failure{Path: pe.Path, Kind: kind, Error: pe.Err.Error()}
}

func (r *Report) RenderData() any {
	return r
}

func (r *Report) RenderText(w io.Writer, colored bool) error {
	p := message.NewPrinter(language.English)

	if len(r.Unused) == 0 {
		msg := "No unused dependencies found."
		if colored {
			color.New(color.FgGreen).Fprintln(w, msg)
		} else {
			fmt.Fprintln(w, msg)
		}
	} else {
		rows := make([][]string, len(r.Unused))
		for i, d := range r.Unused {
			rows[i] = []string{d.Name, d.Section}
		}
		footer := []string{p.Sprintf("%d unused", r.Summary.Unused), p.Sprintf("of %d declared", r.Summary.Declared)}
		table := output.NewTable("Unused dependencies", []string{"Dependency", "Section"}, rows, footer, nil)
		if err := table.RenderText(w, colored); err != nil {
			return err
		}
	}

	summary := p.Sprintf("Scanned %d %s", r.Summary.FilesScanned, plural(r.Summary.FilesScanned, "file", "files"))
	if r.Summary.FilesCached > 0 {
		summary += p.Sprintf(" (%d cached)", r.Summary.FilesCached)
	}
	if r.Summary.FilesFailed > 0 {
		failed := p.Sprintf(", %d failed", r.Summary.FilesFailed)
		if colored {
			failed = color.YellowString(failed)
		}
		summary += failed
	}
	fmt.Fprintln(w, summary)
	return nil
}

func (r *Report) RenderMarkdown(w io.Writer) error {
	p := message.NewPrinter(language.English)

	fmt.Fprintf(w, "# Unused dependencies\n\n")
	fmt.Fprintf(w, "Manifest `%s`, sections %s, files `%s`.\n\n",
		r.Metadata.Manifest, strings.Join(r.Metadata.Sections, ", "), r.Metadata.Pattern)

	if len(r.Unused) == 0 {
		fmt.Fprintf(w, "No unused dependencies found.\n\n")
	} else {
		rows := make([][]string, len(r.Unused))
		for i, d := range r.Unused {
			rows[i] = []string{"`" + d.Name + "`", d.Section}
		}
		table := output.NewTable("", []string{"Dependency", "Section"}, rows, nil, nil)
		if err := table.RenderMarkdown(w); err != nil {
			return err
		}
	}

	fmt.Fprint(w, p.Sprintf("%d of %d declared %s unused; %d %s scanned, %d failed.\n",
		r.Summary.Unused, r.Summary.Declared, plural(r.Summary.Declared, "dependency", "dependencies"),
		r.Summary.FilesScanned, plural(r.Summary.FilesScanned, "file", "files"), r.Summary.FilesFailed))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
