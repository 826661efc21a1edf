// Package manifest reads the declared dependencies of a package manifest.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/akak/unused-dep/pkg/depset"
)

// Dependency sections understood in a manifest.
const (
	SectionDependencies         = "dependencies"
	SectionDevDependencies      = "devDependencies"
	SectionPeerDependencies     = "peerDependencies"
	SectionOptionalDependencies = "optionalDependencies"
)

// KnownSections lists every section Load accepts.
var KnownSections = []string{
	SectionDependencies,
	SectionDevDependencies,
	SectionPeerDependencies,
	SectionOptionalDependencies,
}

// DefaultSections is used when no section is requested.
var DefaultSections = []string{SectionDependencies}

// ErrUnknownSection is returned for a section name outside KnownSections.
var ErrUnknownSection = errors.New("unknown dependency section")

// Error reports a manifest that is missing, unreadable, unparsable, or
// does not have the expected shape.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Manifest is a parsed manifest.
type Manifest struct {
	Path    string
	Name    string
	Version string
	// Sections maps a section name to its declared package names.
	Sections map[string]depset.Set
}

// Declared returns the union of the named sections. Missing sections
// contribute nothing.
func (m *Manifest) Declared(sections ...string) depset.Set {
	if len(sections) == 0 {
		sections = DefaultSections
	}
	out := make(depset.Set)
	for _, name := range sections {
		for dep := range m.Sections[name] {
			out.Add(dep)
		}
	}
	return out
}

// Load reads the manifest at path and checks that every requested section
// is known. Every failure is an *Error.
func Load(path string, sections ...string) (*Manifest, error) {
	m, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := CheckSections(sections); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return m, nil
}

// Read parses the manifest at path. package.json is parsed as JSON;
// .yaml and .yml files (package.yaml) as YAML.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	m, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	m.Path = path
	return m, nil
}

// Format is the encoding of a manifest.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes manifest content and validates the dependency sections.
func Parse(data []byte, format Format) (*Manifest, error) {
	var (
		raw map[string]any
		err error
	)
	switch format {
	case FormatYAML:
		raw, err = kyaml.Parser().Unmarshal(data)
	default:
		raw, err = kjson.Parser().Unmarshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	if raw == nil {
		return nil, errors.New("manifest is empty")
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	m := &Manifest{Sections: make(map[string]depset.Set)}
	m.Name, _ = raw["name"].(string)
	m.Version, _ = raw["version"].(string)
	for _, name := range KnownSections {
		deps, ok := raw[name].(map[string]any)
		if !ok {
			continue
		}
		names := make([]string, 0, len(deps))
		for dep := range deps {
			names = append(names, dep)
		}
		m.Sections[name] = depset.Of(names...)
	}
	return m, nil
}

// CheckSections returns ErrUnknownSection for any name outside KnownSections.
func CheckSections(sections []string) error {
	for _, s := range sections {
		known := false
		for _, k := range KnownSections {
			if s == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: %q", ErrUnknownSection, s)
		}
	}
	return nil
}

const schemaURL = "unused-dep://manifest.schema.json"

// schemaSource constrains the dependency sections only; everything else in
// a manifest is free-form.
const schemaSource = `{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "version": {"type": "string"},
    "dependencies": {"$ref": "#/$defs/section"},
    "devDependencies": {"$ref": "#/$defs/section"},
    "peerDependencies": {"$ref": "#/$defs/section"},
    "optionalDependencies": {"$ref": "#/$defs/section"}
  },
  "$defs": {
    "section": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaSource))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

func validate(raw map[string]any) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile manifest schema: %w", err)
	}

	// Round-trip through JSON so YAML scalars reach the validator in the
	// representation it expects.
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}
