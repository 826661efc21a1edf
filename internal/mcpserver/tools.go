package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	toon "github.com/toon-format/toon-go"

	"github.com/akak/unused-dep/internal/output"
	"github.com/akak/unused-dep/internal/scanner"
	"github.com/akak/unused-dep/internal/service/analysis"
	"github.com/akak/unused-dep/pkg/analyzer"
	"github.com/akak/unused-dep/pkg/analyzer/usage"
	"github.com/akak/unused-dep/pkg/config"
	"github.com/akak/unused-dep/pkg/imports"
)

// ScanInput is the input shared by all tools.
type ScanInput struct {
	Path           string `json:"path,omitempty" jsonschema:"Project root. Defaults to the current directory."`
	Files          string `json:"files,omitempty" jsonschema:"Glob of source files relative to path. Default src/**/*.ts."`
	IncludeRequire bool   `json:"include_require,omitempty" jsonschema:"Also count require() and import() calls with a literal argument."`
	Format         string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
	Debug          bool   `json:"debug,omitempty" jsonschema:"Include the error of every file that could not be scanned."`
}

// FindUnusedInput adds manifest options.
type FindUnusedInput struct {
	ScanInput
	Manifest string   `json:"manifest,omitempty" jsonschema:"Manifest path relative to path. Default package.json."`
	Sections []string `json:"sections,omitempty" jsonschema:"Manifest sections to compare, e.g. dependencies, devDependencies. Default dependencies."`
}

// ListImportsInput is the input of list_imports.
type ListImportsInput struct {
	ScanInput
}

// importListing is the list_imports payload.
type importListing struct {
	Files      []usage.FileResult `json:"files" toon:"files"`
	References []string           `json:"references" toon:"references"`
	Failed     []string           `json:"failed,omitempty" toon:"failed"`
	Failures   []string           `json:"failures,omitempty" toon:"failures"`
}

func getDir(input ScanInput) string {
	if input.Path == "" {
		return "."
	}
	return input.Path
}

func getFormat(input ScanInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

// loadConfig reads the project's config file, if any, and applies the
// tool input on top of it.
func loadConfig(dir string, input ScanInput) (*config.Config, error) {
	res, err := config.LoadConfig(config.WithSearchDirs(dir, filepath.Join(dir, ".unused-dep")))
	if err != nil {
		return nil, err
	}
	cfg := res.Config
	if input.Files != "" {
		cfg.Scan.Pattern = input.Files
	}
	if input.IncludeRequire {
		cfg.Scan.IncludeRequire = true
	}
	return cfg, nil
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return "```\n" + string(out) + "\n```", nil
	default:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) handleFindUnused(ctx context.Context, req *mcp.CallToolRequest, input FindUnusedInput) (*mcp.CallToolResult, any, error) {
	dir := getDir(input.ScanInput)
	cfg, err := loadConfig(dir, input.ScanInput)
	if err != nil {
		return toolError(err.Error())
	}
	if input.Manifest != "" {
		cfg.Manifest.Path = input.Manifest
	}
	if len(input.Sections) > 0 {
		cfg.Manifest.Sections = input.Sections
	}

	svc := analysis.New(
		analysis.WithConfig(cfg),
		analysis.WithVersion(s.version),
		analysis.WithDebug(input.Debug),
	)
	run, err := svc.FindUnused(ctx, dir, analysis.Hooks{})
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(run.Report.RenderData(), getFormat(input.ScanInput))
}

func (s *Server) handleListImports(ctx context.Context, req *mcp.CallToolRequest, input ListImportsInput) (*mcp.CallToolResult, any, error) {
	dir := getDir(input.ScanInput)
	cfg, err := loadConfig(dir, input.ScanInput)
	if err != nil {
		return toolError(err.Error())
	}

	pattern := cfg.Scan.Pattern
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(dir, pattern)
	}
	files, err := scanner.NewScanner(cfg).Glob(pattern)
	if err != nil {
		return toolError(err.Error())
	}
	if len(files) == 0 {
		return toolError(analysis.ErrNoFiles.Error())
	}

	a := usage.New(
		usage.WithMaxParallel(cfg.Scan.MaxParallel),
		usage.WithExtractOptions(imports.Options{CallExpressions: cfg.Scan.IncludeRequire}),
	)
	defer a.Close()

	result, err := a.Analyze(progressContext(ctx, req), files)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return toolError("cancelled")
		}
		return toolError(err.Error())
	}

	listing := importListing{
		Files:      result.Files,
		References: result.References(),
		Failed:     result.FailedFiles(),
	}
	if input.Debug {
		for _, path := range listing.Failed {
			if pe, ok := result.ErrorFor(path); ok {
				listing.Failures = append(listing.Failures, pe.Error())
			}
		}
	}
	return toolResult(listing, getFormat(input.ScanInput))
}

// progressContext attaches a tracker that forwards per-file progress to the
// client when the request carries a progress token.
func progressContext(ctx context.Context, req *mcp.CallToolRequest) context.Context {
	if req == nil || req.Params == nil || req.Session == nil {
		return ctx
	}
	token := req.Params.GetProgressToken()
	if token == nil {
		return ctx
	}
	tracker := analyzer.NewTracker(func(p analyzer.Progress) {
		_ = req.Session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
			ProgressToken: token,
			Progress:      float64(p.Done),
			Total:         float64(p.Total),
			Message:       fmt.Sprintf("%s (%d remaining)", p.Path, p.Remaining()),
		})
	})
	return analyzer.WithTracker(ctx, tracker)
}
