package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akak/unused-dep/internal/output"
	"github.com/akak/unused-dep/internal/testutil"
	"github.com/akak/unused-dep/pkg/analyzer"
)

func writeProject(t *testing.T) string {
	t.Helper()
	return testutil.WriteProject(t, map[string]string{
		"package.json":  `{"dependencies": {"react": "18", "lodash": "4", "left-pad": "1"}, "devDependencies": {"jest": "29"}}`,
		"src/app.ts":    `import _ from "lodash";`,
		"src/server.ts": `const express = require("express");`,
	})
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", result.Content[0])
	return text.Text
}

func TestServerCreation(t *testing.T) {
	server := NewServer("1.0.0-test")
	require.NotNil(t, server)
	assert.NotNil(t, server.server)
	assert.Equal(t, "1.0.0-test", server.version)

	assert.Equal(t, "dev", NewServer("").version)
}

func TestToolDescriptions(t *testing.T) {
	descriptions := map[string]func() string{
		"findUnused":  describeFindUnused,
		"listImports": describeListImports,
	}

	for name, fn := range descriptions {
		t.Run(name, func(t *testing.T) {
			desc := fn()
			assert.NotEmpty(t, desc)
			assert.Contains(t, desc, "USE WHEN:")
			assert.Contains(t, desc, "INTERPRETING RESULTS:")
			assert.Contains(t, desc, "METRICS RETURNED:")
		})
	}
}

func TestGetFormat(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		expected output.Format
	}{
		{"empty defaults to toon", "", output.FormatTOON},
		{"json format", "json", output.FormatJSON},
		{"markdown format", "markdown", output.FormatMarkdown},
		{"md alias", "md", output.FormatMarkdown},
		{"toon explicit", "toon", output.FormatTOON},
		{"unknown defaults to toon", "xml", output.FormatTOON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, getFormat(ScanInput{Format: tt.format}))
		})
	}
}

func TestGetDir(t *testing.T) {
	assert.Equal(t, ".", getDir(ScanInput{}))
	assert.Equal(t, "/srv/app", getDir(ScanInput{Path: "/srv/app"}))
}

func TestToolError(t *testing.T) {
	result, _, err := toolError("test error message")
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Error: test error message", textOf(t, result))
}

func TestToolResult(t *testing.T) {
	data := map[string]any{"key": "value", "num": 42}

	result, _, err := toolResult(data, output.FormatJSON)
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &decoded))
	assert.Equal(t, "value", decoded["key"])

	result, _, err = toolResult(data, output.FormatMarkdown)
	require.NoError(t, err)
	text := textOf(t, result)
	assert.True(t, strings.HasPrefix(text, "```\n"))
	assert.True(t, strings.HasSuffix(text, "\n```"))

	result, _, err = toolResult(data, output.FormatTOON)
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "value")
}

func TestHandleFindUnused(t *testing.T) {
	dir := writeProject(t)
	s := NewServer("test")

	result, _, err := s.handleFindUnused(context.Background(), nil, FindUnusedInput{
		ScanInput: ScanInput{Path: dir, Format: "json"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))

	var rep struct {
		Unused []struct {
			Name    string `json:"name"`
			Section string `json:"section"`
		} `json:"unused"`
		Summary struct {
			FilesScanned int `json:"files_scanned"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &rep))

	var names []string
	for _, d := range rep.Unused {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"left-pad", "react"}, names)
	assert.Equal(t, 2, rep.Summary.FilesScanned)
}

func TestHandleFindUnusedSections(t *testing.T) {
	dir := writeProject(t)
	s := NewServer("test")

	result, _, err := s.handleFindUnused(context.Background(), nil, FindUnusedInput{
		ScanInput: ScanInput{Path: dir, Format: "json"},
		Sections:  []string{"devDependencies"},
	})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), `"jest"`)
	assert.NotContains(t, textOf(t, result), `"react"`)
}

func TestHandleFindUnusedErrors(t *testing.T) {
	dir := writeProject(t)
	s := NewServer("test")

	tests := []struct {
		name  string
		input FindUnusedInput
		want  string
	}{
		{
			name:  "missing manifest",
			input: FindUnusedInput{ScanInput: ScanInput{Path: dir}, Manifest: "nope.json"},
			want:  "nope.json",
		},
		{
			name:  "no files",
			input: FindUnusedInput{ScanInput: ScanInput{Path: dir, Files: "lib/**/*.ts"}},
			want:  "no source files found",
		},
		{
			name:  "unknown section",
			input: FindUnusedInput{ScanInput: ScanInput{Path: dir}, Sections: []string{"bogus"}},
			want:  "bogus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := s.handleFindUnused(context.Background(), nil, tt.input)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, textOf(t, result), tt.want)
		})
	}
}

func TestHandleListImports(t *testing.T) {
	dir := writeProject(t)
	s := NewServer("test")

	result, _, err := s.handleListImports(context.Background(), nil, ListImportsInput{
		ScanInput: ScanInput{Path: dir, Format: "json", IncludeRequire: true},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))

	var listing importListing
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &listing))
	assert.Equal(t, []string{"express", "lodash"}, listing.References)
	assert.Len(t, listing.Files, 2)
	assert.Empty(t, listing.Failures)
}

func TestFailuresOnlyInDebug(t *testing.T) {
	dir := testutil.WriteProject(t, map[string]string{
		"package.json": `{"dependencies": {"lodash": "4"}}`,
		"src/app.ts":   `import _ from "lodash";`,
		"src/bad.ts":   `import { from`,
	})
	s := NewServer("test")

	for _, debug := range []bool{false, true} {
		in := ScanInput{Path: dir, Format: "json", Debug: debug}

		result, _, err := s.handleFindUnused(context.Background(), nil, FindUnusedInput{ScanInput: in})
		require.NoError(t, err)
		text := textOf(t, result)
		assert.Contains(t, text, `"files_failed": 1`)
		assert.Equal(t, debug, strings.Contains(text, `"failures"`), "find_unused debug=%v", debug)

		result, _, err = s.handleListImports(context.Background(), nil, ListImportsInput{ScanInput: in})
		require.NoError(t, err)
		var listing importListing
		require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &listing))
		require.Len(t, listing.Failed, 1)
		assert.True(t, strings.HasSuffix(listing.Failed[0], "bad.ts"))
		if debug {
			require.Len(t, listing.Failures, 1)
			assert.Contains(t, listing.Failures[0], "syntax error")
		} else {
			assert.Empty(t, listing.Failures)
		}
	}
}

func TestProgressContextWithoutToken(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, analyzer.TrackerFromContext(progressContext(ctx, nil)))
	assert.Nil(t, analyzer.TrackerFromContext(progressContext(ctx, &mcp.CallToolRequest{})))
}

func TestParseFrontmatter(t *testing.T) {
	fm, body := parseFrontmatter([]byte("---\ndescription: Audit things\narguments:\n  - name: path\n    default: .\n---\n\nDo the audit.\n"))
	assert.Equal(t, "Audit things", fm.Description)
	require.Len(t, fm.Arguments, 1)
	assert.Equal(t, "path", fm.Arguments[0].Name)
	assert.Equal(t, ".", fm.Arguments[0].Default)
	assert.Equal(t, "Do the audit.\n", body)

	fm, body = parseFrontmatter([]byte("No frontmatter"))
	assert.Empty(t, fm.Description)
	assert.Equal(t, "No frontmatter", body)

	fm, body = parseFrontmatter([]byte("---\ndescription: unterminated\n"))
	assert.Empty(t, fm.Description)
	assert.Equal(t, "---\ndescription: unterminated\n", body)
}

func TestRenderPrompt(t *testing.T) {
	args := []promptArgument{
		{Name: "path", Default: "."},
		{Name: "files", Default: "src/**/*.ts"},
	}

	got := renderPrompt("scan {{path}} with {{files}} and {{unknown}}", args, map[string]string{"path": "/srv/app"})
	assert.Equal(t, "scan /srv/app with src/**/*.ts and {{unknown}}", got)

	got = renderPrompt("scan {{path}}", args, map[string]string{"path": ""})
	assert.Equal(t, "scan .", got)
}

func TestEmbeddedPrompts(t *testing.T) {
	entries, err := promptFiles.ReadDir("prompts")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, entry := range entries {
		content, err := promptFiles.ReadFile("prompts/" + entry.Name())
		require.NoError(t, err)
		fm, body := parseFrontmatter(content)
		assert.NotEmpty(t, fm.Description, entry.Name())
		assert.NotEmpty(t, body, entry.Name())

		rendered := renderPrompt(body, fm.Arguments, nil)
		assert.NotContains(t, rendered, "{{", "%s leaves a placeholder unfilled", entry.Name())
	}
}

func TestPromptHandler(t *testing.T) {
	fm := promptFrontmatter{
		Description: "desc",
		Arguments:   []promptArgument{{Name: "path", Default: "."}},
	}
	handler := makePromptHandler(fm, "audit {{path}}")

	result, err := handler(context.Background(), &mcp.GetPromptRequest{
		Params: &mcp.GetPromptParams{Name: "audit", Arguments: map[string]string{"path": "web"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "desc", result.Description)
	require.Len(t, result.Messages, 1)
	text, ok := result.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "audit web", text.Text)
}

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("1.2.3")
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "1.2.3", m.Version)
	assert.Equal(t, "io.github.akak/unused-dep", m.Name)
	require.Len(t, m.Packages, 1)
	assert.Equal(t, "ghcr.io/akak/unused-dep:1.2.3", m.Packages[0].Identifier)
	assert.Equal(t, "stdio", m.Packages[0].Transport.Type)

	data, err = GenerateManifest("")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "0.0.0"`)
}
