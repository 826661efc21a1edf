package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/akak/unused-dep/internal/testutil"
	"github.com/akak/unused-dep/pkg/config"
	"github.com/akak/unused-dep/pkg/manifest"
)

func writeProject(t *testing.T) string {
	t.Helper()
	return testutil.WriteProject(t, map[string]string{
		"package.json": `{"dependencies": {"react": "18", "lodash": "4", "left-pad": "1"}}`,
		"src/app.ts":   `import _ from "lodash";`,
		"src/lib.ts":   `export const x = 1;`,
	})
}

// runApp runs the CLI with args and returns stdout, stderr and the error.
func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"unused-dep", "--no-color"}, args...))
	return stdout.String(), stderr.String(), err
}

func projectArgs(dir string) []string {
	return []string{
		"--package-json", filepath.Join(dir, "package.json"),
		"--files", filepath.Join(dir, "src", "**", "*.ts"),
	}
}

func TestCheckText(t *testing.T) {
	dir := writeProject(t)

	stdout, _, err := runApp(t, projectArgs(dir)...)

	require.NoError(t, err)
	assert.Contains(t, stdout, "left-pad")
	assert.Contains(t, stdout, "react")
	assert.NotContains(t, stdout, "lodash")
	assert.Contains(t, stdout, "Scanned 2 files")
}

func TestCheckJSON(t *testing.T) {
	dir := writeProject(t)

	args := append([]string{"check", "--format", "json"}, projectArgs(dir)...)
	stdout, _, err := runApp(t, args...)
	require.NoError(t, err)

	var rep struct {
		Unused []struct {
			Name string `json:"name"`
		} `json:"unused"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	require.Len(t, rep.Unused, 2)
	assert.Equal(t, "left-pad", rep.Unused[0].Name)
	assert.Equal(t, "react", rep.Unused[1].Name)
}

func TestCheckOutputFile(t *testing.T) {
	dir := writeProject(t)
	out := filepath.Join(t.TempDir(), "report.yaml")

	args := append([]string{"--format", "yaml", "--output", out}, projectArgs(dir)...)
	stdout, _, err := runApp(t, args...)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: left-pad")
}

func TestCheckFailOnUnused(t *testing.T) {
	dir := writeProject(t)

	args := append([]string{"--fail-on-unused"}, projectArgs(dir)...)
	_, _, err := runApp(t, args...)

	var exitErr cli.ExitCoder
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Equal(t, "Unused dependencies: left-pad, react", exitErr.Error())
}

func brokenProject(t *testing.T) string {
	t.Helper()
	return testutil.WriteProject(t, map[string]string{
		"package.json": `{"dependencies": {"lodash": "4"}}`,
		"src/app.ts":   `import _ from "lodash";`,
		"src/bad.ts":   `import { from`,
	})
}

func TestCheckJSONOmitsFailuresWithoutDebug(t *testing.T) {
	dir := brokenProject(t)

	args := append([]string{"--format", "json"}, projectArgs(dir)...)
	stdout, _, err := runApp(t, args...)
	require.NoError(t, err)

	assert.NotContains(t, stdout, "failures")
	assert.NotContains(t, stdout, "syntax error")

	var rep struct {
		Summary struct {
			FilesFailed int `json:"files_failed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.Equal(t, 1, rep.Summary.FilesFailed)
}

func TestCheckJSONListsFailuresWithDebug(t *testing.T) {
	dir := brokenProject(t)

	args := append([]string{"--format", "json", "--debug"}, projectArgs(dir)...)
	stdout, stderr, err := runApp(t, args...)
	require.NoError(t, err)

	var rep struct {
		Failures []struct {
			Path string `json:"path"`
			Kind string `json:"kind"`
		} `json:"failures"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, "bad.ts", filepath.Base(rep.Failures[0].Path))
	assert.Equal(t, "parse", rep.Failures[0].Kind)
	assert.Contains(t, stderr, "Failed files (1):")
}

func TestCheckDebug(t *testing.T) {
	dir := writeProject(t)

	args := append([]string{"--debug"}, projectArgs(dir)...)
	_, stderr, err := runApp(t, args...)

	require.NoError(t, err)
	assert.Contains(t, stderr, "Found 2 files (typescript: 2)")
	assert.Contains(t, stderr, "[lodash]")
}

func TestCheckManifestError(t *testing.T) {
	dir := writeProject(t)

	_, _, err := runApp(t,
		"--package-json", filepath.Join(dir, "missing.json"),
		"--files", filepath.Join(dir, "src", "**", "*.ts"),
	)

	var merr *manifest.Error
	assert.True(t, errors.As(err, &merr), "got %v", err)
}

func TestCheckNoFiles(t *testing.T) {
	dir := writeProject(t)

	stdout, stderr, err := runApp(t,
		"--package-json", filepath.Join(dir, "package.json"),
		"--files", filepath.Join(dir, "lib", "**", "*.ts"),
	)

	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "No source files found")
}

func TestCheckInvalidFlags(t *testing.T) {
	dir := writeProject(t)

	args := append([]string{"--max-parallel", "0"}, projectArgs(dir)...)
	_, _, err := runApp(t, args...)

	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	var got *config.Config
	app := &cli.App{
		Flags: checkFlags(),
		Action: func(c *cli.Context) error {
			got = config.DefaultConfig()
			got.Scan.Pattern = "from-config/**/*.ts"
			applyFlags(c, got)
			return nil
		},
	}

	require.NoError(t, app.Run([]string{"x",
		"--sections", "dependencies",
		"--sections", "devDependencies",
		"--max-parallel", "7",
		"--include-require",
		"--no-gitignore",
	}))

	assert.Equal(t, []string{"dependencies", "devDependencies"}, got.Manifest.Sections)
	assert.Equal(t, 7, got.Scan.MaxParallel)
	assert.True(t, got.Scan.IncludeRequire)
	assert.False(t, got.Exclude.Gitignore)
	assert.Equal(t, "from-config/**/*.ts", got.Scan.Pattern, "unset flags keep config values")
	assert.Equal(t, "./package.json", got.Manifest.Path)
}

func TestConfigShow(t *testing.T) {
	stdout, _, err := runApp(t, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, stdout, "[manifest]")
	assert.Contains(t, stdout, "max_parallel = 100")
}

func TestConfigValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unused-dep.toml")
	require.NoError(t, os.WriteFile(path, []byte("[scan]\nmax_parallel = 8\n"), 0o644))

	stdout, _, err := runApp(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration valid")

	require.NoError(t, os.WriteFile(path, []byte("[scan]\nmax_parallel = -1\n"), 0o644))
	stdout, _, err = runApp(t, "--config", path, "config", "validate")
	assert.Error(t, err)
	assert.Contains(t, stdout, "Configuration validation failed")
}

func TestMCPManifest(t *testing.T) {
	stdout, _, err := runApp(t, "mcp", "manifest")
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &m))
	assert.Equal(t, "dev", m["version"])
}

func TestCacheStatsAndClear(t *testing.T) {
	tmp := t.TempDir()
	cacheDir := filepath.Join(tmp, "cache")
	path := filepath.Join(tmp, "unused-dep.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cache]\ndir = \""+filepath.ToSlash(cacheDir)+"\"\nttl = 1\n"), 0o644))

	stdout, _, err := runApp(t, "--config", path, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cache directory: "+filepath.ToSlash(cacheDir))
	assert.Contains(t, stdout, "Entries: 0")

	stdout, _, err = runApp(t, "--config", path, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cleared cache at")
	_, statErr := os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(statErr))
}
