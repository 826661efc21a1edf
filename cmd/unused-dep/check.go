package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/akak/unused-dep/internal/output"
	"github.com/akak/unused-dep/internal/progress"
	"github.com/akak/unused-dep/internal/scanner"
	"github.com/akak/unused-dep/internal/service/analysis"
	"github.com/akak/unused-dep/pkg/config"
	"github.com/akak/unused-dep/pkg/watch"
)

func checkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "package-json",
			Aliases: []string{"m"},
			Value:   "./package.json",
			Usage:   "Manifest to compare against (package.json or package.yaml)",
		},
		&cli.StringFlag{
			Name:  "files",
			Value: "src/**/*.ts",
			Usage: "Glob of source files to scan",
		},
		&cli.IntFlag{
			Name:  "max-parallel",
			Value: 100,
			Usage: "Maximum number of files processed at once",
		},
		&cli.StringSliceFlag{
			Name:  "sections",
			Value: cli.NewStringSlice("dependencies"),
			Usage: "Manifest sections to compare: dependencies, devDependencies, peerDependencies, optionalDependencies",
		},
		&cli.BoolFlag{
			Name:  "include-require",
			Usage: "Also count require() and import() calls with a literal argument",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   "text",
			Usage:   "Output format: text, json, markdown, toon, yaml",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to file",
		},
		&cli.BoolFlag{
			Name:  "cache",
			Usage: "Reuse references of unchanged files from the previous run",
		},
		&cli.BoolFlag{
			Name:  "no-gitignore",
			Usage: "Scan files ignored by .gitignore",
		},
		&cli.BoolFlag{
			Name:  "fail-on-unused",
			Usage: "Exit with status 1 when unused dependencies are found",
		},
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "Re-run the check when source files or the manifest change",
		},
		&cli.DurationFlag{
			Name:  "debounce",
			Value: watch.DefaultDebounce,
			Usage: "Quiet period before a change triggers a re-run in --watch mode",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Print matched files, per-file references and per-file errors",
		},
	}
}

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "Report declared dependencies that no source file imports (default)",
		Flags:  checkFlags(),
		Action: runCheckCmd,
	}
}

// applyFlags overrides cfg with every check flag given on the command line.
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("package-json") {
		cfg.Manifest.Path = c.String("package-json")
	}
	if c.IsSet("sections") {
		cfg.Manifest.Sections = c.StringSlice("sections")
	}
	if c.IsSet("files") {
		cfg.Scan.Pattern = c.String("files")
	}
	if c.IsSet("max-parallel") {
		cfg.Scan.MaxParallel = c.Int("max-parallel")
	}
	if c.IsSet("include-require") {
		cfg.Scan.IncludeRequire = c.Bool("include-require")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("cache") {
		cfg.Cache.Enabled = c.Bool("cache")
	}
	if c.Bool("no-gitignore") {
		cfg.Exclude.Gitignore = false
	}
	if c.Bool("no-color") {
		cfg.Output.Color = false
	}
}

func runCheckCmd(c *cli.Context) error {
	res, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := res.Config
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Bool("watch") {
		return watchCheck(ctx, c, cfg)
	}

	run, err := checkOnce(ctx, c, cfg)
	if err != nil || run == nil {
		return err
	}
	if names := run.Report.Names(); c.Bool("fail-on-unused") && len(names) > 0 {
		return cli.Exit("Unused dependencies: "+strings.Join(names, ", "), 1)
	}
	return nil
}

// checkOnce runs one check and writes its report. A nil run with a nil
// error means no source file matched.
func checkOnce(ctx context.Context, c *cli.Context, cfg *config.Config) (*analysis.Run, error) {
	stderr := c.App.ErrWriter
	status := statusFormatter(stderr, cfg)
	debug := c.Bool("debug")

	var tracker *progress.Tracker
	hooks := analysis.Hooks{
		OnFiles: func(files []string) {
			if debug {
				printFiles(stderr, files)
			}
			tracker = progress.NewTrackerTo(stderr, "Scanning files...", len(files))
		},
		OnProgress: func(string) {
			if tracker != nil {
				tracker.Tick()
			}
		},
	}

	svc := analysis.New(
		analysis.WithConfig(cfg),
		analysis.WithVersion(version),
		analysis.WithDebug(debug),
	)
	run, err := svc.FindUnused(ctx, "", hooks)
	if tracker != nil {
		switch {
		case err == nil:
			tracker.FinishSuccess()
		case errors.Is(err, context.Canceled):
			tracker.FinishSkipped("interrupted")
		default:
			tracker.FinishError(err)
		}
	}
	if errors.Is(err, analysis.ErrNoFiles) {
		status.Warning("No source files found")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if debug {
		printDebug(stderr, run)
	}
	if err := writeReport(c, cfg, run); err != nil {
		return nil, err
	}
	return run, nil
}

// statusFormatter writes status messages to w, colored unless disabled.
func statusFormatter(w io.Writer, cfg *config.Config) *output.Formatter {
	return output.NewFormatterTo(w, output.FormatText, cfg.Output.Color && !color.NoColor)
}

// watchCheck runs the check, then again after every relevant change until
// ctx is done. Failed runs are reported and watching continues.
func watchCheck(ctx context.Context, c *cli.Context, cfg *config.Config) error {
	stderr := c.App.ErrWriter
	status := statusFormatter(stderr, cfg)
	report := func() {
		if _, err := checkOnce(ctx, c, cfg); err != nil && ctx.Err() == nil {
			status.Error("%v", err)
		}
	}
	report()

	w, err := watch.NewWatcher(".", cfg, c.Duration("debounce"))
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()
	w.SetOutput(stderr)
	w.SetCallback(func([]string) { report() })

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// printFiles lists the matched files with a per-language count.
func printFiles(w io.Writer, files []string) {
	faint := color.New(color.Faint)
	groups := scanner.GroupByLanguage(files)
	langs := make([]string, 0, len(groups))
	for lang, group := range groups {
		langs = append(langs, fmt.Sprintf("%s: %d", lang, len(group)))
	}
	sort.Strings(langs)

	faint.Fprintf(w, "Found %d files (%s):\n", len(files), strings.Join(langs, ", "))
	for _, f := range files {
		faint.Fprintf(w, "  %s\n", f)
	}
}

func printDebug(w io.Writer, run *analysis.Run) {
	faint := color.New(color.Faint)
	for _, f := range run.Scan.Files {
		faint.Fprintf(w, "%s: %v\n", f.Path, f.References)
	}
	failed := run.Scan.FailedFiles()
	if len(failed) == 0 {
		return
	}
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(w, "Failed files (%d):\n", len(failed))
	for _, path := range failed {
		if pe, ok := run.Scan.ErrorFor(path); ok {
			yellow.Fprintf(w, "  %v\n", pe.Err)
		}
	}
}

func writeReport(c *cli.Context, cfg *config.Config, run *analysis.Run) error {
	format := output.ParseFormat(cfg.Output.Format)
	colored := cfg.Output.Color && !color.NoColor

	var formatter *output.Formatter
	if path := c.String("output"); path != "" {
		f, err := output.NewFormatter(format, path, colored)
		if err != nil {
			return fmt.Errorf("failed to open output: %w", err)
		}
		formatter = f
	} else {
		formatter = output.NewFormatterTo(c.App.Writer, format, colored)
	}
	defer formatter.Close()

	return formatter.Output(run.Report)
}
