package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/akak/unused-dep/pkg/config"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "unused-dep",
		Usage:   "Find npm dependencies that no source file imports",
		Version: version,
		Description: `unused-dep parses the JavaScript and TypeScript files matching a glob,
collects every module they import, and reports the dependencies declared in
package.json that are never referenced.

Supports: TypeScript, TSX, JavaScript, JSX`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"UNUSED_DEP_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		}, checkFlags()...),
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			return nil
		},
		Action: runCheckCmd,
		Commands: []*cli.Command{
			checkCmd(),
			configCmd(),
			cacheCmd(),
			mcpCmd(),
		},
	}
}

// loadConfig loads the file named by --config, or searches the default
// locations.
func loadConfig(c *cli.Context) (*config.LoadResult, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	return config.LoadConfig(opts...)
}
