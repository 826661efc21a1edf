package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a configuration file",
				Description: `Validates an unused-dep configuration file for syntax errors and invalid values.

Examples:
  unused-dep config validate                    # Validates default config locations
  unused-dep -c unused-dep.toml config validate # Validates specific file`,
				Action: runConfigValidate,
			},
			{
				Name:  "show",
				Usage: "Show the effective configuration",
				Description: `Shows the merged configuration from defaults and config file as TOML.

Examples:
  unused-dep config show
  unused-dep -c unused-dep.toml config show`,
				Action: runConfigShow,
			},
		},
	}
}

func runConfigValidate(c *cli.Context) error {
	w := c.App.Writer
	result, err := loadConfig(c)
	if err == nil {
		err = result.Config.Validate()
	}
	if err != nil {
		color.New(color.FgRed).Fprintln(w, "Configuration validation failed:")
		fmt.Fprintf(w, "  - %s\n", err)
		return err
	}

	if result.Source != "" {
		color.New(color.FgGreen).Fprintf(w, "Configuration valid: %s\n", result.Source)
	} else {
		color.New(color.FgYellow).Fprintln(w, "No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShow(c *cli.Context) error {
	result, err := loadConfig(c)
	if err != nil {
		return err
	}

	content, err := toml.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if result.Source != "" {
		fmt.Fprintf(c.App.Writer, "# Source: %s\n", result.Source)
	} else {
		fmt.Fprintln(c.App.Writer, "# Source: defaults")
	}
	_, err = c.App.Writer.Write(content)
	return err
}
