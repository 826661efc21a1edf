package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/akak/unused-dep/internal/cache"
	"github.com/akak/unused-dep/internal/output"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the reference cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache entry count and size",
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove all cache entries",
				Action: runCacheClear,
			},
		},
	}
}

func openCache(c *cli.Context) (*cache.Cache, string, error) {
	res, err := loadConfig(c)
	if err != nil {
		return nil, "", err
	}
	dir := res.Config.Cache.Dir
	cc, err := cache.New(dir, res.Config.Cache.TTL, true, "")
	if err != nil {
		return nil, "", fmt.Errorf("failed to open cache: %w", err)
	}
	return cc, dir, nil
}

func runCacheStats(c *cli.Context) error {
	cc, dir, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := cc.GetStats()
	if err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	w := c.App.Writer
	output.NewFormatterTo(w, output.FormatText, !color.NoColor).Info("Cache directory: %s", dir)
	p.Fprintf(w, "Entries: %d\n", stats.Entries)
	p.Fprintf(w, "Size: %d bytes\n", stats.TotalSize)
	if stats.Entries > 0 {
		fmt.Fprintf(w, "Oldest entry: %s ago\n", stats.OldestAge.Round(time.Second))
		fmt.Fprintf(w, "Newest entry: %s ago\n", stats.NewestAge.Round(time.Second))
	}
	return nil
}

func runCacheClear(c *cli.Context) error {
	cc, dir, err := openCache(c)
	if err != nil {
		return err
	}
	if err := cc.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	output.NewFormatterTo(c.App.Writer, output.FormatText, !color.NoColor).Success("Cleared cache at %s", dir)
	return nil
}
