package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to the JSON config file",
	Value:   "config.json",
	EnvVars: []string{"SHOPCHECK_CONFIG"},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "shopcheck",
		Usage:   "Drive a shop flow in a headless browser and report what it saw",
		Version: Version,
		Description: `shopcheck runs a flow of natural-language steps against a web shop,
retrying and falling back per step, and writes screenshots plus a
Markdown report into reports/run-<timestamp>/.

Examples:
  shopcheck run
  shopcheck run --flow flows/nightly.yaml --every 6h
  shopcheck history --limit 5`,
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			runCommand,
			historyCommand,
			skillsCommand,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
