package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rahul/shopcheck/internal/store"
	"github.com/rahul/shopcheck/pkg/config"
	"github.com/urfave/cli/v2"
)

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "List recorded runs, or the steps of one run",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Number of runs to show",
			Value: 10,
		},
		&cli.StringFlag{
			Name:  "run",
			Usage: "Show the steps of this run ID",
		},
	},
	Action: historyAction,
}

func historyAction(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if cfg.Memory.Type != "sqlite" || cfg.Memory.Path == "" {
		return fmt.Errorf("run history is disabled (memory.type=%q)", cfg.Memory.Type)
	}

	h, err := store.NewHistoryStore(cfg.Memory.Path)
	if err != nil {
		return err
	}
	defer h.Close()

	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if id := c.String("run"); id != "" {
		steps, err := h.GetSteps(id)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			return fmt.Errorf("no steps recorded for run %s", id)
		}
		fmt.Fprintln(tw, "#\tSTEP\tSTATUS\tPATH\tATTEMPTS\tDURATION\tERROR")
		for _, s := range steps {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n", s.Index+1, s.Name, s.Status, s.Path, s.Attempts, s.Duration, s.Error)
		}
		return nil
	}

	runs, err := h.ListRuns(c.Int("limit"))
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "ID\tFLOW\tSTARTED\tRESULT\tPASSED\tFAILED\tREPORT")
	for _, r := range runs {
		result := "PASSED"
		switch {
		case r.Aborted:
			result = "ABORTED"
		case !r.Successful:
			result = "FAILED"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.FlowName, r.StartedAt.Local().Format(time.DateTime), result, r.Passed, r.Failed, r.ReportPath)
	}
	return nil
}
