package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rahul/shopcheck/internal/skills"
	"github.com/urfave/cli/v2"
)

var skillsCommand = &cli.Command{
	Name:  "skills",
	Usage: "List the skills under .cursor/skills",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "dir",
			Usage: "Project root containing .cursor/skills",
			Value: ".",
		},
	},
	Action: func(c *cli.Context) error {
		list, err := skills.List(c.String("dir"))
		if err != nil {
			return err
		}

		out := c.App.Writer
		if out == nil {
			out = os.Stdout
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No skills found.")
			return nil
		}

		fmt.Fprintln(out, "Available skills")
		fmt.Fprintln(out, strings.Repeat("=", 60))
		for i, s := range list {
			fmt.Fprintf(out, "\n%d. %s\n", i+1, s.Name)
			fmt.Fprintf(out, "   %s\n", s.Description)
			fmt.Fprintf(out, "   Location: .cursor/skills/%s/\n", s.Dir)
		}
		fmt.Fprintln(out, "\n"+strings.Repeat("=", 60))
		suffix := "s"
		if len(list) == 1 {
			suffix = ""
		}
		fmt.Fprintf(out, "Total: %d skill%s\n", len(list), suffix)
		return nil
	},
}
