package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

const (
	colorReset    = "\033[0m"
	colorBold     = "\033[1m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
	colorGreen    = "\033[92m"
	colorYellow   = "\033[93m"
	colorRed      = "\033[91m"
)

// Console prints the human-facing progress lines. Colors are only used on a TTY.
type Console struct {
	out   io.Writer
	color bool
	width int
}

func NewConsole() *Console {
	c := &Console{out: os.Stderr, width: 80}
	fd := int(os.Stderr.Fd())
	if term.IsTerminal(fd) {
		c.color = true
		if w, _, err := term.GetSize(fd); err == nil {
			c.width = w
		}
	}
	return c
}

// NewConsoleTo builds an uncolored console, used by tests.
func NewConsoleTo(w io.Writer) *Console {
	return &Console{out: w, width: 80}
}

func (c *Console) paint(color, s string) string {
	if !c.color {
		return s
	}
	return color + s + colorReset
}

func (c *Console) PrintBanner(flowName, url string) {
	banner := `
     __                      __              __
 ___/ /  ___  ___  ____ ___ / /  ___ ____ __/ /__
(_-< _ \/ _ \/ _ \/ __// _ \ _ \/ -_) __//  '_/
/__/_//_/\___/ .__/\__/ \___/_//_/\__/\__//_/\_\
            /_/
`
	for _, l := range strings.Split(banner, "\n") {
		padding := (c.width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Fprintf(c.out, "%s%s\n", strings.Repeat(" ", padding), c.paint(colorNeonCyan, l))
	}
	fmt.Fprintf(c.out, "%s %s\n%s %s\n\n",
		c.paint(colorBold, "FLOW"), flowName,
		c.paint(colorBold, "URL "), url)
}

// PrintStep writes one line per finished step.
func (c *Console) PrintStep(index int, name, status, path string, d time.Duration) {
	tag, color := "[ ?? ]", colorPurple
	switch status {
	case "passed":
		tag, color = "[ OK ]", colorGreen
	case "no_match":
		tag, color = "[ -- ]", colorYellow
	case "failed":
		tag, color = "[FAIL]", colorRed
	case "skipped":
		tag, color = "[SKIP]", colorPurple
	}
	line := fmt.Sprintf("%02d %s", index+1, name)
	if path != "" && path != "none" {
		line += fmt.Sprintf(" (%s)", path)
	}
	fmt.Fprintf(c.out, "%s %s %s\n", c.paint(color, tag), line, c.paint(colorNeonMag, d.Round(time.Millisecond).String()))
}

func (c *Console) PrintSummary(successful, aborted bool, reportPath string) {
	verdict := c.paint(colorGreen, "SUCCESS")
	switch {
	case aborted:
		verdict = c.paint(colorRed, "ABORTED")
	case !successful:
		verdict = c.paint(colorYellow, "CHECKS FAILED")
	}
	fmt.Fprintf(c.out, "\n%s %s\n%s %s\n", c.paint(colorBold, "RESULT"), verdict, c.paint(colorBold, "REPORT"), reportPath)
}
