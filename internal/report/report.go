package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/rahul/shopcheck/internal/flow"
)

// FileName is the report written into each run directory.
const FileName = "report.md"

var funcs = template.FuncMap{
	"add":      func(a, b int) int { return a + b },
	"ts":       func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"duration": func(d time.Duration) string { return d.Round(time.Millisecond).String() },
	"indent": func(s string) string {
		return strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n   ")
	},
}

var reportTmpl = template.Must(template.New("report").Funcs(funcs).Parse(`# Shop check: {{.FlowName}}

- Run: ` + "`{{.ID}}`" + `
- URL: {{.URL}}
- Started: {{ts .StartedAt}}
- Finished: {{ts .FinishedAt}} ({{duration .Elapsed}})
- Result: **{{.Verdict}}**
{{- if .Command}}
- Command: ` + "`{{.Command}}`" + `
{{- end}}
- Steps: {{.Tally}}

## Navigation
{{range .Results}}
{{add .Index 1}}. **{{.Name}}**: {{.Status}}{{if ne .Path "none"}} via {{.Path}}{{end}} in {{duration .Duration}}
{{- if .HasChecks}}
   - Checks: {{if eq .Status "passed"}}passed{{else}}failed{{end}} after {{.Attempts}} extraction(s)
{{- end}}
{{- if .Error}}
   - Error ({{.ErrKind}}): {{.Error}}
{{- end}}
{{- if and .ActionErr (ne .ActionErr .Error)}}
   - Action error: {{.ActionErr}}
{{- end}}
{{- range .Artifacts}}
   - [{{.Name}}]({{.Ref}})
{{- end}}
{{- if .Screenshot}}

   ![{{.Label}}]({{.Screenshot}})
{{- end}}
{{end}}
{{- if .Extracted}}
## Extracted
{{range .Extracted}}
### {{.Name}}

{{.Extracted}}
{{end}}
{{- end}}`))

type view struct {
	*flow.RunReport
	Elapsed   time.Duration
	Verdict   string
	Tally     string
	Extracted []flow.StepResult
}

func newView(r *flow.RunReport) view {
	v := view{
		RunReport: r,
		Elapsed:   r.FinishedAt.Sub(r.StartedAt),
		Verdict:   Verdict(r),
		Tally:     tally(r),
	}
	for _, res := range r.Results {
		if res.Extracted != "" {
			v.Extracted = append(v.Extracted, res)
		}
	}
	return v
}

// Verdict is PASSED, FAILED or ABORTED.
func Verdict(r *flow.RunReport) string {
	switch {
	case r.Aborted:
		return "ABORTED"
	case r.Successful():
		return "PASSED"
	default:
		return "FAILED"
	}
}

func tally(r *flow.RunReport) string {
	counts := r.Counts()
	var parts []string
	for _, s := range []flow.Status{flow.StatusPassed, flow.StatusNoMatch, flow.StatusFailed, flow.StatusSkipped} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// Render writes the Markdown report for r.
func Render(w io.Writer, r *flow.RunReport) error {
	return reportTmpl.Execute(w, newView(r))
}

// WriteFile renders r into dir/report.md and returns the file path.
func WriteFile(dir string, r *flow.RunReport) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Summary is a short plain-text account of a run for chat notifications.
func Summary(r *flow.RunReport, reportPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", r.FlowName, Verdict(r))
	fmt.Fprintf(&b, "%s\n", tally(r))
	for _, res := range r.Results {
		if res.Status == flow.StatusPassed || res.Status == flow.StatusSkipped {
			continue
		}
		line := fmt.Sprintf("- %s: %s", res.Name, res.Status)
		if res.Error != "" {
			line += " (" + firstLine(res.Error) + ")"
		}
		b.WriteString(line + "\n")
	}
	if reportPath != "" {
		fmt.Fprintf(&b, "Report: %s\n", reportPath)
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
