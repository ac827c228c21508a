package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rahul/shopcheck/internal/flow"
)

func sampleReport() *flow.RunReport {
	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	return &flow.RunReport{
		ID:         "run-1",
		FlowName:   "realmadrid-shop",
		URL:        "https://shop.realmadrid.com",
		Command:    "shopcheck run",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Results: []flow.StepResult{
			{Index: 0, Name: "Open players", Label: "01-open-players", Status: flow.StatusPassed, Path: flow.PathPrimary, Screenshot: "./01-open-players.png", Duration: time.Second},
			{Index: 1, Name: "Accept cookies", Label: "02-accept-cookies", Status: flow.StatusNoMatch, Path: flow.PathNone, Screenshot: "./02-accept-cookies.png",
				ErrKind: flow.KindActionNotFound, Error: "no candidate matched \"accept\"",
				Artifacts: []flow.Artifact{{Name: "02-accept-cookies-observe.json", ContentType: flow.ContentTypeJSON, Ref: "./02-accept-cookies-observe.json"}}},
			{Index: 2, Name: "Carvajal product", Label: "03-product", Status: flow.StatusFailed, Path: flow.PathObserved, HasChecks: true, Attempts: 3,
				ErrKind: flow.KindVerificationFailed, Error: "expected \"Carvajal\"\nlast extraction: Camiseta"},
			{Index: 3, Name: "Summary", Label: "04-summary", Status: flow.StatusPassed, Path: flow.PathNone, Extracted: "Camiseta Authentic, 150,00 €"},
		},
	}
}

func TestRender(t *testing.T) {
	var b strings.Builder
	if err := Render(&b, sampleReport()); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := b.String()

	wants := []string{
		"# Shop check: realmadrid-shop",
		"- Result: **FAILED**",
		"- Steps: 2 passed, 1 no_match, 1 failed",
		"1. **Open players**: passed via primary in 1s",
		"![01-open-players](./01-open-players.png)",
		"[02-accept-cookies-observe.json](./02-accept-cookies-observe.json)",
		"Checks: failed after 3 extraction(s)",
		"## Extracted",
		"### Summary",
		"Camiseta Authentic, 150,00 €",
	}
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("report missing %q:\n%s", w, out)
		}
	}
	if strings.Contains(out, "**Summary**: passed via") {
		t.Error("path none should not be rendered")
	}
}

func TestRender_ExtractionOnCheckedStep(t *testing.T) {
	r := sampleReport()
	r.Results[2].Extracted = "Carvajal 2 dorsal"

	var b strings.Builder
	if err := Render(&b, r); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	section := out[strings.Index(out, "## Extracted"):]
	if !strings.Contains(section, "### Carvajal product\n\nCarvajal 2 dorsal") {
		t.Errorf("checked step extraction missing from Extracted section:\n%s", out)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteFile(dir, sampleReport())
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, FileName) {
		t.Errorf("unexpected path %s", path)
	}
	if data, err := os.ReadFile(path); err != nil || len(data) == 0 {
		t.Errorf("report not written: %v", err)
	}
}

func TestSummaryAndVerdict(t *testing.T) {
	r := sampleReport()
	s := Summary(r, "reports/run-x/report.md")
	if !strings.HasPrefix(s, "realmadrid-shop: FAILED") {
		t.Errorf("unexpected summary head:\n%s", s)
	}
	if !strings.Contains(s, "- Carvajal product: failed (expected \"Carvajal\")") {
		t.Errorf("summary should list the failed step:\n%s", s)
	}
	if strings.Contains(s, "Open players") {
		t.Errorf("passed steps should be omitted:\n%s", s)
	}

	r.Aborted = true
	if Verdict(r) != "ABORTED" {
		t.Error("expected ABORTED")
	}
	r.Aborted = false
	r.Results = r.Results[:1]
	if Verdict(r) != "PASSED" {
		t.Error("expected PASSED")
	}
}
