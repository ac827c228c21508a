package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rahul/shopcheck/internal/flow"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	h, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func run(id string, start time.Time, statuses ...flow.Status) *flow.RunReport {
	r := &flow.RunReport{ID: id, FlowName: "realmadrid-shop", URL: "https://shop.test", StartedAt: start, FinishedAt: start.Add(time.Minute)}
	for i, s := range statuses {
		r.Results = append(r.Results, flow.StepResult{
			Index: i, Name: string(s) + " step", Status: s, Path: flow.PathPrimary,
			HasChecks: s == flow.StatusFailed, Attempts: 1, Duration: 1500 * time.Millisecond,
		})
	}
	return r
}

func TestHistoryStore_SaveAndList(t *testing.T) {
	h := newTestStore(t)
	base := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	if err := h.SaveRun(run("a", base, flow.StatusPassed, flow.StatusPassed), "reports/a/report.md"); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := h.SaveRun(run("b", base.Add(time.Hour), flow.StatusPassed, flow.StatusFailed, flow.StatusNoMatch), "reports/b/report.md"); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	runs, err := h.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "b" {
		t.Errorf("expected newest run first, got %s", runs[0].ID)
	}
	if runs[0].Successful || runs[0].Passed != 1 || runs[0].Failed != 2 {
		t.Errorf("unexpected summary %+v", runs[0])
	}
	if !runs[1].Successful || !runs[1].StartedAt.Equal(base) {
		t.Errorf("unexpected summary %+v", runs[1])
	}

	limited, err := h.ListRuns(1)
	if err != nil || len(limited) != 1 {
		t.Errorf("limit not applied: %v %d", err, len(limited))
	}
}

func TestHistoryStore_ListRunsWithinOneSecond(t *testing.T) {
	h := newTestStore(t)
	base := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	if err := h.SaveRun(run("whole", base, flow.StatusPassed), ""); err != nil {
		t.Fatal(err)
	}
	if err := h.SaveRun(run("half", base.Add(500*time.Millisecond), flow.StatusPassed), ""); err != nil {
		t.Fatal(err)
	}

	runs, err := h.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "half" || runs[1].ID != "whole" {
		t.Fatalf("runs out of order: %+v", runs)
	}
	if !runs[0].StartedAt.Equal(base.Add(500 * time.Millisecond)) {
		t.Errorf("start time not preserved: %s", runs[0].StartedAt)
	}
}

func TestHistoryStore_GetSteps(t *testing.T) {
	h := newTestStore(t)
	if err := h.SaveRun(run("c", time.Now(), flow.StatusPassed, flow.StatusFailed), ""); err != nil {
		t.Fatal(err)
	}

	steps, err := h.GetSteps("c")
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[1].Status != "failed" || steps[1].Duration != 1500*time.Millisecond {
		t.Errorf("unexpected step %+v", steps[1])
	}

	if err := h.SaveRun(run("c", time.Now()), ""); err == nil {
		t.Error("expected duplicate run id error")
	}
	if steps, _ := h.GetSteps("missing"); len(steps) != 0 {
		t.Errorf("expected no steps, got %d", len(steps))
	}
}
