package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rahul/shopcheck/internal/flow"
)

func TestRecorder_ObserveRun(t *testing.T) {
	r := NewRecorder()
	finished := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	r.ObserveRun(&flow.RunReport{
		FlowName:   "shop",
		FinishedAt: finished,
		Results: []flow.StepResult{
			{Status: flow.StatusPassed, Path: flow.PathObserved, Duration: 2 * time.Second},
			{Status: flow.StatusFailed, Path: flow.PathPrimary, HasChecks: true, Attempts: 3, Duration: 8 * time.Second},
		},
	})
	r.ObserveRun(&flow.RunReport{
		FlowName:   "shop",
		FinishedAt: finished.Add(time.Hour),
		Aborted:    true,
		Results: []flow.StepResult{
			{Status: flow.StatusFailed, Path: flow.PathNone},
			{Status: flow.StatusSkipped, Path: flow.PathNone},
		},
	})

	if got := testutil.ToFloat64(r.runsTotal.WithLabelValues("shop", "failed")); got != 1 {
		t.Errorf("expected 1 failed run, got %v", got)
	}
	if got := testutil.ToFloat64(r.runsTotal.WithLabelValues("shop", "aborted")); got != 1 {
		t.Errorf("expected 1 aborted run, got %v", got)
	}
	if got := testutil.ToFloat64(r.stepsTotal.WithLabelValues("shop", "passed", "observed")); got != 1 {
		t.Errorf("expected 1 observed step, got %v", got)
	}
	if got := testutil.ToFloat64(r.checkAttempts.WithLabelValues("shop")); got != 3 {
		t.Errorf("expected 3 check extractions, got %v", got)
	}
	if got := testutil.ToFloat64(r.lastSuccess.WithLabelValues("shop")); got != 0 {
		t.Errorf("expected last run failure, got %v", got)
	}
	if got := testutil.ToFloat64(r.lastRun.WithLabelValues("shop")); got != float64(finished.Add(time.Hour).Unix()) {
		t.Errorf("unexpected last run timestamp %v", got)
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.ObserveRun(&flow.RunReport{FlowName: "shop", Results: []flow.StepResult{{Status: flow.StatusPassed, Path: flow.PathPrimary}}})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`shopcheck_runs_total{flow="shop",result="passed"} 1`,
		`shopcheck_last_run_success{flow="shop"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}
