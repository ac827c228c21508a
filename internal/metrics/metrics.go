// Package metrics exposes run outcomes in the Prometheus format so scheduled
// checks can be scraped and alerted on.
package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rahul/shopcheck/internal/flow"
)

const namespace = "shopcheck"

// Recorder holds the run metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	stepsTotal    *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	checkAttempts *prometheus.CounterVec
	lastRun       *prometheus.GaugeVec
	lastSuccess   *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of flow runs by result",
			},
			[]string{"flow", "result"},
		),
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of step results by status and fallback path",
			},
			[]string{"flow", "status", "path"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Step duration in seconds",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"flow"},
		),
		checkAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "check_extractions_total",
				Help:      "Total number of extraction calls made by checks",
			},
			[]string{"flow"},
		),
		lastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
			[]string{"flow"},
		),
		lastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_success",
				Help:      "1 if the last run passed every check, 0 otherwise",
			},
			[]string{"flow"},
		),
	}
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(rep *flow.RunReport) {
	result := "passed"
	switch {
	case rep.Aborted:
		result = "aborted"
	case !rep.Successful():
		result = "failed"
	}
	r.runsTotal.WithLabelValues(rep.FlowName, result).Inc()

	attempts := 0
	for _, res := range rep.Results {
		r.stepsTotal.WithLabelValues(rep.FlowName, string(res.Status), string(res.Path)).Inc()
		if res.Status != flow.StatusSkipped {
			r.stepDuration.WithLabelValues(rep.FlowName).Observe(res.Duration.Seconds())
		}
		attempts += res.Attempts
	}
	r.checkAttempts.WithLabelValues(rep.FlowName).Add(float64(attempts))

	r.lastRun.WithLabelValues(rep.FlowName).Set(float64(rep.FinishedAt.Unix()))
	success := 0.0
	if result == "passed" {
		success = 1
	}
	r.lastSuccess.WithLabelValues(rep.FlowName).Set(success)
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
