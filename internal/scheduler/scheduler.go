package scheduler

import (
	"context"
	"log"
	"time"
)

// Job is one scheduled execution. Its error is logged and the schedule
// continues.
type Job func(ctx context.Context) error

type Scheduler struct {
	Interval time.Duration
	Job      Job
	// OnError, when set, also receives job errors.
	OnError func(error)

	newTicker func(time.Duration) (<-chan time.Time, func())
}

func NewScheduler(interval time.Duration, job Job) *Scheduler {
	return &Scheduler{Interval: interval, Job: job}
}

// Start runs the job immediately and then once per interval until ctx is
// done. Runs never overlap; a tick that fires while a run is in progress is
// dropped. An interval of zero runs the job once.
func (s *Scheduler) Start(ctx context.Context) {
	s.execute(ctx, 1)
	if s.Interval <= 0 {
		return
	}

	tick, stop := s.ticker()
	defer stop()

	log.Printf("Scheduler started, running every %s", s.Interval)

	n := 1
	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped")
			return
		case <-tick:
			n++
			s.execute(ctx, n)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, n int) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.Job(ctx); err != nil {
		log.Printf("Scheduled run %d failed after %s: %v", n, time.Since(start).Round(time.Millisecond), err)
		if s.OnError != nil {
			s.OnError(err)
		}
		return
	}
	log.Printf("Scheduled run %d finished in %s", n, time.Since(start).Round(time.Millisecond))
}

func (s *Scheduler) ticker() (<-chan time.Time, func()) {
	if s.newTicker != nil {
		return s.newTicker(s.Interval)
	}
	t := time.NewTicker(s.Interval)
	return t.C, t.Stop
}
