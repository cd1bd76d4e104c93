// Package jobs runs the periodic maintenance tasks of the server on a cron
// schedule.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultOverdueSpec evaluates overdue reservations every five minutes.
const DefaultOverdueSpec = "@every 5m"

// OverdueMarker moves delivered reservations past their end to late.
// *service.ReservationService satisfies it.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, limit int) (int, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron    *cron.Cron
	marker  OverdueMarker
	batch   int
	timeout time.Duration
}

// NewScheduler registers the overdue evaluator under spec (standard five
// field cron syntax or descriptors such as "@every 1m").  A run that is
// still going when the next tick fires is skipped.
func NewScheduler(spec string, marker OverdueMarker, batch int) (*Scheduler, error) {
	if marker == nil {
		return nil, fmt.Errorf("jobs: nil overdue marker")
	}
	if spec == "" {
		spec = DefaultOverdueSpec
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		marker:  marker,
		batch:   batch,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOverdue(context.Background()) }); err != nil {
		return nil, fmt.Errorf("jobs: overdue schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOverdue performs one evaluation pass and returns how many
// reservations were moved.
func (s *Scheduler) RunOverdue(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	moved, err := s.marker.MarkOverdue(ctx, s.batch)
	if err != nil {
		log.Printf("cron job: overdue evaluation failed after %d moved: %v", moved, err)
		return moved
	}
	if moved > 0 {
		log.Printf("cron job: marked %d reservations late", moved)
	}
	return moved
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and returns a context that is done once any
// running job has finished.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
