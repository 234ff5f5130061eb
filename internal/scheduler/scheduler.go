// Package scheduler provides scheduling logic for Tranquil.
//
// It runs recurring jobs, such as check-in reminders, from cron expressions.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Use standard 5-field cron parser (min, hour, dom, month, dow) and enable recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c, parser: parser}
}

// Validate reports whether expr is a valid 5-field cron expression.
func (s *Scheduler) Validate(expr string) error {
	_, err := s.parser.Parse(expr)
	return err
}

// AddJob schedules a task using the provided cron expression and returns
// its entry ID. It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) (int, error) {
	id, err := s.cron.AddFunc(expr, task)
	if err != nil {
		slog.Debug("Scheduler.AddJob: invalid expression", "expr", expr, "error", err)
		return 0, err
	}
	return int(id), nil
}

// Remove unschedules the job with the given entry ID.
func (s *Scheduler) Remove(id int) {
	s.cron.Remove(cron.EntryID(id))
}

// Next returns the next activation time for id, or the zero time if unknown.
func (s *Scheduler) Next(id int) time.Time {
	return s.cron.Entry(cron.EntryID(id)).Next
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}
