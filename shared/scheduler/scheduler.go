package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"video-analyzer/shared/monitoring"
)

// Job is a unit of background work run on a cron schedule.
type Job interface {
	Name() string
	RunOnce(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules and records each outcome in the
// monitor as a health check.
type Scheduler struct {
	monitor *monitoring.Monitor
	cron    *cron.Cron
	log     *logrus.Logger
}

func New(monitor *monitoring.Monitor, log *logrus.Logger) *Scheduler {
	cronLog := cron.PrintfLogger(log)
	return &Scheduler{
		monitor: monitor,
		log:     log,
		// Prevent overlapping runs
		cron: cron.New(cron.WithSeconds(), cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog))),
	}
}

// Add registers job under a six-field (seconds first) cron schedule.
func (s *Scheduler) Add(ctx context.Context, schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.RunOnce(ctx, job); err != nil {
			s.log.WithError(err).WithField("job", job.Name()).Warn("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job %s: %w", job.Name(), err)
	}

	s.log.WithFields(logrus.Fields{"job": job.Name(), "schedule": schedule}).Info("Job scheduled")
	return nil
}

// Start runs the cron loop until ctx is cancelled, then waits for running
// jobs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	s.log.Info("Scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) RunOnce(ctx context.Context, job Job) error {
	startTime := time.Now()
	err := job.RunOnce(ctx)
	s.monitor.RecordCheck(job.Name(), err, time.Since(startTime))
	if err != nil {
		return fmt.Errorf("%s run failed: %w", job.Name(), err)
	}
	return nil
}
