// Package jobs runs the periodic maintenance and reporting work.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"spin-earn-backend/internal/metrics"
)

// Job is one scheduled unit of work. Run gets a context that is cancelled
// after Timeout or when the scheduler stops.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Entry

	mu   sync.Mutex
	base context.Context
	stop context.CancelFunc
}

func NewScheduler(log *logrus.Entry) *Scheduler {
	logger := cronLogger{log: log.WithField("component", "cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		log:  log,
		base: context.Background(),
	}
}

func (s *Scheduler) Add(job Job) error {
	if job.Timeout <= 0 {
		job.Timeout = 10 * time.Minute
	}
	if _, err := s.cron.AddFunc(job.Schedule, func() { s.execute(job) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name, job.Schedule, err)
	}
	s.log.WithFields(logrus.Fields{"job": job.Name, "schedule": job.Schedule}).Info("job scheduled")
	return nil
}

// Start runs the scheduler until Stop. Jobs inherit ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base, s.stop = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stop != nil {
		s.stop()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// RunNow executes a job immediately, outside the schedule.
func (s *Scheduler) RunNow(job Job) error {
	return s.execute(job)
}

func (s *Scheduler) execute(job Job) error {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()
	if job.Timeout <= 0 {
		job.Timeout = 10 * time.Minute
	}

	ctx, cancel := context.WithTimeout(base, job.Timeout)
	defer cancel()

	log := s.log.WithField("job", job.Name)
	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)
	metrics.RecordJobRun(job.Name, elapsed, err == nil)

	if err != nil {
		log.WithError(err).WithField("duration", elapsed).Error("job failed")
		return err
	}
	log.WithField("duration", elapsed).Info("job finished")
	return nil
}

// cronLogger adapts logrus to cron's key/value logger.
type cronLogger struct {
	log *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	out := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
