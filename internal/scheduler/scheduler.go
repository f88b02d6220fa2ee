package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fundsync/internal/logging"
)

// JobStatus tracks one registered job across executions.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobFunc is one schedulable unit of work.
type JobFunc func(ctx context.Context) error

// JobInfo is the tracked state of a registered job.
type JobInfo struct {
	Name        string
	Schedule    string
	Status      JobStatus
	LastRunTime time.Time
	LastError   string
}

// Scheduler hosts the cron-triggered sync jobs. Expressions are six-field
// (with seconds). A job never overlaps itself: a trigger firing while the
// previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *logging.Logger
	jobs   map[string]*JobInfo
	mu     sync.RWMutex

	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler.
func New(logger *logging.Logger) *Scheduler {
	baseCtx, cancel := context.WithCancel(context.Background())
	cronLogger := &cronLogAdapter{logger: logger}

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(
				cron.Recover(cronLogger),
				cron.SkipIfStillRunning(cronLogger),
			),
		),
		logger:  logger,
		jobs:    make(map[string]*JobInfo),
		baseCtx: baseCtx,
		cancel:  cancel,
	}
}

// AddJob registers a job under a cron expression.
func (s *Scheduler) AddJob(name, schedule string, job JobFunc) error {
	info := &JobInfo{
		Name:     name,
		Schedule: schedule,
		Status:   JobStatusPending,
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runJob(info, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = info
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) runJob(info *JobInfo, job JobFunc) {
	s.mu.Lock()
	info.Status = JobStatusRunning
	info.LastRunTime = time.Now()
	s.mu.Unlock()

	err := job(s.baseCtx)

	s.mu.Lock()
	if err != nil {
		info.Status = JobStatusFailed
		info.LastError = err.Error()
	} else {
		info.Status = JobStatusCompleted
		info.LastError = ""
	}
	s.mu.Unlock()

	if err != nil && s.baseCtx.Err() == nil {
		s.logger.WithField("job", info.Name).WithError(err).Error("job failed")
	}
}

// Start begins firing triggers.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("jobs", len(s.jobs)).Info("scheduler started")
}

// Stop cancels in-flight jobs and waits for them to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}

// Jobs returns a snapshot of all registered jobs.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, info := range s.jobs {
		infos = append(infos, *info)
	}
	return infos
}

// cronLogAdapter bridges the structured logger into cron's logging
// interface.
type cronLogAdapter struct {
	logger *logging.Logger
}

func (a *cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.WithField("cron", keysAndValues).Debug(msg)
}

func (a *cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.WithError(err).WithField("cron", keysAndValues).Error(msg)
}
