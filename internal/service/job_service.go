package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
	"github.com/noah-isme/coursecap-api/pkg/jobs"
)

// Job is a unit of background work identified by a stable key.
type Job interface {
	Key() string
	Description() string
	Run(ctx context.Context) error
}

type jobHistoryStore interface {
	JobStarted(ctx context.Context, jobKey string) (int, error)
	JobFinished(ctx context.Context, id int, failed bool) error
	ListSince(ctx context.Context, since time.Time) ([]models.JobHistory, error)
	LastRun(ctx context.Context, jobKey string) (*models.JobHistory, error)
}

// JobRunner executes jobs and records each run in job_history.
type JobRunner struct {
	history jobHistoryStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewJobRunner constructs a JobRunner.
func NewJobRunner(history jobHistoryStore, metrics *MetricsService, logger *zap.Logger) *JobRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobRunner{history: history, metrics: metrics, logger: logger}
}

// Run executes job once. A panic inside the job is recovered and recorded as a failure.
func (r *JobRunner) Run(ctx context.Context, job Job) (err error) {
	log := r.logger.With(zap.String("job", job.Key()))
	id, startErr := r.history.JobStarted(ctx, job.Key())
	if startErr != nil {
		return appErrors.Wrap(startErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record job start")
	}
	log.Info("job starting", zap.Int("history_id", id))
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Key(), rec)
		}
		failed := err != nil
		if failed {
			log.Error("job failed", zap.Error(err))
		} else {
			log.Info("job finished", zap.Duration("duration", time.Since(started)))
		}
		if finishErr := r.history.JobFinished(context.WithoutCancel(ctx), id, failed); finishErr != nil {
			log.Error("failed to record job finish", zap.Error(finishErr))
		}
		r.metrics.RecordJobRun(job.Key(), failed, time.Since(started))
	}()

	return job.Run(ctx)
}

// ScheduledJob pairs a job with how often the scheduler runs it. A zero Interval
// means the job only runs when triggered.
type ScheduledJob struct {
	Job      Job
	Interval time.Duration
}

// JobSchedulerConfig configures polling and the worker pool.
type JobSchedulerConfig struct {
	Enabled      bool
	PollInterval time.Duration
	Workers      int
}

// JobScheduler dispatches due jobs through a worker queue, one run per key at a time.
type JobScheduler struct {
	runner  *JobRunner
	queue   *jobs.Queue
	entries map[string]ScheduledJob
	order   []string
	config  JobSchedulerConfig
	logger  *zap.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewJobScheduler registers the given jobs.
func NewJobScheduler(runner *JobRunner, scheduled []ScheduledJob, cfg JobSchedulerConfig, logger *zap.Logger) *JobScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	s := &JobScheduler{
		runner:   runner,
		entries:  make(map[string]ScheduledJob, len(scheduled)),
		config:   cfg,
		logger:   logger,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, entry := range scheduled {
		key := entry.Job.Key()
		s.entries[key] = entry
		s.order = append(s.order, key)
	}
	sort.Strings(s.order)
	s.queue = jobs.NewQueue("jobs", s.handle, jobs.QueueConfig{Workers: cfg.Workers, Logger: logger})
	return s
}

// Start launches the worker queue and, when enabled, the polling loop.
func (s *JobScheduler) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if !s.config.Enabled {
		s.logger.Info("job scheduler polling disabled")
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	started := s.now()
	for _, key := range s.order {
		s.lastSeen[key] = started
	}
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
	s.logger.Info("job scheduler started", zap.Duration("poll_interval", s.config.PollInterval), zap.Strings("jobs", s.order))
}

// Stop halts polling and waits for running jobs to return.
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	s.queue.Stop()
}

// Trigger queues a job immediately. It fails with a conflict when the job is still running.
func (s *JobScheduler) Trigger(key string) error {
	if _, ok := s.entries[key]; !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("No job with key %s", key))
	}
	if err := s.queue.Enqueue(jobs.Job{Key: key}); err != nil {
		if errors.Is(err, jobs.ErrInFlight) {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Job %s is already running", key))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start job")
	}
	s.markDispatched(key)
	return nil
}

// Running reports whether a run of key is queued or in progress.
func (s *JobScheduler) Running(key string) bool {
	return s.queue.InFlight(key)
}

// Entries returns the registered jobs ordered by key.
func (s *JobScheduler) Entries() []ScheduledJob {
	out := make([]ScheduledJob, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.entries[key])
	}
	return out
}

func (s *JobScheduler) tick() {
	now := s.now()
	for _, key := range s.due(now) {
		if err := s.queue.Enqueue(jobs.Job{Key: key}); err != nil {
			if errors.Is(err, jobs.ErrInFlight) {
				s.logger.Debug("job still running, skipping", zap.String("job", key))
				continue
			}
			s.logger.Warn("failed to dispatch job", zap.String("job", key), zap.Error(err))
			continue
		}
		s.markDispatched(key)
	}
}

func (s *JobScheduler) due(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for _, key := range s.order {
		interval := s.entries[key].Interval
		if interval <= 0 {
			continue
		}
		if now.Sub(s.lastSeen[key]) >= interval {
			keys = append(keys, key)
		}
	}
	return keys
}

func (s *JobScheduler) markDispatched(key string) {
	s.mu.Lock()
	s.lastSeen[key] = s.now()
	s.mu.Unlock()
}

func (s *JobScheduler) handle(ctx context.Context, queued jobs.Job) error {
	entry, ok := s.entries[queued.Key]
	if !ok {
		return fmt.Errorf("unknown job %s", queued.Key)
	}
	// Failures are recorded by the runner.
	_ = s.runner.Run(ctx, entry.Job)
	return nil
}

// JobService exposes registered jobs and their history.
type JobService struct {
	scheduler *JobScheduler
	history   jobHistoryStore
	logger    *zap.Logger
}

// NewJobService constructs a JobService.
func NewJobService(scheduler *JobScheduler, history jobHistoryStore, logger *zap.Logger) *JobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{scheduler: scheduler, history: history, logger: logger}
}

// List describes each registered job with its most recent run.
func (s *JobService) List(ctx context.Context) ([]models.JobInfo, error) {
	entries := s.scheduler.Entries()
	infos := make([]models.JobInfo, 0, len(entries))
	for _, entry := range entries {
		key := entry.Job.Key()
		last, err := s.history.LastRun(ctx, key)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job history")
		}
		info := models.JobInfo{
			Key:         key,
			Description: entry.Job.Description(),
			Interval:    entry.Interval,
			Running:     s.scheduler.Running(key),
			LastRun:     last,
		}
		if entry.Interval > 0 {
			info.IntervalStr = entry.Interval.String()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// History returns runs started within the last daysCount days, newest first.
func (s *JobService) History(ctx context.Context, daysCount int) ([]models.JobHistory, error) {
	if daysCount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "days_count must be a positive integer")
	}
	since := time.Now().Add(-time.Duration(daysCount) * 24 * time.Hour)
	rows, err := s.history.ListSince(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job history")
	}
	if rows == nil {
		rows = []models.JobHistory{}
	}
	return rows, nil
}

// Start runs a job in the background.
func (s *JobService) Start(ctx context.Context, key string) (string, error) {
	if err := s.scheduler.Trigger(key); err != nil {
		return "", err
	}
	s.logger.Info("job started manually", zap.String("job", key))
	return fmt.Sprintf("Job %s started", key), nil
}
