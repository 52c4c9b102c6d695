package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/flora/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Task is a unit of background work registered under a name
type Task func(ctx context.Context) error

// Job tracks one submission of a task across its attempts
type Job struct {
	ID          uuid.UUID
	Task        string
	Status      JobStatus
	Error       string
	Attempt     int
	MaxAttempts int
	StartedAt   time.Time
	FinishedAt  time.Time
}

func newJob(task string, retries int) *Job {
	return &Job{
		ID:          uuid.New(),
		Task:        task,
		Status:      JobStatusPending,
		MaxAttempts: retries + 1,
	}
}

func (j *Job) begin(now time.Time) {
	j.Attempt++
	j.Status = JobStatusRunning
	j.Error = ""
	j.StartedAt = now
	j.FinishedAt = time.Time{}
}

func (j *Job) finish(now time.Time, err error) {
	j.FinishedAt = now
	if err != nil {
		j.Status = JobStatusFailed
		j.Error = err.Error()
		return
	}
	j.Status = JobStatusSuccess
}

// Retryable reports whether a failed attempt leaves attempts to spare
func (j *Job) Retryable() bool {
	return j.Status == JobStatusFailed && j.Attempt < j.MaxAttempts
}

func (j *Job) Duration() time.Duration {
	if j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:       2,
		QueueSize:     32,
		JobTimeout:    2 * time.Minute,
		RetryAttempts: 2,
		RetryDelay:    10 * time.Second,
	}
}

// Scheduler runs registered tasks on a small worker pool. A task has at most
// one queued or running job at a time.
type Scheduler struct {
	config SchedulerConfig
	logger *zap.Logger

	tasks     map[string]Task
	inflight  map[string]bool
	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	onDone    func(*Job)
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config SchedulerConfig, logger *zap.Logger) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:   config,
		logger:   logger.Named("scheduler"),
		tasks:    make(map[string]Task),
		inflight: make(map[string]bool),
	}
}

// Register adds a named task. Registering the same name twice replaces the task.
func (s *Scheduler) Register(name string, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = task
}

// Tasks returns the registered task names in order
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OnJobDone sets a callback invoked after every finished attempt
func (s *Scheduler) OnJobDone(fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDone = fn
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.jobs = make(chan *Job, s.config.QueueSize)
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Strings("tasks", s.Tasks()),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a run of the named task
func (s *Scheduler) Submit(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if _, ok := s.tasks[name]; !ok {
		return ErrUnknownTask
	}
	if s.inflight[name] {
		return ErrJobAlreadyQueued
	}

	job := newJob(name, s.config.RetryAttempts)
	select {
	case s.jobs <- job:
		s.inflight[name] = true
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("task", name),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// requeue puts a retried job back on the queue, releasing the task when that
// is no longer possible
func (s *Scheduler) requeue(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		select {
		case s.jobs <- job:
			return
		default:
			s.logger.Warn("Failed to re-queue job for retry",
				zap.String("job_id", job.ID.String()),
				zap.String("task", job.Task),
			)
		}
	}
	delete(s.inflight, job.Task)
}

func (s *Scheduler) release(job *Job) {
	s.mu.Lock()
	delete(s.inflight, job.Task)
	s.mu.Unlock()
}

// worker processes jobs from the queue
func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	s.mu.Lock()
	task := s.tasks[job.Task]
	onDone := s.onDone
	s.mu.Unlock()

	log := s.logger.With(zap.String("task", job.Task), zap.String("job_id", job.ID.String()))
	job.begin(time.Now())
	log.Debug("Processing job", zap.Int("worker_id", workerID), zap.Int("attempt", job.Attempt))

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	err := s.run(jobCtx, job.Task, task)
	cancel()
	job.finish(time.Now(), err)

	if err == nil {
		log.Info("Job completed", zap.Duration("duration", job.Duration()))
	} else {
		log.Error("Job failed", zap.Int("attempt", job.Attempt), zap.Int("max_attempts", job.MaxAttempts), zap.Error(err))
	}
	if onDone != nil {
		onDone(job)
	}

	if !job.Retryable() || ctx.Err() != nil {
		s.release(job)
		return
	}
	job.Status = JobStatusPending
	time.AfterFunc(s.config.RetryDelay, func() { s.requeue(job) })
}

// run invokes the task under the task's profile labels, converting a panic
// into ErrTaskPanicked
func (s *Scheduler) run(ctx context.Context, name string, task Task) (err error) {
	telemetry.Profile(ctx, telemetry.ProfileLabels{Area: "scheduler", Task: name}, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Task panicked", zap.String("task", name), zap.Any("panic", r))
				err = ErrTaskPanicked
			}
		}()
		err = task(ctx)
	})
	return err
}

// Exclusive wraps task so that only one replica runs it at a time. A replica
// that cannot obtain the lock skips the run.
func Exclusive(locker shared.Locker, name string, ttl time.Duration, task Task) Task {
	return func(ctx context.Context) error {
		obtainCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		release, err := locker.Obtain(obtainCtx, "scheduler:"+name, ttl)
		cancel()
		if errors.Is(err, shared.ErrLockNotObtained) {
			return nil
		}
		if err != nil {
			return err
		}
		defer release()
		return task(ctx)
	}
}
