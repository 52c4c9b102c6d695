package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry submits Task every Every. A non-positive Every disables the entry.
type Entry struct {
	Task       string
	Every      time.Duration
	RunOnStart bool
}

// Submitter queues a run of a named task
type Submitter interface {
	Submit(name string) error
}

// IntervalTrigger submits tasks to the scheduler on fixed intervals
type IntervalTrigger struct {
	entries   []Entry
	submitter Submitter
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a new interval trigger
func NewIntervalTrigger(submitter Submitter, logger *zap.Logger, entries ...Entry) *IntervalTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalTrigger{
		entries:   entries,
		submitter: submitter,
		logger:    logger.Named("trigger"),
	}
}

// Start starts one ticker per enabled entry
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	for _, entry := range t.entries {
		if entry.Every <= 0 {
			t.logger.Info("Task trigger disabled", zap.String("task", entry.Task))
			continue
		}
		t.wg.Add(1)
		go t.runLoop(ctx, entry)
		t.logger.Info("Task trigger started",
			zap.String("task", entry.Task),
			zap.Duration("every", entry.Every),
		)
	}
	return nil
}

// Stop stops the trigger
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *IntervalTrigger) runLoop(ctx context.Context, entry Entry) {
	defer t.wg.Done()

	if entry.RunOnStart {
		t.fire(entry.Task)
	}

	ticker := time.NewTicker(entry.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire(entry.Task)
		}
	}
}

func (t *IntervalTrigger) fire(task string) {
	err := t.submitter.Submit(task)
	switch {
	case err == nil:
	case errors.Is(err, ErrJobAlreadyQueued):
		t.logger.Debug("Previous run still in progress, skipping", zap.String("task", task))
	default:
		t.logger.Warn("Failed to submit task", zap.String("task", task), zap.Error(err))
	}
}
