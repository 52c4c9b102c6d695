package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("job queue is full")

	// ErrUnknownTask is returned when submitting a name nothing was registered under
	ErrUnknownTask = errors.New("unknown task")

	// ErrJobAlreadyQueued is returned while a previous run of the task is pending or running
	ErrJobAlreadyQueued = errors.New("job already queued for this task")

	// ErrTaskPanicked is reported for a task that panicked
	ErrTaskPanicked = errors.New("task panicked")
)
