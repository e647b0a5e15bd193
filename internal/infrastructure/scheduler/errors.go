package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a cycle on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrCycleInProgress is returned when a cycle for the instance is already running
	ErrCycleInProgress = errors.New("sync cycle already in progress for this instance")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
