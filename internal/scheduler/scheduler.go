// Package scheduler provides task scheduling capabilities.
//
// Every task runs on its own single-worker loop: wait, run the handler to
// completion, compute the next wait, repeat. A task never overlaps itself.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/aier/aier/internal/core"
	"github.com/aier/aier/internal/logging"
)

// Scheduler manages scheduled tasks
type Scheduler struct {
	tasks   map[string]*Task
	running map[string]*taskRun
	mu      sync.RWMutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	clock   clock.Clock
	rnd     core.Random
}

type taskRun struct {
	cancel context.CancelFunc
}

// Config configures the scheduler
type Config struct {
	Clock  clock.Clock // default: wall clock
	Random core.Random // jitter source
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Clock:  clock.New(),
		Random: core.NewRandom(),
	}
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Random == nil {
		cfg.Random = core.NewRandom()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		tasks:   make(map[string]*Task),
		running: make(map[string]*taskRun),
		ctx:     ctx,
		cancel:  cancel,
		clock:   cfg.Clock,
		rnd:     cfg.Random,
	}
}

// Task represents a scheduled task
type Task struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Schedule    Schedule      `json:"schedule"`
	Handler     TaskHandler   `json:"-"`
	Enabled     bool          `json:"enabled"`
	LastRun     *time.Time    `json:"last_run,omitempty"`
	NextRun     *time.Time    `json:"next_run,omitempty"`
	RunCount    int64         `json:"run_count"`
	ErrorCount  int64         `json:"error_count"`
	LastError   string        `json:"last_error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// TaskHandler is the function executed for a task
type TaskHandler func(ctx context.Context) error

// Schedule defines when a task runs
type Schedule struct {
	Type     ScheduleType  `json:"type"`
	Interval time.Duration `json:"interval,omitempty"` // interval and jitter schedules
	Jitter   time.Duration `json:"jitter,omitempty"`   // extra uniform delay in [0, Jitter]
	Delay    time.Duration `json:"delay,omitempty"`    // once schedules
}

// ScheduleType represents the type of schedule
type ScheduleType string

const (
	ScheduleInterval ScheduleType = "interval" // Run every X duration
	ScheduleJitter   ScheduleType = "jitter"   // Run every X plus a random extra
	ScheduleOnce     ScheduleType = "once"     // Run once after a delay
)

// Register adds a task to the scheduler
func (s *Scheduler) Register(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}

	if task.Handler == nil {
		return fmt.Errorf("task handler is required")
	}

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task already registered: %s", task.ID)
	}

	task.CreatedAt = s.clock.Now()
	s.tasks[task.ID] = task

	if s.started && task.Enabled {
		s.startTask(task)
	}

	return nil
}

// Unregister removes a task from the scheduler. A pending wait is
// cancelled; a handler already executing runs to completion, so a task may
// unregister itself.
func (s *Scheduler) Unregister(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTask(taskID)
	delete(s.tasks, taskID)
	return nil
}

// Enable enables a task. Enabling a task whose loop is already running is
// a no-op.
func (s *Scheduler) Enable(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}

	task.Enabled = true
	if s.started {
		if _, running := s.running[taskID]; !running {
			s.startTask(task)
		}
	}

	return nil
}

// Disable disables a task. A pending wait is cancelled; a handler already
// executing runs to completion.
func (s *Scheduler) Disable(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}

	task.Enabled = false
	task.NextRun = nil
	s.stopTask(taskID)

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	s.started = true

	// Start all enabled tasks
	for _, task := range s.tasks {
		if task.Enabled {
			s.startTask(task)
		}
	}

	return nil
}

// Stop stops the scheduler and waits for every loop to exit. In-flight
// handlers see their context cancelled.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}

	s.cancel()
	for id := range s.running {
		s.stopTask(id)
	}
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	// Create new context for potential restart
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	return nil
}

// startTask starts a single task's loop. Caller holds s.mu.
func (s *Scheduler) startTask(task *Task) {
	waitCtx, cancel := context.WithCancel(s.ctx)
	run := &taskRun{cancel: cancel}
	s.running[task.ID] = run

	s.wg.Add(1)
	go s.runTaskLoop(s.ctx, waitCtx, task, run)
}

// stopTask cancels a task's loop. Caller holds s.mu.
func (s *Scheduler) stopTask(taskID string) {
	if run, ok := s.running[taskID]; ok {
		run.cancel()
		delete(s.running, taskID)
	}
}

// runTaskLoop is the main loop for a task. waitCtx ends the loop;
// handlers run under execCtx so that Disable does not abort them.
func (s *Scheduler) runTaskLoop(execCtx, waitCtx context.Context, task *Task, run *taskRun) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if s.running[task.ID] == run {
			delete(s.running, task.ID)
		}
		s.mu.Unlock()
	}()

	for {
		wait := s.nextDelay(task.Schedule)

		s.mu.Lock()
		next := s.clock.Now().Add(wait)
		timer := s.clock.Timer(wait)
		task.NextRun = &next
		s.mu.Unlock()

		select {
		case <-waitCtx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.executeTask(execCtx, task)

		// Check if one-time task
		if task.Schedule.Type == ScheduleOnce {
			s.mu.Lock()
			task.Enabled = false
			task.NextRun = nil
			s.mu.Unlock()
			return
		}

		if waitCtx.Err() != nil {
			return
		}
	}
}

// executeTask executes a single task
func (s *Scheduler) executeTask(ctx context.Context, task *Task) {
	// Update last run
	now := s.clock.Now()
	s.mu.Lock()
	task.LastRun = &now
	task.RunCount++
	s.mu.Unlock()

	// Execute handler
	err := task.Handler(ctx)

	// Update status
	s.mu.Lock()
	if err != nil {
		task.ErrorCount++
		task.LastError = err.Error()
	} else {
		task.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		logging.WithField("task", task.ID).Warn("task failed: %v", err)
	}
}

// nextDelay returns how long to wait before the next run
func (s *Scheduler) nextDelay(schedule Schedule) time.Duration {
	switch schedule.Type {
	case ScheduleInterval:
		return schedule.Interval

	case ScheduleJitter:
		d := schedule.Interval
		if schedule.Jitter > 0 {
			d += time.Duration(s.rnd.Float64() * float64(schedule.Jitter))
		}
		return d

	case ScheduleOnce:
		return schedule.Delay

	default:
		return time.Hour
	}
}

// IsRunning reports whether a task's loop is active
func (s *Scheduler) IsRunning(taskID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.running[taskID]
	return ok
}

// GetTask returns a copy of a task by ID
func (s *Scheduler) GetTask(taskID string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// GetStats returns scheduler statistics
func (s *Scheduler) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:      s.started,
		TotalTasks:   len(s.tasks),
		RunningTasks: len(s.running),
	}

	for _, task := range s.tasks {
		if task.Enabled {
			stats.EnabledTasks++
		}
		stats.TotalRuns += task.RunCount
		stats.TotalErrors += task.ErrorCount
	}

	return stats
}

// Stats contains scheduler statistics
type Stats struct {
	Started      bool  `json:"started"`
	TotalTasks   int   `json:"total_tasks"`
	EnabledTasks int   `json:"enabled_tasks"`
	RunningTasks int   `json:"running_tasks"`
	TotalRuns    int64 `json:"total_runs"`
	TotalErrors  int64 `json:"total_errors"`
}

// TaskBuilder provides fluent API for building tasks
type TaskBuilder struct {
	task *Task
}

// NewTask creates a new task builder
func NewTask(id string) *TaskBuilder {
	return &TaskBuilder{
		task: &Task{
			ID:      id,
			Enabled: true,
		},
	}
}

// Name sets the task name
func (b *TaskBuilder) Name(name string) *TaskBuilder {
	b.task.Name = name
	return b
}

// Description sets the task description
func (b *TaskBuilder) Description(desc string) *TaskBuilder {
	b.task.Description = desc
	return b
}

// Every sets an interval schedule
func (b *TaskBuilder) Every(interval time.Duration) *TaskBuilder {
	b.task.Schedule = Schedule{Type: ScheduleInterval, Interval: interval}
	return b
}

// EveryWithJitter waits interval plus up to jitter between runs
func (b *TaskBuilder) EveryWithJitter(interval, jitter time.Duration) *TaskBuilder {
	b.task.Schedule = Schedule{Type: ScheduleJitter, Interval: interval, Jitter: jitter}
	return b
}

// After sets a one-time schedule
func (b *TaskBuilder) After(delay time.Duration) *TaskBuilder {
	b.task.Schedule = Schedule{Type: ScheduleOnce, Delay: delay}
	return b
}

// Handler sets the task handler
func (b *TaskBuilder) Handler(handler TaskHandler) *TaskBuilder {
	b.task.Handler = handler
	return b
}

// Disabled creates the task in disabled state
func (b *TaskBuilder) Disabled() *TaskBuilder {
	b.task.Enabled = false
	return b
}

// Build returns the constructed task
func (b *TaskBuilder) Build() *Task {
	return b.task
}
