// Package scheduler fires workflow runs on cron schedules. It sweeps
// the workflow directory, registers every enabled schedule-triggered
// workflow with a cron runtime, and launches runs through the engine
// manager. Overlapping runs of the same workflow are permitted.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/flowt-dev/flowt/internal/engine"
	"github.com/flowt-dev/flowt/pkg/schema"
)

// cronParser accepts standard 5-field cron expressions, matching what
// the loader validates.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Launcher starts a workflow run and returns its run id. Satisfied by
// *engine.Manager.
type Launcher interface {
	Launch(ctx context.Context, workflowName string, extra map[string]any) (string, error)
}

// WorkflowSweeper enumerates loadable workflows. Satisfied by
// *loader.Loader.
type WorkflowSweeper interface {
	LoadAll() ([]*schema.Workflow, error)
}

// Scheduler registers schedule-triggered workflows with a cron runtime
// and launches runs when they fire. Refresh replaces the registered set
// wholesale, so edits to workflow files take effect on the next sweep.
type Scheduler struct {
	sweeper  WorkflowSweeper
	launcher Launcher
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	started bool
}

// New creates a Scheduler. Cron expressions evaluate in the engine's
// fixed timezone.
func New(sweeper WorkflowSweeper, launcher Launcher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweeper:  sweeper,
		launcher: launcher,
		logger:   logger,
		cron: cron.New(
			cron.WithLocation(engine.Timezone),
			cron.WithParser(cronParser),
		),
		entries: make(map[string]cron.EntryID),
	}
}

// Start performs an initial sweep and starts the cron runtime.
func (s *Scheduler) Start() error {
	if err := s.Refresh(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started", slog.Int("schedules", len(s.entries)))
	return nil
}

// Stop halts the cron runtime and waits for in-flight trigger callbacks
// to return. Runs already handed to the manager keep going.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	if started {
		<-s.cron.Stop().Done()
		s.logger.Info("scheduler stopped")
	}
}

// Refresh re-sweeps the workflow directory and replaces the registered
// schedules. Workflows that are disabled, manual, or no longer present
// are dropped; changed cron expressions are re-registered.
func (s *Scheduler) Refresh() error {
	workflows, err := s.sweeper.LoadAll()
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "sweep workflows: %s", err.Error()).WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}

	for _, wf := range workflows {
		if wf.Trigger.Type != schema.TriggerSchedule || !wf.IsEnabled() {
			continue
		}
		name := wf.Name
		id, err := s.cron.AddFunc(wf.Trigger.Cron, func() { s.fire(name) })
		if err != nil {
			// Loader validation should have caught this; skip rather
			// than fail the whole sweep.
			s.logger.Warn("skipping unschedulable workflow",
				slog.String("workflow", name),
				slog.String("cron", wf.Trigger.Cron),
				slog.String("error", err.Error()))
			continue
		}
		s.entries[name] = id
		s.logger.Debug("schedule registered",
			slog.String("workflow", name), slog.String("cron", wf.Trigger.Cron))
	}
	return nil
}

// Scheduled returns the names of currently registered workflows.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// fire launches one run of the workflow. Launch failures are logged,
// never raised: a broken workflow must not take down the scheduler.
func (s *Scheduler) fire(workflowName string) {
	runID, err := s.launcher.Launch(context.Background(), workflowName, nil)
	if err != nil {
		s.logger.Error("scheduled launch failed",
			slog.String("workflow", workflowName), slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scheduled run launched",
		slog.String("workflow", workflowName), slog.String("run_id", runID))
}
