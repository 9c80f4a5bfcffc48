package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/flowt-dev/flowt/pkg/schema"
)

// RunInfo summarizes an in-flight run.
type RunInfo struct {
	RunID    string `json:"run_id"`
	Workflow string `json:"workflow"`
}

type runHandle struct {
	info RunInfo
	stop *StopFlag
	done chan struct{}
}

// Manager launches runs through a bounded pool and tracks them while in
// flight, so callers can stop a run by id or ask what is running.
// Overlapping runs of the same workflow are allowed; each gets an
// independent context and record.
type Manager struct {
	executor *Executor
	source   WorkflowSource
	pool     *RunPool
	logger   *slog.Logger

	mu   sync.Mutex
	runs map[string]*runHandle
}

// NewManager creates a Manager executing at most poolSize runs at once.
func NewManager(executor *Executor, source WorkflowSource, poolSize int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		executor: executor,
		source:   source,
		pool:     NewRunPool(poolSize),
		logger:   logger,
		runs:     make(map[string]*runHandle),
	}
}

// Launch loads the named workflow and starts it on the pool, returning
// the run id immediately. Extra variables are injected into the run
// context. Launch blocks only while the pool is at capacity.
func (m *Manager) Launch(ctx context.Context, workflowName string, extra map[string]any) (string, error) {
	wf, err := m.source.Load(workflowName)
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeNotFound,
			"load workflow %q: %s", workflowName, err.Error()).WithCause(err)
	}

	runID := NewRunID(time.Now().In(Timezone))
	handle := &runHandle{
		info: RunInfo{RunID: runID, Workflow: wf.Name},
		stop: NewStopFlag(),
		done: make(chan struct{}),
	}

	m.mu.Lock()
	m.runs[runID] = handle
	m.mu.Unlock()

	err = m.pool.Submit(ctx, func(runCtx context.Context) error {
		defer func() {
			m.mu.Lock()
			delete(m.runs, runID)
			m.mu.Unlock()
			close(handle.done)
		}()

		_, runErr := m.executor.Run(runCtx, wf, RunOptions{
			RunID: runID,
			Extra: extra,
			Stop:  handle.stop,
		})
		return runErr
	})
	if err != nil {
		m.mu.Lock()
		delete(m.runs, runID)
		m.mu.Unlock()
		return "", err
	}

	return runID, nil
}

// Stop requests an in-flight run to stop at its next step boundary.
func (m *Manager) Stop(runID string) error {
	m.mu.Lock()
	handle, ok := m.runs[runID]
	m.mu.Unlock()

	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "run %q is not in flight", runID)
	}

	handle.stop.Set()
	m.logger.Info("stop requested", slog.String("run_id", runID), slog.String("workflow", handle.info.Workflow))
	return nil
}

// WaitFor blocks until the run finishes or the context is done. Unknown
// run ids return immediately: the run already finished.
func (m *Manager) WaitFor(ctx context.Context, runID string) error {
	m.mu.Lock()
	handle, ok := m.runs[runID]
	m.mu.Unlock()

	if !ok {
		return nil
	}
	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running returns the in-flight runs sorted by run id.
func (m *Manager) Running() []RunInfo {
	m.mu.Lock()
	infos := make([]RunInfo, 0, len(m.runs))
	for _, handle := range m.runs {
		infos = append(infos, handle.info)
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].RunID < infos[j].RunID
	})
	return infos
}

// IsRunning reports whether any run of the workflow is in flight.
func (m *Manager) IsRunning(workflowName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, handle := range m.runs {
		if handle.info.Workflow == workflowName {
			return true
		}
	}
	return false
}

// Shutdown stops accepting runs and waits for in-flight runs to finish.
func (m *Manager) Shutdown() {
	m.pool.Shutdown()
}

// Metrics exposes the underlying pool counters.
func (m *Manager) Metrics() PoolMetrics {
	return m.pool.Metrics()
}
