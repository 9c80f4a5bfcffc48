// Package engine executes workflows: it seeds the run context, walks
// steps sequentially, renders params, dispatches actions, and produces
// one immutable run record per run.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/flowt-dev/flowt/internal/actions"
	"github.com/flowt-dev/flowt/internal/logging"
	"github.com/flowt-dev/flowt/internal/streaming"
	"github.com/flowt-dev/flowt/internal/template"
	"github.com/flowt-dev/flowt/pkg/schema"
)

// DefaultStepTimeout bounds a single action invocation.
const DefaultStepTimeout = 5 * time.Minute

// RunLog persists finalized run records.
type RunLog interface {
	Append(record *schema.RunRecord) error
}

// WorkflowSource loads workflow definitions by name, used to resolve
// sub-workflow invocations.
type WorkflowSource interface {
	Load(name string) (*schema.Workflow, error)
}

// Options configures an Executor.
type Options struct {
	BaseDir     string
	StepTimeout time.Duration
	Hub         streaming.EventHub
	Logger      *slog.Logger
}

// Executor runs workflows. It is safe for concurrent use; each Run call
// owns its context map and record exclusively.
type Executor struct {
	registry    *actions.Registry
	renderer    *template.Renderer
	runLog      RunLog
	hub         streaming.EventHub
	logger      *slog.Logger
	baseDir     string
	stepTimeout time.Duration
}

// New creates an Executor dispatching through registry and appending
// finalized records to runLog.
func New(registry *actions.Registry, runLog RunLog, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.StepTimeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	return &Executor{
		registry:    registry,
		renderer:    template.NewRenderer(),
		runLog:      runLog,
		hub:         opts.Hub,
		logger:      logger,
		baseDir:     opts.BaseDir,
		stepTimeout: timeout,
	}
}

// BindSubWorkflows wires the subworkflow action back into this executor
// so nested invocations re-enter the same run machinery, loading
// definitions from source.
func (e *Executor) BindSubWorkflows(sub *actions.SubWorkflowAction, source WorkflowSource) {
	sub.SetRunner(func(ctx context.Context, name string, extra map[string]any) (*schema.RunRecord, error) {
		wf, err := source.Load(name)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound,
				"load workflow %q: %s", name, err.Error()).WithCause(err)
		}
		return e.Run(ctx, wf, RunOptions{Extra: extra})
	})
}

// RunOptions carries per-run inputs.
type RunOptions struct {
	// RunID overrides the generated run id, letting callers know the id
	// before the run starts (the run manager needs it to route stop
	// requests). Empty means generate one.
	RunID string
	// Extra variables injected into the run context before step 1.
	Extra map[string]any
	// Stop is the advisory stop flag, polled at step boundaries.
	Stop *StopFlag
}

// Run executes wf to completion and returns the finalized record. The
// record is always non-nil and already appended to the run log; the
// error mirrors the record's terminal status (nil on success, the
// causing step error on failure, a STOPPED error on a honored stop).
func (e *Executor) Run(ctx context.Context, wf *schema.Workflow, opts RunOptions) (*schema.RunRecord, error) {
	if wf == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}

	startedAt := time.Now().In(Timezone)
	runID := opts.RunID
	if runID == "" {
		runID = NewRunID(startedAt)
	}

	// The chain is seeded with the top-level workflow name so a workflow
	// invoking itself via subworkflow is caught on the first attempt.
	if len(actions.CallChainFrom(ctx)) == 0 {
		ctx = actions.WithCallChain(ctx, []string{wf.Name})
	}
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithWorkflow(ctx, wf.Name)

	runCtx := e.seedContext(runID, wf, startedAt, opts.Extra)

	record := &schema.RunRecord{
		RunID:     runID,
		Workflow:  wf.Name,
		Status:    schema.RunStatusRunning,
		StartedAt: startedAt.Format(time.RFC3339),
		Steps:     []schema.StepRecord{},
	}

	e.logger.InfoContext(ctx, "workflow started", slog.Int("steps", len(wf.Steps)))
	e.publish(ctx, runID, wf.Name, "", streaming.EventRunStarted, nil)

	var runErr error
	for _, step := range wf.Steps {
		if opts.Stop.Stopped() {
			record.Status = schema.RunStatusStopped
			runErr = schema.NewError(schema.ErrCodeStopped, "stop requested")
			e.logger.InfoContext(ctx, "run stopped at step boundary", slog.String("next_step", step.ID))
			break
		}

		if step.When != nil {
			matched, reason := evaluateWhen(step.When, runCtx)
			if !matched {
				e.logger.InfoContext(ctx, "step skipped",
					slog.String("step_id", step.ID), slog.String("reason", reason))
				record.Steps = append(record.Steps, schema.StepRecord{
					ID:     step.ID,
					Type:   step.Type,
					Status: schema.StepStatusSkipped,
					Result: map[string]any{
						"reason": reason,
						"when":   conditionSummary(step.When),
					},
				})
				e.publish(ctx, runID, wf.Name, step.ID, streaming.EventStepSkipped, reason)
				continue
			}
		}

		stepRecord, stepErr := e.executeStep(ctx, step, runCtx)
		record.Steps = append(record.Steps, stepRecord)

		if stepErr != nil {
			record.Status = schema.RunStatusFailed
			message := stepRecord.Error
			record.Error = &message
			runErr = stepErr
			e.publish(ctx, runID, wf.Name, step.ID, streaming.EventStepFailed, message)
			break
		}

		runCtx[step.ID] = stepRecord.Result
		e.publish(ctx, runID, wf.Name, step.ID, streaming.EventStepCompleted, nil)
	}

	if record.Status == schema.RunStatusRunning {
		record.Status = schema.RunStatusSuccess
	}
	record.EndedAt = time.Now().In(Timezone).Format(time.RFC3339)

	e.finalize(ctx, record)
	return record, runErr
}

// seedContext builds the initial run context: reserved variables first,
// then caller extras (which may not shadow reserved keys).
func (e *Executor) seedContext(runID string, wf *schema.Workflow, startedAt time.Time, extra map[string]any) map[string]any {
	today := startedAt
	runCtx := map[string]any{
		"run_id":      runID,
		"workflow":    wf.Name,
		"now":         startedAt.Format(time.RFC3339),
		"base_dir":    e.baseDir,
		"today":       today.Format("2006-01-02"),
		"yesterday":   today.AddDate(0, 0, -1).Format("2006-01-02"),
		"tomorrow":    today.AddDate(0, 0, 1).Format("2006-01-02"),
		"today_ymd":   startedAt.Format("20060102"),
		"now_ymd_hms": startedAt.Format("20060102_150405"),
	}

	for key, value := range extra {
		if schema.IsReservedContextKey(key) {
			continue
		}
		runCtx[key] = value
	}
	return runCtx
}

// executeStep renders the step's params, dispatches its action under the
// step timeout, and converts any outcome (including a panic) into a step
// record plus its causing error. It never lets a failure escape as
// anything but a failed record.
func (e *Executor) executeStep(ctx context.Context, step schema.Step, runCtx map[string]any) (record schema.StepRecord, stepErr error) {
	record = schema.StepRecord{ID: step.ID, Type: step.Type}

	ctx = logging.WithStepID(ctx, step.ID)
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "step panicked", slog.Any("panic", r))
			stepErr = schema.NewErrorf(schema.ErrCodeInternal, "panic: %v", r).WithStep(step.ID)
			record.Status = schema.StepStatusFailed
			record.Result = nil
			record.Error = stepErr.Error()
		}
	}()

	e.logger.DebugContext(ctx, "step started", slog.String("type", step.Type))
	e.publish(ctx, logging.RunID(ctx), logging.Workflow(ctx), step.ID, streaming.EventStepStarted, nil)

	rendered, err := e.renderer.RenderParams(step.Params, runCtx)
	if err != nil {
		return failStep(record, err)
	}

	action, err := e.registry.Get(step.Type)
	if err != nil {
		return failStep(record, schema.NewErrorf(schema.ErrCodeUnknownAction,
			"unknown action type %q; available: [%s]",
			step.Type, strings.Join(e.registry.List(), ", ")))
	}

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	result, err := action.Execute(stepCtx, rendered, runCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			return failStep(record, schema.NewErrorf(schema.ErrCodeTimeout,
				"step timed out after %s", e.stepTimeout).WithCause(err))
		}
		return failStep(record, err)
	}
	if result == nil {
		result = map[string]any{}
	}

	e.logger.DebugContext(ctx, "step completed")
	record.Status = schema.StepStatusSuccess
	record.Result = result
	return record, nil
}

func failStep(record schema.StepRecord, err error) (schema.StepRecord, error) {
	record.Status = schema.StepStatusFailed
	record.Error = err.Error()
	return record, err
}

// finalize appends the record to the run log exactly once and publishes
// the terminal event. A log append failure is logged, never raised: the
// run outcome already happened.
func (e *Executor) finalize(ctx context.Context, record *schema.RunRecord) {
	if e.runLog != nil {
		if err := e.runLog.Append(record); err != nil {
			e.logger.ErrorContext(ctx, "run log append failed", slog.String("error", err.Error()))
		}
	}

	eventType := streaming.EventRunCompleted
	switch record.Status {
	case schema.RunStatusFailed:
		eventType = streaming.EventRunFailed
	case schema.RunStatusStopped:
		eventType = streaming.EventRunStopped
	}

	var payload any
	if record.Error != nil {
		payload = *record.Error
	}
	e.publish(ctx, record.RunID, record.Workflow, "", eventType, payload)

	e.logger.InfoContext(ctx, "workflow finished", slog.String("status", record.Status))
}

func (e *Executor) publish(ctx context.Context, runID, workflow, stepID, eventType string, payload any) {
	if e.hub == nil {
		return
	}
	// Best-effort; the hub drops for slow subscribers and we ignore
	// publish errors entirely.
	_ = e.hub.Publish(ctx, streaming.StreamEvent{
		RunID:     runID,
		Workflow:  workflow,
		StepID:    stepID,
		EventType: eventType,
		Payload:   payload,
	})
}
