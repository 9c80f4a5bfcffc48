package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowt-dev/flowt/internal/actions"
	"github.com/flowt-dev/flowt/pkg/schema"
)

type memoryRunLog struct {
	mu      sync.Mutex
	records []*schema.RunRecord
}

func (l *memoryRunLog) Append(record *schema.RunRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *memoryRunLog) last(t *testing.T) *schema.RunRecord {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotEmpty(t, l.records)
	return l.records[len(l.records)-1]
}

type mapSource struct {
	workflows map[string]*schema.Workflow
}

func (s *mapSource) Load(name string) (*schema.Workflow, error) {
	wf, ok := s.workflows[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", name)
	}
	return wf, nil
}

func newTestExecutor(t *testing.T) (*Executor, *actions.Registry, *memoryRunLog) {
	t.Helper()
	registry := actions.NewRegistry()
	runLog := &memoryRunLog{}
	exec := New(registry, runLog, Options{BaseDir: t.TempDir()})
	return exec, registry, runLog
}

func registerEcho(t *testing.T, registry *actions.Registry) {
	t.Helper()
	require.NoError(t, registry.RegisterFunc("echo", func(_ context.Context, params, _ map[string]any) (map[string]any, error) {
		return map[string]any{"text": params["message"]}, nil
	}))
}

func TestExecutor_Run_Sequential(t *testing.T) {
	exec, registry, runLog := newTestExecutor(t)
	registerEcho(t, registry)

	wf := &schema.Workflow{
		Name: "pipeline",
		Steps: []schema.Step{
			{ID: "first", Type: "echo", Params: map[string]any{"message": "one"}},
			{ID: "second", Type: "echo", Params: map[string]any{"message": "got {{ first.text }}"}},
		},
	}

	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, schema.RunStatusSuccess, record.Status)
	require.Len(t, record.Steps, 2)
	assert.Equal(t, "got one", record.Steps[1].Result["text"])
	assert.Nil(t, record.Error)

	logged := runLog.last(t)
	assert.Equal(t, record.RunID, logged.RunID)
	assert.Len(t, runLog.records, 1, "record appended exactly once")
}

func TestExecutor_Run_ReservedContextVariables(t *testing.T) {
	exec, registry, _ := newTestExecutor(t)

	var seen map[string]any
	require.NoError(t, registry.RegisterFunc("capture", func(_ context.Context, _, runCtx map[string]any) (map[string]any, error) {
		seen = runCtx
		return map[string]any{}, nil
	}))

	wf := &schema.Workflow{
		Name:  "ctx_check",
		Steps: []schema.Step{{ID: "s1", Type: "capture"}},
	}

	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.NoError(t, err)

	for _, key := range schema.ReservedContextKeys {
		assert.Contains(t, seen, key, "missing reserved key %q", key)
	}
	assert.Equal(t, record.RunID, seen["run_id"])
	assert.Equal(t, "ctx_check", seen["workflow"])
	assert.Regexp(t, `^\d{8}$`, seen["today_ymd"])
	assert.Regexp(t, `^\d{8}_\d{6}$`, seen["now_ymd_hms"])
}

func TestExecutor_Run_ExtraCannotShadowReserved(t *testing.T) {
	exec, registry, _ := newTestExecutor(t)

	var seen map[string]any
	require.NoError(t, registry.RegisterFunc("capture", func(_ context.Context, _, runCtx map[string]any) (map[string]any, error) {
		seen = runCtx
		return map[string]any{}, nil
	}))

	wf := &schema.Workflow{Name: "wf", Steps: []schema.Step{{ID: "s1", Type: "capture"}}}

	record, err := exec.Run(context.Background(), wf, RunOptions{
		Extra: map[string]any{"run_id": "forged", "report_date": "2026-08-31"},
	})
	require.NoError(t, err)
	assert.Equal(t, record.RunID, seen["run_id"], "reserved keys are not overridable")
	assert.Equal(t, "2026-08-31", seen["report_date"])
}

func TestExecutor_Run_RunIDFormat(t *testing.T) {
	exec, registry, _ := newTestExecutor(t)
	registerEcho(t, registry)

	wf := &schema.Workflow{Name: "wf", Steps: []schema.Step{{ID: "s1", Type: "echo"}}}
	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.NoError(t, err)
	assert.Regexp(t, `^\d{8}_\d{6}_[0-9a-f]{4}$`, record.RunID)
}

func TestExecutor_Run_WhenSkips(t *testing.T) {
	exec, registry, _ := newTestExecutor(t)
	registerEcho(t, registry)

	require.NoError(t, registry.RegisterFunc("judge", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return map[string]any{"result": "no"}, nil
	}))

	wf := &schema.Workflow{
		Name: "gated",
		Steps: []schema.Step{
			{ID: "check", Type: "judge"},
			{
				ID:     "notify",
				Type:   "echo",
				Params: map[string]any{"message": "fired"},
				When:   &schema.Condition{Step: "check", Field: "result", Equals: "yes"},
			},
		},
	}

	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, schema.RunStatusSuccess, record.Status, "skip is not a failure")
	require.Len(t, record.Steps, 2)
	assert.Equal(t, schema.StepStatusSkipped, record.Steps[1].Status)
	assert.Equal(t, "condition_not_met", record.Steps[1].Result["reason"])
}

func TestExecutor_Run_WhenMissingStepSkips(t *testing.T) {
	exec, registry, _ := newTestExecutor(t)
	registerEcho(t, registry)

	wf := &schema.Workflow{
		Name: "gated",
		Steps: []schema.Step{
			{
				ID:     "notify",
				Type:   "echo",
				When:   &schema.Condition{Step: "never_ran", Equals: "yes"},
				Params: map[string]any{"message": "x"},
			},
		},
	}

	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusSuccess, record.Status)
	assert.Equal(t, schema.StepStatusSkipped, record.Steps[0].Status)
	assert.Equal(t, "condition_step_missing:never_ran", record.Steps[0].Result["reason"])
}

func TestExecutor_Run_SkippedStepOutputInvisible(t *testing.T) {
	exec, registry, _ := newTestExecutor(t)
	registerEcho(t, registry)

	require.NoError(t, registry.RegisterFunc("judge_no", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return map[string]any{"result": "no"}, nil
	}))

	wf := &schema.Workflow{
		Name: "chain",
		Steps: []schema.Step{
			{ID: "check", Type: "judge_no"},
			{
				ID:   "skipped_one",
				Type: "echo",
				When: &schema.Condition{Step: "check", Field: "result", Equals: "yes"},
			},
			{
				ID:   "gated_on_skipped",
				Type: "echo",
				When: &schema.Condition{Step: "skipped_one", Equals: "anything"},
			},
		},
	}

	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusSuccess, record.Status)
	assert.Equal(t, schema.StepStatusSkipped, record.Steps[2].Status)
	assert.Equal(t, "condition_step_missing:skipped_one", record.Steps[2].Result["reason"])
}

func TestExecutor_Run_FailureAborts(t *testing.T) {
	exec, registry, runLog := newTestExecutor(t)
	registerEcho(t, registry)

	require.NoError(t, registry.RegisterFunc("boom", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return nil, schema.NewError(schema.ErrCodeActionFailed, "exploded")
	}))

	wf := &schema.Workflow{
		Name: "aborting",
		Steps: []schema.Step{
			{ID: "ok", Type: "echo", Params: map[string]any{"message": "x"}},
			{ID: "bad", Type: "boom"},
			{ID: "never", Type: "echo"},
		},
	}

	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.Error(t, err)

	assert.Equal(t, schema.RunStatusFailed, record.Status)
	require.Len(t, record.Steps, 2, "steps after the failure are absent")
	assert.Equal(t, schema.StepStatusFailed, record.Steps[1].Status)
	require.NotNil(t, record.Error)
	assert.Contains(t, *record.Error, "exploded")
	assert.Equal(t, *record.Error, record.Steps[1].Error)

	logged := runLog.last(t)
	assert.Equal(t, schema.RunStatusFailed, logged.Status)
}

func TestExecutor_Run_UnknownActionFails(t *testing.T) {
	exec, registry, _ := newTestExecutor(t)
	registerEcho(t, registry)

	wf := &schema.Workflow{
		Name:  "unknown",
		Steps: []schema.Step{{ID: "s1", Type: "no_such_action"}},
	}

	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.Error(t, err)
	assert.Equal(t, schema.RunStatusFailed, record.Status)
	assert.Contains(t, record.Steps[0].Error, "no_such_action")
	assert.Contains(t, record.Steps[0].Error, "echo", "error lists available actions")
}

func TestExecutor_Run_TemplateErrorFails(t *testing.T) {
	exec, registry, _ := newTestExecutor(t)
	registerEcho(t, registry)

	wf := &schema.Workflow{
		Name: "bad_template",
		Steps: []schema.Step{
			{ID: "s1", Type: "echo", Params: map[string]any{"message": "{{ missing.var }}"}},
		},
	}

	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.Error(t, err)
	assert.Equal(t, schema.RunStatusFailed, record.Status)
	assert.Equal(t, schema.StepStatusFailed, record.Steps[0].Status)
}

func TestExecutor_Run_PanicRecovered(t *testing.T) {
	exec, registry, _ := newTestExecutor(t)

	require.NoError(t, registry.RegisterFunc("panicky", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		panic("kaboom")
	}))

	wf := &schema.Workflow{Name: "panics", Steps: []schema.Step{{ID: "s1", Type: "panicky"}}}

	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.Error(t, err)
	assert.Equal(t, schema.RunStatusFailed, record.Status)
	assert.Contains(t, record.Steps[0].Error, "kaboom")
}

func TestExecutor_Run_StopAtBoundary(t *testing.T) {
	exec, registry, runLog := newTestExecutor(t)

	stop := NewStopFlag()
	require.NoError(t, registry.RegisterFunc("stopper", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		stop.Set()
		return map[string]any{"text": "done"}, nil
	}))
	registerEcho(t, registry)

	wf := &schema.Workflow{
		Name: "stoppable",
		Steps: []schema.Step{
			{ID: "first", Type: "stopper"},
			{ID: "second", Type: "echo"},
		},
	}

	record, err := exec.Run(context.Background(), wf, RunOptions{Stop: stop})
	require.Error(t, err)

	assert.Equal(t, schema.RunStatusStopped, record.Status)
	require.Len(t, record.Steps, 1, "step after the stop is absent")
	assert.Equal(t, schema.StepStatusSuccess, record.Steps[0].Status)
	assert.Equal(t, schema.RunStatusStopped, runLog.last(t).Status)
}

func TestExecutor_Run_SolePlaceholderKeepsType(t *testing.T) {
	exec, registry, _ := newTestExecutor(t)

	require.NoError(t, registry.RegisterFunc("produce", func(_ context.Context, _, _ map[string]any) (map[string]any, error) {
		return map[string]any{"items": []any{1, 2, 3}, "count": 3}, nil
	}))

	var got map[string]any
	require.NoError(t, registry.RegisterFunc("consume", func(_ context.Context, params, _ map[string]any) (map[string]any, error) {
		got = params
		return map[string]any{}, nil
	}))

	wf := &schema.Workflow{
		Name: "typed",
		Steps: []schema.Step{
			{ID: "make", Type: "produce"},
			{ID: "use", Type: "consume", Params: map[string]any{
				"list":  "{{ make.items }}",
				"mixed": "count={{ make.count }}",
			}},
		},
	}

	_, err := exec.Run(context.Background(), wf, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, got["list"], "sole placeholder preserves native type")
	assert.Equal(t, "count=3", got["mixed"], "mixed template stringifies")
}

func TestExecutor_Run_Timeout(t *testing.T) {
	registry := actions.NewRegistry()
	runLog := &memoryRunLog{}
	exec := New(registry, runLog, Options{BaseDir: t.TempDir(), StepTimeout: 20 * time.Millisecond})

	require.NoError(t, registry.RegisterFunc("slow", func(ctx context.Context, _, _ map[string]any) (map[string]any, error) {
		select {
		case <-time.After(time.Second):
			return map[string]any{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	wf := &schema.Workflow{Name: "slowpoke", Steps: []schema.Step{{ID: "s1", Type: "slow"}}}

	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.Error(t, err)
	assert.Equal(t, schema.RunStatusFailed, record.Status)
	assert.Contains(t, record.Steps[0].Error, "timed out")
}

func TestExecutor_Run_Timestamps(t *testing.T) {
	exec, registry, _ := newTestExecutor(t)
	registerEcho(t, registry)

	wf := &schema.Workflow{Name: "wf", Steps: []schema.Step{{ID: "s1", Type: "echo"}}}
	record, err := exec.Run(context.Background(), wf, RunOptions{})
	require.NoError(t, err)

	started, perr := time.Parse(time.RFC3339, record.StartedAt)
	require.NoError(t, perr)
	_, offset := started.Zone()
	assert.Equal(t, 9*60*60, offset, "timestamps carry the +09:00 offset")
	assert.NotEmpty(t, record.EndedAt)
}
