package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowt-dev/flowt/pkg/schema"
)

func successRunner(t *testing.T) SubWorkflowRunner {
	t.Helper()
	return func(_ context.Context, name string, _ map[string]any) (*schema.RunRecord, error) {
		return &schema.RunRecord{
			RunID:    "20260831_120000_abcd",
			Workflow: name,
			Status:   schema.RunStatusSuccess,
			Steps: []schema.StepRecord{
				{ID: "greet", Type: "log", Status: schema.StepStatusSuccess, Result: map[string]any{"message": "hi"}},
				{ID: "gated", Type: "log", Status: schema.StepStatusSkipped},
			},
		}, nil
	}
}

func TestSubWorkflowAction_Execute_Success(t *testing.T) {
	a := NewSubWorkflowAction()
	a.SetRunner(successRunner(t))

	ctx := WithCallChain(context.Background(), []string{"parent"})
	out, err := a.Execute(ctx, map[string]any{"workflow_name": "child"}, nil)
	require.NoError(t, err)

	assert.Equal(t, true, out["success"])
	assert.Equal(t, schema.RunStatusSuccess, out["status"])
	assert.Equal(t, "20260831_120000_abcd", out["run_id"])
	assert.Nil(t, out["error"])

	results := out["results"].(map[string]any)
	assert.Contains(t, results, "greet")
	assert.NotContains(t, results, "gated", "skipped steps must not appear in results")
}

func TestSubWorkflowAction_Execute_ExtraParamsForwarded(t *testing.T) {
	a := NewSubWorkflowAction()

	var got map[string]any
	a.SetRunner(func(_ context.Context, name string, extra map[string]any) (*schema.RunRecord, error) {
		got = extra
		return &schema.RunRecord{RunID: "r", Workflow: name, Status: schema.RunStatusSuccess}, nil
	})

	_, err := a.Execute(context.Background(), map[string]any{
		"workflow_name":     "child",
		"max_depth":         3,
		"continue_on_error": true,
		"report_date":       "2026-08-31",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"report_date": "2026-08-31"}, got)
}

func TestSubWorkflowAction_Execute_DirectSelfCallIsCycle(t *testing.T) {
	a := NewSubWorkflowAction()
	ran := false
	a.SetRunner(func(_ context.Context, name string, _ map[string]any) (*schema.RunRecord, error) {
		ran = true
		return nil, nil
	})

	ctx := WithCallChain(context.Background(), []string{"loop"})
	_, err := a.Execute(ctx, map[string]any{"workflow_name": "loop"}, nil)
	require.Error(t, err)

	ferr := err.(*schema.FlowtError)
	assert.Equal(t, schema.ErrCodeCycleDetected, ferr.Code)
	assert.False(t, ran, "cycle must be detected before any nested execution")
}

func TestSubWorkflowAction_Execute_CycleIgnoresContinueOnError(t *testing.T) {
	a := NewSubWorkflowAction()
	a.SetRunner(successRunner(t))

	ctx := WithCallChain(context.Background(), []string{"a", "b"})
	_, err := a.Execute(ctx, map[string]any{
		"workflow_name":     "a",
		"continue_on_error": true,
	}, nil)
	require.Error(t, err)

	ferr := err.(*schema.FlowtError)
	assert.Equal(t, schema.ErrCodeCycleDetected, ferr.Code)
}

func TestSubWorkflowAction_Execute_DepthExceeded(t *testing.T) {
	a := NewSubWorkflowAction()
	a.SetRunner(successRunner(t))

	ctx := WithCallChain(context.Background(), []string{"a", "b"})
	_, err := a.Execute(ctx, map[string]any{
		"workflow_name": "c",
		"max_depth":     2,
	}, nil)
	require.Error(t, err)

	ferr := err.(*schema.FlowtError)
	assert.Equal(t, schema.ErrCodeDepthExceeded, ferr.Code)
}

func TestSubWorkflowAction_Execute_DepthExceededAbsorbed(t *testing.T) {
	a := NewSubWorkflowAction()
	a.SetRunner(successRunner(t))

	ctx := WithCallChain(context.Background(), []string{"a", "b"})
	out, err := a.Execute(ctx, map[string]any{
		"workflow_name":     "c",
		"max_depth":         2,
		"continue_on_error": true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, schema.RunStatusFailed, out["status"])
	assert.NotNil(t, out["error"])
}

func TestSubWorkflowAction_Execute_ChainExtendedForNestedRun(t *testing.T) {
	a := NewSubWorkflowAction()

	var chain []string
	a.SetRunner(func(ctx context.Context, name string, _ map[string]any) (*schema.RunRecord, error) {
		chain = CallChainFrom(ctx)
		return &schema.RunRecord{RunID: "r", Workflow: name, Status: schema.RunStatusSuccess}, nil
	})

	ctx := WithCallChain(context.Background(), []string{"parent"})
	_, err := a.Execute(ctx, map[string]any{"workflow_name": "child"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"parent", "child"}, chain)
}

func TestSubWorkflowAction_Execute_NestedFailurePropagates(t *testing.T) {
	a := NewSubWorkflowAction()
	errMsg := "step boom failed"
	a.SetRunner(func(_ context.Context, name string, _ map[string]any) (*schema.RunRecord, error) {
		return &schema.RunRecord{
			RunID:    "r2",
			Workflow: name,
			Status:   schema.RunStatusFailed,
			Error:    &errMsg,
		}, nil
	})

	_, err := a.Execute(context.Background(), map[string]any{"workflow_name": "child"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "child")
}

func TestSubWorkflowAction_Execute_NestedFailureAbsorbed(t *testing.T) {
	a := NewSubWorkflowAction()
	errMsg := "step boom failed"
	a.SetRunner(func(_ context.Context, name string, _ map[string]any) (*schema.RunRecord, error) {
		return &schema.RunRecord{
			RunID:    "r2",
			Workflow: name,
			Status:   schema.RunStatusFailed,
			Error:    &errMsg,
		}, nil
	})

	out, err := a.Execute(context.Background(), map[string]any{
		"workflow_name":     "child",
		"continue_on_error": true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "step boom failed", out["error"])
	assert.Equal(t, "r2", out["run_id"])
}

func TestSubWorkflowAction_Execute_MissingWorkflowName(t *testing.T) {
	a := NewSubWorkflowAction()
	a.SetRunner(successRunner(t))

	_, err := a.Execute(context.Background(), map[string]any{}, nil)
	require.Error(t, err)
}
