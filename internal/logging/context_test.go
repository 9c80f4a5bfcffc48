package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "20260831_090000_aa11")
	ctx = WithWorkflow(ctx, "daily_report")
	ctx = WithStepID(ctx, "fetch")

	assert.Equal(t, "20260831_090000_aa11", RunID(ctx))
	assert.Equal(t, "daily_report", Workflow(ctx))
	assert.Equal(t, "fetch", StepID(ctx))
}

func TestContext_AbsentIsEmpty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RunID(ctx))
	assert.Empty(t, Workflow(ctx))
	assert.Empty(t, StepID(ctx))
}

func TestCorrelationHandler_InjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithStepID(WithWorkflow(WithRunID(context.Background(), "run-1"), "wf"), "step-1")
	logger.InfoContext(ctx, "hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "wf", entry["workflow"])
	assert.Equal(t, "step-1", entry["step_id"])
}

func TestCorrelationHandler_NoIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Info("plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "run_id")
	assert.NotContains(t, entry, "step_id")
}
