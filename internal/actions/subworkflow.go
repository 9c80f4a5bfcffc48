package actions

import (
	"context"
	"errors"
	"strings"

	"github.com/flowt-dev/flowt/pkg/schema"
)

// DefaultMaxDepth is the sub-workflow nesting limit when a step does not
// set max_depth.
const DefaultMaxDepth = 5

type callChainKey struct{}

// WithCallChain returns a context carrying the workflow call chain. The
// executor seeds the chain with the top-level workflow name, so a
// workflow invoking itself is caught before any nested execution.
func WithCallChain(ctx context.Context, chain []string) context.Context {
	return context.WithValue(ctx, callChainKey{}, chain)
}

// CallChainFrom extracts the workflow call chain, nil when absent.
func CallChainFrom(ctx context.Context) []string {
	chain, _ := ctx.Value(callChainKey{}).([]string)
	return chain
}

// SubWorkflowRunner executes a named workflow as a nested run. The extra
// map is injected into the nested run context as top-level variables.
// A run that completed (in any terminal status) returns its finalized
// record, with the causing error alongside when it did not succeed; a
// run that never started (unknown workflow, load failure) returns a nil
// record and the error.
type SubWorkflowRunner func(ctx context.Context, workflowName string, extra map[string]any) (*schema.RunRecord, error)

// SubWorkflowAction invokes another workflow as a single step. The
// nested run gets a fresh context and its own run id and log record;
// only reserved variables and explicitly passed params cross the
// boundary.
type SubWorkflowAction struct {
	runner SubWorkflowRunner
}

// NewSubWorkflowAction creates a SubWorkflowAction. The runner is bound
// later via SetRunner since the executor that provides it depends on the
// registry holding this action.
func NewSubWorkflowAction() *SubWorkflowAction {
	return &SubWorkflowAction{}
}

// SetRunner installs the nested-run entry point.
func (a *SubWorkflowAction) SetRunner(runner SubWorkflowRunner) {
	a.runner = runner
}

// Name returns "subworkflow".
func (a *SubWorkflowAction) Name() string { return "subworkflow" }

// Execute runs params["workflow_name"] as a nested workflow.
//
// Cycle and depth are checked against the call chain before anything
// executes. A cycle is always a hard error; every other nested failure
// is absorbed into the output map when continue_on_error is true.
// Output: {success, status, run_id, results, error} where results maps
// each non-skipped nested step id to its output.
func (a *SubWorkflowAction) Execute(ctx context.Context, params map[string]any, _ map[string]any) (map[string]any, error) {
	workflowName, err := requireStringParam(params, "workflow_name")
	if err != nil {
		return nil, err
	}
	if a.runner == nil {
		return nil, schema.NewError(schema.ErrCodeInternal, "subworkflow runner not configured")
	}

	maxDepth := intParam(params, "max_depth", DefaultMaxDepth)
	continueOnError := boolParam(params, "continue_on_error", false)

	chain := CallChainFrom(ctx)

	for _, name := range chain {
		if name == workflowName {
			return nil, schema.NewErrorf(schema.ErrCodeCycleDetected,
				"workflow %q is already in call chain: %s",
				workflowName, strings.Join(chain, " -> "))
		}
	}

	if len(chain) >= maxDepth {
		err := schema.NewErrorf(schema.ErrCodeDepthExceeded,
			"max sub-workflow depth (%d) exceeded; call chain: %s",
			maxDepth, strings.Join(chain, " -> "))
		if continueOnError {
			return failedOutput(err.Error()), nil
		}
		return nil, err
	}

	extra := make(map[string]any, len(params))
	for key, value := range params {
		switch key {
		case "workflow_name", "max_depth", "continue_on_error":
		default:
			extra[key] = value
		}
	}

	nestedCtx := WithCallChain(ctx, append(append([]string{}, chain...), workflowName))
	record, runErr := a.runner(nestedCtx, workflowName, extra)

	// A cycle deeper down propagates regardless of continue_on_error.
	var ferr *schema.FlowtError
	if errors.As(runErr, &ferr) && ferr.Code == schema.ErrCodeCycleDetected {
		return nil, runErr
	}

	if record == nil {
		if runErr == nil {
			runErr = schema.NewErrorf(schema.ErrCodeInternal,
				"sub-workflow %q produced no record", workflowName)
		}
		if continueOnError {
			return failedOutput(runErr.Error()), nil
		}
		return nil, runErr
	}

	results := make(map[string]any, len(record.Steps))
	for _, step := range record.Steps {
		if step.Status != schema.StepStatusSkipped {
			results[step.ID] = step.Result
		}
	}

	success := record.Status == schema.RunStatusSuccess
	var errValue any
	if record.Error != nil {
		errValue = *record.Error
	}

	out := map[string]any{
		"success": success,
		"status":  record.Status,
		"run_id":  record.RunID,
		"results": results,
		"error":   errValue,
	}

	if !success && !continueOnError {
		message := "sub-workflow " + workflowName + " finished with status " + record.Status
		if record.Error != nil {
			message += ": " + *record.Error
		}
		return nil, schema.NewError(schema.ErrCodeActionFailed, message).
			WithDetails(map[string]any{"run_id": record.RunID, "workflow": workflowName})
	}

	return out, nil
}

func failedOutput(message string) map[string]any {
	return map[string]any{
		"success": false,
		"status":  schema.RunStatusFailed,
		"run_id":  nil,
		"results": map[string]any{},
		"error":   message,
	}
}
