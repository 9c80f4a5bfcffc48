package actions

import (
	"context"
	"fmt"

	"github.com/flowt-dev/flowt/internal/expressions"
	"github.com/flowt-dev/flowt/pkg/schema"
)

// ExprAction evaluates an expr-lang expression against the run context
// and returns the value for later steps.
type ExprAction struct {
	engine expressions.Engine
}

// NewExprAction creates an ExprAction backed by engine.
func NewExprAction(engine expressions.Engine) *ExprAction {
	return &ExprAction{engine: engine}
}

// Name returns "expr".
func (a *ExprAction) Name() string { return "expr" }

// Execute evaluates params["expression"] and returns {value, text}.
func (a *ExprAction) Execute(ctx context.Context, params map[string]any, runCtx map[string]any) (map[string]any, error) {
	expression, err := requireStringParam(params, "expression")
	if err != nil {
		return nil, err
	}

	value, err := a.engine.Evaluate(ctx, expression, runCtx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"value": value,
		"text":  toString(value),
	}, nil
}

// JQAction runs a jq program over the run context.
type JQAction struct {
	engine expressions.Engine
}

// NewJQAction creates a JQAction backed by engine.
func NewJQAction(engine expressions.Engine) *JQAction {
	return &JQAction{engine: engine}
}

// Name returns "jq".
func (a *JQAction) Name() string { return "jq" }

// Execute runs params["query"] and returns {value, text}.
func (a *JQAction) Execute(ctx context.Context, params map[string]any, runCtx map[string]any) (map[string]any, error) {
	query, err := requireStringParam(params, "query")
	if err != nil {
		return nil, err
	}

	value, err := a.engine.Evaluate(ctx, query, runCtx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"value": value,
		"text":  toString(value),
	}, nil
}

// AssertAction evaluates a CEL expression expected to yield a boolean;
// false fails the step, aborting the run under the normal policy.
type AssertAction struct {
	engine expressions.Engine
}

// NewAssertAction creates an AssertAction backed by engine.
func NewAssertAction(engine expressions.Engine) *AssertAction {
	return &AssertAction{engine: engine}
}

// Name returns "assert".
func (a *AssertAction) Name() string { return "assert" }

// Execute evaluates params["condition"]; a non-boolean result or a false
// result is an error. An optional params["message"] overrides the
// failure message.
func (a *AssertAction) Execute(ctx context.Context, params map[string]any, runCtx map[string]any) (map[string]any, error) {
	condition, err := requireStringParam(params, "condition")
	if err != nil {
		return nil, err
	}

	value, err := a.engine.Evaluate(ctx, condition, runCtx)
	if err != nil {
		return nil, err
	}

	passed, ok := value.(bool)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"condition %q evaluated to %T, want bool", condition, value)
	}

	if !passed {
		message := stringParam(params, "message", fmt.Sprintf("assertion failed: %s", condition))
		return nil, schema.NewError(schema.ErrCodeActionFailed, message)
	}

	return map[string]any{
		"passed": true,
		"text":   "yes",
	}, nil
}
