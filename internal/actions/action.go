// Package actions defines the step action contract, the registry the
// executor dispatches through, and the builtin action set.
package actions

import "context"

// Action is an executable unit of work within a workflow step. Params
// arrive fully rendered; runCtx is the run context the step executes in
// (read-only by convention, actions must not mutate it).
type Action interface {
	Name() string
	Execute(ctx context.Context, params map[string]any, runCtx map[string]any) (map[string]any, error)
}

// ActionFunc adapts a plain function to the Action interface.
type ActionFunc func(ctx context.Context, params map[string]any, runCtx map[string]any) (map[string]any, error)

type funcAction struct {
	name string
	fn   ActionFunc
}

func (a *funcAction) Name() string { return a.name }

func (a *funcAction) Execute(ctx context.Context, params map[string]any, runCtx map[string]any) (map[string]any, error) {
	return a.fn(ctx, params, runCtx)
}

// NewActionFunc wraps fn as a named Action.
func NewActionFunc(name string, fn ActionFunc) Action {
	return &funcAction{name: name, fn: fn}
}
