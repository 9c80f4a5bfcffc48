// Package expressions provides the evaluation engines backing the expr,
// jq, and assert step types. Each engine compiles and caches programs
// keyed by source text so repeated runs of the same workflow do not pay
// recompilation cost.
package expressions

import "context"

// Engine evaluates an expression against the run context.
type Engine interface {
	// Name returns the engine identifier.
	Name() string

	// Evaluate compiles (or reuses) the expression and runs it against
	// data. The returned value is a plain Go structure (map[string]any,
	// []any, string, float64, bool, nil).
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
