package expressions

import (
	"context"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/flowt-dev/flowt/pkg/schema"
)

// ExprEngine evaluates expr-lang expressions. The run context is exposed
// directly as the expression environment, so step outputs are addressable
// by their step ID: `fetch.status == 200 && len(parse.items) > 0`.
type ExprEngine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewExprEngine creates an ExprEngine with an empty program cache.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{
		cache: make(map[string]*vm.Program),
	}
}

// Name returns the engine identifier.
func (e *ExprEngine) Name() string {
	return "expr"
}

// Evaluate compiles and runs an expression against the run context.
func (e *ExprEngine) Evaluate(_ context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "expression must not be empty")
	}

	program, err := e.getOrCompile(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"expression compile failed: %s", err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression, "engine": e.Name()})
	}

	if data == nil {
		data = map[string]any{}
	}

	result, err := expr.Run(program, data)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"expression evaluation failed: %s", err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression, "engine": e.Name()})
	}

	return result, nil
}

// getOrCompile returns the cached program or compiles and caches it.
// Double-checked under the write lock so concurrent first evaluations of
// the same expression compile once.
func (e *ExprEngine) getOrCompile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok := e.cache[expression]; ok {
		return program, nil
	}

	// Run contexts are dynamic maps, so undefined variables must be
	// permitted at compile time and fail at evaluation instead.
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	e.cache[expression] = program
	return program, nil
}
