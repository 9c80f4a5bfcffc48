package expressions

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/flowt-dev/flowt/pkg/schema"
)

// CELEngine evaluates CEL expressions against the run context. The whole
// context map is bound to the single variable `ctx`, so assertions read
// like `ctx.fetch.status == 200 && ctx.judge.result == "yes"`.
type CELEngine struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELEngine creates a CELEngine. Returns an error if the CEL
// environment cannot be constructed.
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("ctx", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInternal,
			"cel environment setup failed: %s", err.Error()).WithCause(err)
	}

	return &CELEngine{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string {
	return "cel"
}

// Evaluate compiles and runs a CEL expression with the run context bound
// to the `ctx` variable.
func (e *CELEngine) Evaluate(_ context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "cel expression must not be empty")
	}

	program, err := e.getOrCompile(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"cel compile failed: %s", err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression, "engine": e.Name()})
	}

	if data == nil {
		data = map[string]any{}
	}

	out, _, err := program.Eval(map[string]any{"ctx": data})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"cel evaluation failed: %s", err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression, "engine": e.Name()})
	}

	return celValueToGo(out), nil
}

// getOrCompile returns the cached program or compiles and caches it,
// double-checked under the write lock.
func (e *CELEngine) getOrCompile(expression string) (cel.Program, error) {
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

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, err
	}

	e.cache[expression] = program
	return program, nil
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// celValueToGo converts a CEL ref.Val to a plain Go value.
func celValueToGo(val ref.Val) any {
	if val == nil {
		return nil
	}
	if types.IsError(val) || types.IsUnknown(val) {
		return nil
	}

	native, err := val.ConvertToNative(anyType)
	if err != nil {
		return val.Value()
	}
	return native
}
