package expressions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/flowt-dev/flowt/pkg/schema"
)

// GoJQEngine evaluates jq programs against the run context. The context
// map is the program input, so `.fetch.body | fromjson | .items[0]` reads
// the raw body of the step with ID "fetch".
type GoJQEngine struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewGoJQEngine creates a GoJQEngine with an empty program cache.
func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{
		cache: make(map[string]*gojq.Code),
	}
}

// Name returns the engine identifier.
func (e *GoJQEngine) Name() string {
	return "jq"
}

// Evaluate compiles and runs a jq program against the run context.
// A program producing exactly one output returns that value; multiple
// outputs return a slice; zero outputs return nil.
func (e *GoJQEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "jq program must not be empty")
	}

	code, err := e.getOrCompile(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"jq compile failed: %s", err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression, "engine": e.Name()})
	}

	input, err := normalizeForJQ(data)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"jq input normalization failed: %s", err.Error()).WithCause(err)
	}

	var outputs []any
	iter := code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if iterErr, isErr := v.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"jq evaluation failed: %s", iterErr.Error()).
				WithCause(iterErr).
				WithDetails(map[string]any{"expression": expression, "engine": e.Name()})
		}
		outputs = append(outputs, v)
	}

	switch len(outputs) {
	case 0:
		return nil, nil
	case 1:
		return outputs[0], nil
	default:
		return outputs, nil
	}
}

// getOrCompile returns the cached compiled program or compiles and
// caches it, double-checked under the write lock.
func (e *GoJQEngine) getOrCompile(expression string) (*gojq.Code, error) {
	e.mu.RLock()
	code, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return code, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if code, ok := e.cache[expression]; ok {
		return code, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, err
	}

	// Sandbox: deny env access from jq programs.
	code, err = gojq.Compile(query,
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, err
	}

	e.cache[expression] = code
	return code, nil
}

// normalizeForJQ round-trips the input through JSON so gojq only sees the
// types it supports (map[string]any, []any, string, float64, bool, nil).
func normalizeForJQ(data map[string]any) (any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}
