package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowt-dev/flowt/internal/expressions"
)

func TestExprAction_Execute(t *testing.T) {
	a := NewExprAction(expressions.NewExprEngine())

	out, err := a.Execute(context.Background(), map[string]any{
		"expression": "fetch.status == 200",
	}, map[string]any{
		"fetch": map[string]any{"status": 200},
	})
	require.NoError(t, err)
	assert.Equal(t, true, out["value"])
	assert.Equal(t, "true", out["text"])
}

func TestExprAction_Execute_MissingExpression(t *testing.T) {
	a := NewExprAction(expressions.NewExprEngine())

	_, err := a.Execute(context.Background(), map[string]any{}, nil)
	require.Error(t, err)
}

func TestJQAction_Execute(t *testing.T) {
	a := NewJQAction(expressions.NewGoJQEngine())

	out, err := a.Execute(context.Background(), map[string]any{
		"query": ".fetch.items | length",
	}, map[string]any{
		"fetch": map[string]any{"items": []any{"a", "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out["value"])
	assert.Equal(t, "2", out["text"])
}

func TestAssertAction_Execute_Pass(t *testing.T) {
	engine, err := expressions.NewCELEngine()
	require.NoError(t, err)
	a := NewAssertAction(engine)

	out, err := a.Execute(context.Background(), map[string]any{
		"condition": `ctx.judge.result == "yes"`,
	}, map[string]any{
		"judge": map[string]any{"result": "yes"},
	})
	require.NoError(t, err)
	assert.Equal(t, true, out["passed"])
}

func TestAssertAction_Execute_Fail(t *testing.T) {
	engine, err := expressions.NewCELEngine()
	require.NoError(t, err)
	a := NewAssertAction(engine)

	_, err = a.Execute(context.Background(), map[string]any{
		"condition": "ctx.count > 10",
		"message":   "count too low",
	}, map[string]any{
		"count": 3,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count too low")
}

func TestAssertAction_Execute_NonBoolean(t *testing.T) {
	engine, err := expressions.NewCELEngine()
	require.NoError(t, err)
	a := NewAssertAction(engine)

	_, err = a.Execute(context.Background(), map[string]any{
		"condition": "ctx.count + 1",
	}, map[string]any{
		"count": 3,
	})
	require.Error(t, err)
}
