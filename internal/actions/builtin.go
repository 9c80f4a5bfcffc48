package actions

import (
	"log/slog"

	"github.com/flowt-dev/flowt/internal/expressions"
)

// RegisterBuiltins registers the builtin action set on r and returns the
// subworkflow action so the caller can bind its runner.
func RegisterBuiltins(r *Registry, logger *slog.Logger) (*SubWorkflowAction, error) {
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}

	sub := NewSubWorkflowAction()

	builtins := []Action{
		NewLogAction(logger),
		&FileReadAction{},
		&FileWriteAction{},
		&FileAppendAction{},
		NewHTTPRequestAction(nil),
		&JudgeEqualsAction{},
		&JudgeContainsAction{},
		&JudgeRegexAction{},
		&JudgeNumericAction{},
		NewExprAction(expressions.NewExprEngine()),
		NewJQAction(expressions.NewGoJQEngine()),
		NewAssertAction(celEngine),
		sub,
	}

	for _, action := range builtins {
		if err := r.Register(action); err != nil {
			return nil, err
		}
	}

	return sub, nil
}
