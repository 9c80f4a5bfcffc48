package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowt-dev/flowt/pkg/schema"
)

func boolPtr(b bool) *bool { return &b }

func TestEvaluateWhen(t *testing.T) {
	runCtx := map[string]any{
		"check": map[string]any{
			"text":   "  YES  ",
			"result": "yes",
			"count":  3,
		},
	}

	tests := []struct {
		name       string
		cond       *schema.Condition
		wantRun    bool
		wantReason string
	}{
		{
			name:    "nil condition runs",
			cond:    nil,
			wantRun: true,
		},
		{
			name:    "default field with trim and case fold",
			cond:    &schema.Condition{Step: "check", Equals: "yes"},
			wantRun: true,
		},
		{
			name:       "trim disabled",
			cond:       &schema.Condition{Step: "check", Equals: "yes", Trim: boolPtr(false)},
			wantRun:    false,
			wantReason: "condition_not_met",
		},
		{
			name:       "case sensitivity enabled",
			cond:       &schema.Condition{Step: "check", Equals: "yes", CaseInsensitive: boolPtr(false)},
			wantRun:    false,
			wantReason: "condition_not_met",
		},
		{
			name:    "explicit field",
			cond:    &schema.Condition{Step: "check", Field: "result", Equals: "YES"},
			wantRun: true,
		},
		{
			name:    "contains match",
			cond:    &schema.Condition{Step: "check", Equals: "es", Match: schema.MatchContains},
			wantRun: true,
		},
		{
			name:       "contains mismatch",
			cond:       &schema.Condition{Step: "check", Equals: "nope", Match: schema.MatchContains},
			wantRun:    false,
			wantReason: "condition_not_met",
		},
		{
			name:    "numeric equality across int and float",
			cond:    &schema.Condition{Step: "check", Field: "count", Equals: 3.0},
			wantRun: true,
		},
		{
			name:       "missing step",
			cond:       &schema.Condition{Step: "ghost", Equals: "yes"},
			wantRun:    false,
			wantReason: "condition_step_missing:ghost",
		},
		{
			name:       "missing field",
			cond:       &schema.Condition{Step: "check", Field: "absent", Equals: "yes"},
			wantRun:    false,
			wantReason: "condition_field_missing:absent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, reason := evaluateWhen(tt.cond, runCtx)
			assert.Equal(t, tt.wantRun, run)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}
