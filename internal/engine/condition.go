package engine

import (
	"reflect"
	"strings"

	"github.com/flowt-dev/flowt/pkg/schema"
)

// evaluateWhen decides whether a gated step runs. It never errors: a
// condition referencing a missing step or field yields a skip with a
// diagnostic reason, so optional branches do not abort the run.
func evaluateWhen(cond *schema.Condition, runCtx map[string]any) (bool, string) {
	if cond == nil {
		return true, ""
	}

	prior, ok := runCtx[cond.Step]
	if !ok || prior == nil {
		return false, "condition_step_missing:" + cond.Step
	}

	output, ok := prior.(map[string]any)
	if !ok {
		return false, "condition_step_missing:" + cond.Step
	}

	actual, ok := output[cond.FieldName()]
	if !ok || actual == nil {
		return false, "condition_field_missing:" + cond.FieldName()
	}

	if conditionMatches(cond, actual) {
		return true, ""
	}
	return false, "condition_not_met"
}

func conditionMatches(cond *schema.Condition, actual any) bool {
	expected := cond.Equals

	actualStr, actualIsStr := actual.(string)
	expectedStr, expectedIsStr := expected.(string)
	if actualIsStr && expectedIsStr {
		left := normalizeConditionString(actualStr, cond)
		right := normalizeConditionString(expectedStr, cond)
		if cond.MatchMode() == schema.MatchContains {
			return strings.Contains(left, right)
		}
		return left == right
	}

	if an, ok := asFloat(actual); ok {
		if en, ok := asFloat(expected); ok {
			return an == en
		}
	}

	return reflect.DeepEqual(actual, expected)
}

func normalizeConditionString(s string, cond *schema.Condition) string {
	if cond.TrimEnabled() {
		s = strings.TrimSpace(s)
	}
	if cond.CaseInsensitiveEnabled() {
		s = strings.ToLower(s)
	}
	return s
}

// asFloat widens the numeric types YAML and JSON decoding produce.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// conditionSummary renders the condition for skip-record diagnostics.
func conditionSummary(cond *schema.Condition) map[string]any {
	return map[string]any{
		"step":             cond.Step,
		"field":            cond.FieldName(),
		"equals":           cond.Equals,
		"match":            cond.MatchMode(),
		"trim":             cond.TrimEnabled(),
		"case_insensitive": cond.CaseInsensitiveEnabled(),
	}
}
