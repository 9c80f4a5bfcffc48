package actions

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/flowt-dev/flowt/pkg/schema"
)

// Judge actions answer yes/no questions about step outputs. Their
// "result" field pairs with `when` conditions: a later step gates on
// `equals: "yes"`.

// regexPresets are the named patterns accepted by judge_regex.
var regexPresets = map[string]string{
	"email":   `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`,
	"url":     `^https?://[a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;=]+$`,
	"phone":   `^(\+81|0)\d{1,4}[-\s]?\d{1,4}[-\s]?\d{3,4}$`,
	"zipcode": `^\d{3}[-\s]?\d{4}$`,
	"number":  `^-?\d+(\.\d+)?$`,
}

func presetNames() string {
	names := make([]string, 0, len(regexPresets))
	for name := range regexPresets {
		names = append(names, name)
	}
	for i := 1; i < len(names); i++ {
		key := names[i]
		j := i - 1
		for j >= 0 && names[j] > key {
			names[j+1] = names[j]
			j--
		}
		names[j+1] = key
	}
	return strings.Join(names, ", ")
}

func judgeOutput(matched bool, reason string) map[string]any {
	result := "no"
	if matched {
		result = "yes"
	}
	return map[string]any{
		"result":   result,
		"reason":   reason,
		"provider": "nonai",
	}
}

// JudgeEqualsAction compares target against value for exact equality.
type JudgeEqualsAction struct{}

// Name returns "judge_equals".
func (a *JudgeEqualsAction) Name() string { return "judge_equals" }

// Execute compares params["target"] with params["value"]. ignore_case
// defaults to true.
func (a *JudgeEqualsAction) Execute(_ context.Context, params map[string]any, _ map[string]any) (map[string]any, error) {
	if _, ok := params["target"]; !ok {
		return nil, schema.NewError(schema.ErrCodeValidation, `param "target" is required`)
	}
	if _, ok := params["value"]; !ok {
		return nil, schema.NewError(schema.ErrCodeValidation, `param "value" is required`)
	}

	target := toString(params["target"])
	value := toString(params["value"])

	var matched bool
	if boolParam(params, "ignore_case", true) {
		matched = strings.EqualFold(target, value)
	} else {
		matched = target == value
	}

	if matched {
		return judgeOutput(true, fmt.Sprintf("%q equals %q", target, value)), nil
	}
	return judgeOutput(false, fmt.Sprintf("%q does not equal %q", target, value)), nil
}

// JudgeContainsAction checks whether target contains text.
type JudgeContainsAction struct{}

// Name returns "judge_contains".
func (a *JudgeContainsAction) Name() string { return "judge_contains" }

func (a *JudgeContainsAction) Execute(_ context.Context, params map[string]any, _ map[string]any) (map[string]any, error) {
	if _, ok := params["target"]; !ok {
		return nil, schema.NewError(schema.ErrCodeValidation, `param "target" is required`)
	}
	if _, ok := params["text"]; !ok {
		return nil, schema.NewError(schema.ErrCodeValidation, `param "text" is required`)
	}

	target := toString(params["target"])
	text := toString(params["text"])

	var matched bool
	if boolParam(params, "ignore_case", true) {
		matched = strings.Contains(strings.ToLower(target), strings.ToLower(text))
	} else {
		matched = strings.Contains(target, text)
	}

	if matched {
		return judgeOutput(true, fmt.Sprintf("%q contains %q", target, text)), nil
	}
	return judgeOutput(false, fmt.Sprintf("%q does not contain %q", target, text)), nil
}

// JudgeRegexAction matches target against a preset or custom regular
// expression.
type JudgeRegexAction struct{}

// Name returns "judge_regex".
func (a *JudgeRegexAction) Name() string { return "judge_regex" }

func (a *JudgeRegexAction) Execute(_ context.Context, params map[string]any, _ map[string]any) (map[string]any, error) {
	if _, ok := params["target"]; !ok {
		return nil, schema.NewError(schema.ErrCodeValidation, `param "target" is required`)
	}

	preset := stringParam(params, "preset", "")
	pattern := stringParam(params, "pattern", "")

	if preset == "" && pattern == "" {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			`either "preset" or "pattern" is required; presets: %s`, presetNames())
	}

	label := "custom pattern"
	if preset != "" {
		p, ok := regexPresets[preset]
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"unknown preset %q; presets: %s", preset, presetNames())
		}
		pattern = p
		label = "preset " + preset
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"invalid pattern %q: %s", pattern, err.Error()).WithCause(err)
	}

	target := toString(params["target"])
	matchedText := re.FindString(target)

	out := judgeOutput(matchedText != "", "")
	if matchedText != "" {
		out["reason"] = fmt.Sprintf("%q matches %s: %q", target, label, matchedText)
	} else {
		out["reason"] = fmt.Sprintf("%q does not match %s", target, label)
	}
	out["matched"] = matchedText
	return out, nil
}

// JudgeNumericAction compares a numeric target against min/max bounds or
// an exact value.
type JudgeNumericAction struct{}

// Name returns "judge_numeric".
func (a *JudgeNumericAction) Name() string { return "judge_numeric" }

func (a *JudgeNumericAction) Execute(_ context.Context, params map[string]any, _ map[string]any) (map[string]any, error) {
	if _, ok := params["target"]; !ok {
		return nil, schema.NewError(schema.ErrCodeValidation, `param "target" is required`)
	}

	target, err := toNumber(params["target"], "target")
	if err != nil {
		return nil, err
	}

	minVal, hasMin, err := numberParam(params, "min")
	if err != nil {
		return nil, err
	}
	maxVal, hasMax, err := numberParam(params, "max")
	if err != nil {
		return nil, err
	}
	equalVal, hasEqual, err := numberParam(params, "equal")
	if err != nil {
		return nil, err
	}

	if !hasMin && !hasMax && !hasEqual {
		return nil, schema.NewError(schema.ErrCodeValidation,
			`at least one of "min", "max", "equal" is required`)
	}
	if hasMin && hasMax && minVal > maxVal {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"min (%v) must not exceed max (%v)", minVal, maxVal)
	}

	matched := true
	var reasons []string

	if hasEqual {
		if target == equalVal {
			reasons = append(reasons, fmt.Sprintf("equals %v", equalVal))
		} else {
			matched = false
			reasons = append(reasons, fmt.Sprintf("does not equal %v", equalVal))
		}
	}
	if hasMin {
		if target >= minVal {
			reasons = append(reasons, fmt.Sprintf(">= %v", minVal))
		} else {
			matched = false
			reasons = append(reasons, fmt.Sprintf("< %v", minVal))
		}
	}
	if hasMax {
		if target <= maxVal {
			reasons = append(reasons, fmt.Sprintf("<= %v", maxVal))
		} else {
			matched = false
			reasons = append(reasons, fmt.Sprintf("> %v", maxVal))
		}
	}

	return judgeOutput(matched, fmt.Sprintf("%v is %s", target, strings.Join(reasons, ", "))), nil
}
