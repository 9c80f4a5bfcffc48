package actions

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/flowt-dev/flowt/pkg/schema"
)

func jsonCompact(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// stringParam returns params[key] coerced to a string, or def when
// absent or nil.
func stringParam(params map[string]any, key, def string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return toString(v)
}

// requireStringParam returns params[key] as a non-empty string.
func requireStringParam(params map[string]any, key string) (string, error) {
	s := stringParam(params, key, "")
	if s == "" {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "param %q is required", key)
	}
	return s, nil
}

// boolParam returns params[key] coerced to a bool, or def when absent.
// Strings "true"/"false" (any case) coerce.
func boolParam(params map[string]any, key string, def bool) bool {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.ToLower(b)); err == nil {
			return parsed
		}
	}
	return def
}

// intParam returns params[key] coerced to an int, or def when absent or
// not numeric.
func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return def
}

// numberParam returns params[key] coerced to a float64. Strings are
// trimmed and parsed.
func numberParam(params map[string]any, key string) (float64, bool, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	n, err := toNumber(v, key)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// toString renders a param value for comparison and messages.
func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		out, err := jsonCompact(v)
		if err != nil {
			return ""
		}
		return out
	}
}

// toNumber coerces a param value to float64, erroring with the param
// name when it cannot.
func toNumber(v any, key string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, schema.NewErrorf(schema.ErrCodeValidation,
				"param %q: %q is not a number", key, n)
		}
		return parsed, nil
	default:
		return 0, schema.NewErrorf(schema.ErrCodeValidation,
			"param %q: %T is not a number", key, v)
	}
}
