package template

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowt-dev/flowt/pkg/schema"
)

// Renderer resolves {{ ... }} references in step params against the run
// context. Expressions are dotted paths with an optional filter pipeline,
// e.g. {{ fetch.body | fromjson }}.
type Renderer struct{}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render resolves templates in value against ctx.
// Strings are scanned for {{ }} placeholders; maps and slices are rendered
// recursively with structure preserved; other scalars pass through
// unchanged. A string that is exactly one placeholder keeps the native
// type of the resolved expression.
func (r *Renderer) Render(value any, ctx map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return r.renderString(v, ctx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			rendered, err := r.Render(item, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			rendered, err := r.Render(item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return value, nil
	}
}

// RenderParams renders every field of a step's params map.
func (r *Renderer) RenderParams(params, ctx map[string]any) (map[string]any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	rendered, err := r.Render(params, ctx)
	if err != nil {
		return nil, err
	}
	return rendered.(map[string]any), nil
}

// renderString resolves placeholders in a single string. A string that is
// one placeholder (optionally surrounded by whitespace) returns the
// resolved value with its native type; anything else interpolates each
// placeholder's string form in place.
func (r *Renderer) renderString(s string, ctx map[string]any) (any, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") &&
		strings.Count(trimmed, "{{") == 1 {
		expr := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
		return r.eval(expr, ctx)
	}

	var result strings.Builder
	result.Grow(len(s))

	i := 0
	for i < len(s) {
		idx := strings.Index(s[i:], "{{")
		if idx == -1 {
			result.WriteString(s[i:])
			break
		}
		result.WriteString(s[i : i+idx])
		start := i + idx + 2

		end := strings.Index(s[start:], "}}")
		if end == -1 {
			return nil, schema.NewError(schema.ErrCodeTemplate, "unclosed {{ expression")
		}
		end += start

		expr := strings.TrimSpace(s[start:end])
		val, err := r.eval(expr, ctx)
		if err != nil {
			return nil, err
		}
		result.WriteString(stringify(val))

		i = end + 2
	}

	return result.String(), nil
}

// eval resolves one expression: a dotted path followed by zero or more
// |-separated filters.
func (r *Renderer) eval(expr string, ctx map[string]any) (any, error) {
	if expr == "" {
		return nil, schema.NewError(schema.ErrCodeTemplate, "empty expression: {{ }}")
	}

	segments := strings.Split(expr, "|")
	path := strings.TrimSpace(segments[0])

	val, err := resolvePath(path, expr, ctx)
	if err != nil {
		return nil, err
	}

	for _, raw := range segments[1:] {
		name := strings.TrimSpace(raw)
		val, err = applyFilter(name, val, expr)
		if err != nil {
			return nil, err
		}
	}

	return val, nil
}

// resolvePath navigates a dot-delimited path through the context.
// Numeric segments index into sequences.
func resolvePath(path, expr string, ctx map[string]any) (any, error) {
	if path == "" {
		return nil, schema.NewErrorf(schema.ErrCodeTemplate, "empty path in {{ %s }}", expr)
	}

	// Whole-key lookup first, so context keys containing dots resolve.
	if val, ok := ctx[path]; ok {
		return val, nil
	}

	parts := strings.Split(path, ".")
	root, ok := ctx[parts[0]]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeTemplate,
			"variable %q not found in {{ %s }}; available: [%s]",
			parts[0], expr, strings.Join(sortedKeys(ctx), ", ")).
			WithDetails(map[string]any{"expression": expr, "available": sortedKeys(ctx)})
	}

	current := root
	for _, seg := range parts[1:] {
		if seg == "" {
			return nil, schema.NewErrorf(schema.ErrCodeTemplate,
				"empty segment in path %q", expr)
		}

		switch v := current.(type) {
		case map[string]any:
			val, ok := v[seg]
			if !ok {
				return nil, schema.NewErrorf(schema.ErrCodeTemplate,
					"field %q not found in {{ %s }}; available: [%s]",
					seg, expr, strings.Join(sortedKeys(v), ", ")).
					WithDetails(map[string]any{"expression": expr, "available": sortedKeys(v)})
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeTemplate,
					"cannot index sequence with %q in {{ %s }}", seg, expr)
			}
			if idx < 0 || idx >= len(v) {
				return nil, schema.NewErrorf(schema.ErrCodeTemplate,
					"index %d out of range (len %d) in {{ %s }}", idx, len(v), expr)
			}
			current = v[idx]
		default:
			return nil, schema.NewErrorf(schema.ErrCodeTemplate,
				"cannot traverse into %T at %q in {{ %s }}", current, seg, expr)
		}
	}

	return current, nil
}

// applyFilter runs a single named filter over a resolved value.
func applyFilter(name string, val any, expr string) (any, error) {
	switch name {
	case "fromjson":
		out, err := FromJSON(val)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeTemplate,
				"fromjson failed in {{ %s }}: %s", expr, err.Error()).WithCause(err)
		}
		return out, nil
	case "tojson_utf8":
		out, err := ToJSONUTF8(val)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeTemplate,
				"tojson_utf8 failed in {{ %s }}: %s", expr, err.Error()).WithCause(err)
		}
		return out, nil
	case "":
		return nil, schema.NewErrorf(schema.ErrCodeTemplate, "empty filter in {{ %s }}", expr)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeTemplate,
			"unknown filter %q in {{ %s }}; available: fromjson, tojson_utf8", name, expr)
	}
}

// stringify converts a resolved value to its interpolated string form.
// Strings embed as-is; structured values embed as JSON.
func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		s, err := ToJSONUTF8(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return s
	}
}

// sortedKeys returns sorted keys from a map[string]any.
func sortedKeys(m map[string]any) []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		key := keys[i]
		j := i - 1
		for j >= 0 && keys[j] > key {
			keys[j+1] = keys[j]
			j--
		}
		keys[j+1] = key
	}
	return keys
}
