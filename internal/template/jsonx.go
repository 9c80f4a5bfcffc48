package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeBlockRe = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")

// FromJSON decodes a JSON-string value into a native structure. It is
// deliberately lenient about the surrounding text so model- or
// human-produced output can be fed back into typed params:
//   - a fenced ``` block takes priority over the surrounding text
//   - if the whole string does not parse, the first balanced {} or []
//     block is extracted and parsed instead
//
// Non-string values pass through unchanged.
func FromJSON(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}

	cleaned := stripCodeBlock(s)
	if cleaned == "" {
		return nil, nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		return parsed, nil
	}

	extracted := extractBalanced(cleaned)
	if extracted != "" {
		if err := json.Unmarshal([]byte(extracted), &parsed); err == nil {
			return parsed, nil
		}
	}

	return nil, fmt.Errorf("not parseable as JSON: %.80q", cleaned)
}

// ToJSONUTF8 encodes a value as a compact JSON string without escaping
// multibyte runes or HTML characters, for embedding structured data into
// narrow text fields.
func ToJSONUTF8(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	// Encoder terminates with a newline.
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// stripCodeBlock returns the inside of the first ``` fence if present,
// otherwise the trimmed input.
func stripCodeBlock(s string) string {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return ""
	}
	if m := codeBlockRe.FindStringSubmatch(cleaned); m != nil {
		return strings.TrimSpace(m[1])
	}
	return cleaned
}

// extractBalanced finds the first balanced JSON-looking {} or [] block,
// ignoring brackets inside string literals. Returns "" when none closes.
func extractBalanced(s string) string {
	start := -1
	for i, ch := range s {
		if ch == '{' || ch == '[' {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}

	var stack []byte
	inString := false
	escape := false

	for i := start; i < len(s); i++ {
		ch := s[i]

		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if len(stack) == 0 {
				return ""
			}
			open := stack[len(stack)-1]
			if (ch == '}' && open != '{') || (ch == ']' && open != '[') {
				return ""
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1]
			}
		}
	}

	return ""
}
