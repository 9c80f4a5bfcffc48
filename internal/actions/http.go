package actions

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowt-dev/flowt/pkg/schema"
)

const (
	defaultHTTPTimeout  = 30 * time.Second
	maxHTTPResponseSize = 10 << 20 // 10 MiB
)

// HTTPRequestAction performs an HTTP request and exposes the response to
// later steps.
type HTTPRequestAction struct {
	client *http.Client
}

// NewHTTPRequestAction creates an HTTPRequestAction. A nil client gets a
// default with a 30s timeout.
func NewHTTPRequestAction(client *http.Client) *HTTPRequestAction {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPRequestAction{client: client}
}

// Name returns "http.request".
func (a *HTTPRequestAction) Name() string { return "http.request" }

// Execute sends the request described by params:
//
//	url     required
//	method  default GET
//	headers map of header name to value
//	body    string sent verbatim; structured values sent as JSON
//
// Output: status (int), text (response body), headers (first value per
// name). Non-2xx statuses are still SUCCESS; gate on status with a later
// judge step.
func (a *HTTPRequestAction) Execute(ctx context.Context, params map[string]any, _ map[string]any) (map[string]any, error) {
	url, err := requireStringParam(params, "url")
	if err != nil {
		return nil, err
	}
	method := strings.ToUpper(stringParam(params, "method", http.MethodGet))

	var bodyReader io.Reader
	contentType := ""
	if raw, ok := params["body"]; ok && raw != nil {
		switch b := raw.(type) {
		case string:
			bodyReader = strings.NewReader(b)
		default:
			encoded, err := jsonCompact(b)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"body is not JSON-encodable: %s", err.Error()).WithCause(err)
			}
			bodyReader = strings.NewReader(encoded)
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"invalid request: %s", err.Error()).WithCause(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if headers, ok := params["headers"].(map[string]any); ok {
		for name, value := range headers {
			req.Header.Set(name, toString(value))
		}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeActionFailed,
			"%s %s: %s", method, url, err.Error()).WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseSize))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeActionFailed,
			"read response from %s: %s", url, err.Error()).WithCause(err)
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for name := range resp.Header {
		respHeaders[name] = resp.Header.Get(name)
	}

	return map[string]any{
		"status":  resp.StatusCode,
		"text":    string(body),
		"headers": respHeaders,
	}, nil
}
