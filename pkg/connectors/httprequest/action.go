// Package httprequest calls external HTTP APIs from workflow nodes, with
// templated URL, headers and body, per-call timeout and retry on server
// errors.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tideflow-io/tideflow/pkg/protocol"
	"github.com/tideflow-io/tideflow/pkg/template"
)

// Config is the parsed node configuration.
type Config struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
	Timeout int               `json:"timeout"`
	Retries RetryConfig       `json:"retries"`
}

// RetryConfig defines retry behavior for failed requests.
type RetryConfig struct {
	Attempts int `json:"attempts"`
	Delay    int `json:"delay"`
}

// Action performs one HTTP request per run.
type Action struct {
	config Config
}

// NewAction parses the node configuration and returns a ready action.
func NewAction(config map[string]any) (*Action, error) {
	cfg := Config{
		Method:  "GET",
		Headers: make(map[string]string),
		Timeout: 30,
		Retries: RetryConfig{Attempts: 1, Delay: 0},
	}

	if url, ok := config["url"].(string); ok {
		cfg.URL = url
	} else {
		return nil, errors.New("missing required field 'url'")
	}

	if method, ok := config["method"].(string); ok {
		cfg.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if strVal, ok := v.(string); ok {
				cfg.Headers[k] = strVal
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		cfg.Body = body
	}

	if timeout, ok := config["timeout"].(float64); ok {
		cfg.Timeout = int(timeout)
	}

	if retries, ok := config["retries"].(map[string]any); ok {
		if attempts, ok := retries["attempts"].(float64); ok {
			cfg.Retries.Attempts = int(attempts)
		}

		if delay, ok := retries["delay"].(float64); ok {
			cfg.Retries.Delay = int(delay)
		}
	}

	return &Action{config: cfg}, nil
}

// HTTPError carries the status code of a non-2xx response. Client errors
// (4xx) are not retried.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Run renders the request templates against the invocation context and
// performs the request, retrying on network and server errors.
func (a *Action) Run(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
	urlStr, body, headers, err := a.render(&cctx)
	if err != nil {
		return nil, err
	}

	var lastErr error

	for attempt := 1; attempt <= a.config.Retries.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(a.config.Retries.Delay) * time.Millisecond):
			}
		}

		output, err := a.performRequest(ctx, cctx.HTTPClient, urlStr, body, headers)
		if err == nil {
			return &protocol.RunResult{Output: output}, nil
		}

		lastErr = err

		// Client errors will not succeed on retry.
		httpErr := &HTTPError{}
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
			break
		}
	}

	return nil, fmt.Errorf("http request failed after %d attempts: %w", a.config.Retries.Attempts, lastErr)
}

// MockRun returns a canned 200 response without performing any request.
func (a *Action) MockRun(ctx context.Context, cctx protocol.ConnectorContext) (*protocol.RunResult, error) {
	urlStr, _, _, err := a.render(&cctx)
	if err != nil {
		return nil, err
	}

	return &protocol.RunResult{Output: map[string]any{
		"status_code": 200,
		"headers":     map[string]any{},
		"body":        "{}",
		"json":        map[string]any{},
		"mock":        true,
		"url":         urlStr,
	}}, nil
}

func (a *Action) render(cctx *protocol.ConnectorContext) (string, string, map[string]string, error) {
	renderedURL, err := template.RenderWithContext(a.config.URL, cctx)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to render url template: %w", err)
	}

	urlStr, ok := renderedURL.(string)
	if !ok {
		return "", "", nil, errors.New("url template must render to a string")
	}

	var body string

	if a.config.Body != "" {
		renderedBody, err := template.RenderWithContext(a.config.Body, cctx)
		if err != nil {
			return "", "", nil, fmt.Errorf("failed to render body template: %w", err)
		}

		switch v := renderedBody.(type) {
		case string:
			body = v
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return "", "", nil, fmt.Errorf("failed to encode rendered body: %w", err)
			}

			body = string(raw)
		}
	}

	headers := make(map[string]string, len(a.config.Headers))

	for key, value := range a.config.Headers {
		rendered, err := template.RenderWithContext(value, cctx)
		if err != nil {
			return "", "", nil, fmt.Errorf("failed to render header %q: %w", key, err)
		}

		if strVal, ok := rendered.(string); ok {
			headers[key] = strVal
		} else {
			headers[key] = fmt.Sprintf("%v", rendered)
		}
	}

	return urlStr, body, headers, nil
}

func (a *Action) performRequest(ctx context.Context, client *http.Client, url, body string, headers map[string]string) (map[string]any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(a.config.Timeout)*time.Second)
	defer cancel()

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, a.config.Method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		respHeaders[key] = resp.Header.Get(key)
	}

	output := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		output["json"] = jsonBody
	}

	return output, nil
}
