// Package feedpoll polls a JSON feed endpoint for new events. The feed
// returns either a bare array or an object with an "items" array; each item
// carries a millisecond timestamp field used for watermarking.
package feedpoll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tideflow-io/tideflow/pkg/protocol"
)

const defaultTimestampField = "timestamp"

// PollTrigger fetches candidate events from a feed URL.
type PollTrigger struct {
	url            string
	timestampField string
	headers        map[string]string
	logger         *slog.Logger
}

// NewPollTrigger parses the trigger configuration.
func NewPollTrigger(config map[string]any, logger *slog.Logger) (*PollTrigger, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	trigger := &PollTrigger{
		url:            url,
		timestampField: defaultTimestampField,
		headers:        make(map[string]string),
		logger:         logger,
	}

	if field, ok := config["timestamp_field"].(string); ok && field != "" {
		trigger.timestampField = field
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if strVal, ok := v.(string); ok {
				trigger.headers[k] = strVal
			}
		}
	}

	return trigger, nil
}

// Poll fetches the feed and returns every event it currently exposes. The
// watermark tracker decides which of them are fresh.
func (t *PollTrigger) Poll(ctx context.Context, cctx protocol.ConnectorContext) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}

	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	client := cctx.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	return decodeFeed(body)
}

// ExtractTimestamp reads the configured millisecond field. Events without it
// cannot be watermarked and return nil.
func (t *PollTrigger) ExtractTimestamp(event map[string]any) *int64 {
	switch v := event[t.timestampField].(type) {
	case int64:
		return &v
	case float64:
		millis := int64(v)

		return &millis
	case json.Number:
		millis, err := v.Int64()
		if err != nil {
			return nil
		}

		return &millis
	default:
		return nil
	}
}

func decodeFeed(body []byte) ([]map[string]any, error) {
	var items []map[string]any

	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Items []map[string]any `json:"items"`
	}

	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}

	return wrapped.Items, nil
}
