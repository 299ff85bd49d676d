// Package slack receives Slack Events API callbacks: signature verification
// over the v0 signing scheme, event classification, and workspace matching.
package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

const (
	signatureHeader = "X-Slack-Signature"
	timestampHeader = "X-Slack-Request-Timestamp"
)

// WebhookTrigger authenticates Slack callbacks for one workspace
// integration.
type WebhookTrigger struct {
	signingSecret string
	logger        *slog.Logger
}

// NewWebhookTrigger parses the trigger configuration.
func NewWebhookTrigger(config map[string]any, logger *slog.Logger) (*WebhookTrigger, error) {
	secret, ok := config["signing_secret"].(string)
	if !ok || secret == "" {
		return nil, errors.New("missing required field 'signing_secret'")
	}

	return &WebhookTrigger{signingSecret: secret, logger: logger}, nil
}

// Verify checks the v0 signature: HMAC-SHA256 over "v0:<timestamp>:<body>"
// with the signing secret, compared in constant time.
func (t *WebhookTrigger) Verify(body []byte, headers map[string]string) bool {
	signature := headers[signatureHeader]
	timestamp := headers[timestampHeader]

	if signature == "" || timestamp == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(t.signingSecret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// Classify extracts the event type. Event callbacks classify by the inner
// event type, everything else by the envelope type.
func (t *WebhookTrigger) Classify(body []byte) (string, error) {
	var envelope struct {
		Type  string `json:"type"`
		Event struct {
			Type string `json:"type"`
		} `json:"event"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("failed to decode slack payload: %w", err)
	}

	if envelope.Type == "" {
		return "", errors.New("slack payload has no type")
	}

	if envelope.Type == "event_callback" && envelope.Event.Type != "" {
		return envelope.Event.Type, nil
	}

	return envelope.Type, nil
}

// MatchesIdentifier checks the payload's team against the connection's
// workspace. A connection without a team id accepts any workspace.
func (t *WebhookTrigger) MatchesIdentifier(body []byte, connectionMetadata map[string]any) bool {
	wantTeam, _ := connectionMetadata["team_id"].(string)
	if wantTeam == "" {
		return true
	}

	var envelope struct {
		TeamID string `json:"team_id"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}

	return envelope.TeamID == wantTeam
}
