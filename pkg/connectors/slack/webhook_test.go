package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTrigger(t *testing.T) *WebhookTrigger {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	trigger, err := NewWebhookTrigger(map[string]any{"signing_secret": "s3cret"}, logger)
	require.NoError(t, err)

	return trigger
}

func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)

	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestNewWebhookTrigger_RequiresSecret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewWebhookTrigger(map[string]any{}, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing_secret")
}

func TestVerify(t *testing.T) {
	trigger := testTrigger(t)
	body := []byte(`{"type":"event_callback"}`)

	headers := map[string]string{
		timestampHeader: "1717320000",
		signatureHeader: sign("s3cret", "1717320000", body),
	}
	assert.True(t, trigger.Verify(body, headers))

	headers[signatureHeader] = sign("wrong", "1717320000", body)
	assert.False(t, trigger.Verify(body, headers))

	assert.False(t, trigger.Verify(body, map[string]string{}))

	// Tampered body fails even with a once-valid signature.
	headers[signatureHeader] = sign("s3cret", "1717320000", body)
	assert.False(t, trigger.Verify([]byte(`{"type":"tampered"}`), headers))
}

func TestClassify(t *testing.T) {
	trigger := testTrigger(t)

	eventType, err := trigger.Classify([]byte(`{"type":"event_callback","event":{"type":"app_mention"}}`))
	require.NoError(t, err)
	assert.Equal(t, "app_mention", eventType)

	eventType, err = trigger.Classify([]byte(`{"type":"url_verification"}`))
	require.NoError(t, err)
	assert.Equal(t, "url_verification", eventType)

	_, err = trigger.Classify([]byte(`not json`))
	require.Error(t, err)

	_, err = trigger.Classify([]byte(`{}`))
	require.Error(t, err)
}

func TestMatchesIdentifier(t *testing.T) {
	trigger := testTrigger(t)
	body := []byte(`{"type":"event_callback","team_id":"T-ACME"}`)

	assert.True(t, trigger.MatchesIdentifier(body, map[string]any{"team_id": "T-ACME"}))
	assert.False(t, trigger.MatchesIdentifier(body, map[string]any{"team_id": "T-OTHER"}))
	assert.True(t, trigger.MatchesIdentifier(body, map[string]any{}))
	assert.True(t, trigger.MatchesIdentifier(body, nil))
}
