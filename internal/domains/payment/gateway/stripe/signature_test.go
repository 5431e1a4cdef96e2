package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testWebhookSecret = "whsec_test_secret"

func signPayload(t *testing.T, secret string, ts int64, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	payload := []byte(`{"id":"evt_123","type":"payment_intent.succeeded"}`)

	t.Run("valid signature", func(t *testing.T) {
		ts := now.Unix()
		sig := signPayload(t, testWebhookSecret, ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		assert.True(t, verifySignature(payload, header, testWebhookSecret, now))
	})

	t.Run("multiple v1 signatures, one valid", func(t *testing.T) {
		ts := now.Unix()
		sig := signPayload(t, testWebhookSecret, ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, "deadbeef", sig)

		assert.True(t, verifySignature(payload, header, testWebhookSecret, now))
	})

	t.Run("wrong secret", func(t *testing.T) {
		ts := now.Unix()
		sig := signPayload(t, "whsec_other", ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		assert.False(t, verifySignature(payload, header, testWebhookSecret, now))
	})

	t.Run("tampered payload", func(t *testing.T) {
		ts := now.Unix()
		sig := signPayload(t, testWebhookSecret, ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		assert.False(t, verifySignature([]byte(`{"id":"evt_999"}`), header, testWebhookSecret, now))
	})

	t.Run("timestamp outside tolerance", func(t *testing.T) {
		ts := now.Add(-6 * time.Minute).Unix()
		sig := signPayload(t, testWebhookSecret, ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		assert.False(t, verifySignature(payload, header, testWebhookSecret, now))
	})

	t.Run("timestamp exactly at tolerance", func(t *testing.T) {
		ts := now.Add(-signatureTolerance).Unix()
		sig := signPayload(t, testWebhookSecret, ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		assert.True(t, verifySignature(payload, header, testWebhookSecret, now))
	})

	t.Run("future timestamp outside tolerance", func(t *testing.T) {
		ts := now.Add(10 * time.Minute).Unix()
		sig := signPayload(t, testWebhookSecret, ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		assert.False(t, verifySignature(payload, header, testWebhookSecret, now))
	})

	t.Run("missing secret", func(t *testing.T) {
		ts := now.Unix()
		sig := signPayload(t, testWebhookSecret, ts, payload)
		header := fmt.Sprintf("t=%d,v1=%s", ts, sig)

		assert.False(t, verifySignature(payload, header, "", now))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.False(t, verifySignature(payload, "", testWebhookSecret, now))
	})

	t.Run("malformed header", func(t *testing.T) {
		assert.False(t, verifySignature(payload, "t=abc,v1=def", testWebhookSecret, now))
		assert.False(t, verifySignature(payload, "v1=deadbeef", testWebhookSecret, now))
		assert.False(t, verifySignature(payload, fmt.Sprintf("t=%d", now.Unix()), testWebhookSecret, now))
	})
}

func TestWebhookConfigured(t *testing.T) {
	withSecret := NewClient(Config{WebhookSecret: testWebhookSecret}, testLogger())
	assert.True(t, withSecret.WebhookConfigured())

	withoutSecret := NewClient(Config{}, testLogger())
	assert.False(t, withoutSecret.WebhookConfigured())
}
