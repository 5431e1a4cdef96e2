package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// signatureTolerance bounds the accepted age of a webhook timestamp.
const signatureTolerance = 300 * time.Second

// WebhookConfigured reports whether webhook verification can run at all.
func (c *Client) WebhookConfigured() bool {
	return c.config.WebhookSecret != ""
}

// VerifyWebhookSignature validates the stripe-signature header against the
// raw request body. The header carries a unix timestamp and one or more v1
// HMAC-SHA256 signatures over "{timestamp}.{body}". A missing webhook secret
// fails verification.
func (c *Client) VerifyWebhookSignature(payload []byte, sigHeader string) bool {
	return verifySignature(payload, sigHeader, c.config.WebhookSecret, time.Now())
}

func verifySignature(payload []byte, sigHeader, secret string, now time.Time) bool {
	if secret == "" || sigHeader == "" {
		return false
	}

	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			ts, err := strconv.ParseInt(pair[1], 10, 64)
			if err != nil {
				return false
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, pair[1])
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return false
	}

	age := now.Unix() - timestamp
	if age < 0 {
		age = -age
	}
	if age > int64(signatureTolerance.Seconds()) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return true
		}
	}
	return false
}
