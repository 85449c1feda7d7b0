package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
)

const (
	SignatureHeader      = "PECS-SIGNATURE"
	NotificationIDHeader = "PECS-NOTIFICATION-ID"
)

// StatusError is returned when the receiver answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s responded %d", e.URL, e.StatusCode)
}

// WebhookSender posts payloads to subscription callback URLs.
type WebhookSender struct {
	client *http.Client
}

func NewWebhookSender(client *http.Client) *WebhookSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookSender{client: client}
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	sub := msg.Subscription
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.CallbackURL, bytes.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "movetrack-webhooks")
	req.Header.Set(NotificationIDHeader, msg.Notification.ID.String())
	if sub.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(sub.Secret, msg.Body))
		if sub.Username != "" {
			req.SetBasicAuth(sub.Username, sub.Secret)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: sub.CallbackURL, StatusCode: resp.StatusCode}
	}
	return nil
}

// Sign returns the base64 HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret.
func Verify(secret string, body []byte, signature string) bool {
	want, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(want, mac.Sum(nil))
}
