package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"movetrack/internal/platform/config"
	"movetrack/pkg/email"
)

// NotifyClient sends templated emails through the GOV.UK Notify API.
// Requests carry a short-lived HS256 bearer token issued by the service id.
type NotifyClient struct {
	baseURL    string
	serviceID  string
	secretKey  []byte
	templateID string
	client     *http.Client
	now        func() time.Time
}

func NewNotifyClient(cfg config.Notify, client *http.Client) *NotifyClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &NotifyClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceID:  cfg.ServiceID,
		secretKey:  []byte(cfg.SecretKey),
		templateID: cfg.TemplateID,
		client:     client,
		now:        time.Now,
	}
}

type notifyRequest struct {
	EmailAddress    string            `json:"email_address"`
	TemplateID      string            `json:"template_id"`
	Reference       string            `json:"reference"`
	Personalisation map[string]string `json:"personalisation"`
}

func (c *NotifyClient) Send(ctx context.Context, msg Message) error {
	addr, err := email.Normalize(msg.Subscription.EmailAddress)
	if err != nil {
		return fmt.Errorf("subscription %s: %w", msg.Subscription.ID, err)
	}
	token, err := c.token()
	if err != nil {
		return err
	}

	body, err := json.Marshal(notifyRequest{
		EmailAddress: addr,
		TemplateID:   c.templateID,
		Reference:    msg.Notification.ID.String(),
		Personalisation: map[string]string{
			"name":       email.GreetingName(addr),
			"event_type": msg.Payload.EventType,
			"topic_type": msg.Payload.Data.Type,
			"topic_id":   msg.Payload.Data.ID,
			"timestamp":  msg.Payload.Timestamp.Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("marshal notify request: %w", err)
	}

	url := c.baseURL + "/v2/notifications/email"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notify: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *NotifyClient) token() (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:   c.serviceID,
		IssuedAt: jwt.NewNumericDate(c.now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign notify token: %w", err)
	}
	return signed, nil
}
