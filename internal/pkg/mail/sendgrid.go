package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/StudyFox/internal/pkg/config"
	"github.com/gofiber/fiber/v2/log"
)

// SendGridClient posts to the v3 mail send API.
type SendGridClient struct {
	APIKey   string
	BaseURL  string
	From     string
	FromName string

	HTTPClient *http.Client
}

func NewSendGridClient(cfg config.Mail) *SendGridClient {
	return &SendGridClient{
		APIKey:   cfg.SendGridAPIKey,
		BaseURL:  strings.TrimRight(cfg.SendGridBaseURL, "/"),
		From:     cfg.From,
		FromName: cfg.FromName,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgToggle struct {
	Enable bool `json:"enable"`
}

type sgClickTracking struct {
	Enable     bool `json:"enable"`
	EnableText bool `json:"enable_text"`
}

type sgRequest struct {
	Personalizations []struct {
		To []sgAddress `json:"to"`
	} `json:"personalizations"`
	From             sgAddress   `json:"from"`
	Subject          string      `json:"subject"`
	Content          []sgContent `json:"content"`
	TrackingSettings struct {
		ClickTracking sgClickTracking `json:"click_tracking"`
		OpenTracking  sgToggle        `json:"open_tracking"`
	} `json:"tracking_settings"`
}

// Send delivers msg. Tracking is disabled so claim links are not rewritten.
func (c *SendGridClient) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	var body sgRequest
	body.Personalizations = append(body.Personalizations, struct {
		To []sgAddress `json:"to"`
	}{To: []sgAddress{{Email: strings.TrimSpace(msg.To)}}})
	body.From = sgAddress{Email: c.From, Name: c.FromName}
	body.Subject = msg.Subject
	body.Content = []sgContent{{Type: "text/html", Value: msg.HTML}}
	body.TrackingSettings.ClickTracking = sgClickTracking{Enable: false, EnableText: false}
	body.TrackingSettings.OpenTracking = sgToggle{Enable: false}

	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v3/mail/send", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &SendError{Provider: "sendgrid", Status: resp.StatusCode, Body: string(respBody)}
	}
	log.Infof("[Mail] sent %q via sendgrid", msg.Subject)
	return nil
}
