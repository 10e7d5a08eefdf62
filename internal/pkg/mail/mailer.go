package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/StudyFox/internal/pkg/config"
)

// Message is a single transactional HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendError is a delivery failure reported by the email provider.
type SendError struct {
	Provider string
	Status   int
	Body     string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send failed: status=%d body=%s", e.Provider, e.Status, e.Body)
}

// New picks the configured driver.
func New(cfg config.Mail) (Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sendgrid":
		if strings.TrimSpace(cfg.SendGridAPIKey) == "" {
			return nil, fmt.Errorf("%w: SENDGRID_API_KEY", config.ErrMissingCredentials)
		}
		return NewSendGridClient(cfg), nil
	case "smtp":
		if strings.TrimSpace(cfg.SMTPHost) == "" {
			return nil, fmt.Errorf("%w: SMTP_HOST", config.ErrMissingCredentials)
		}
		return NewSMTPMailer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown MAIL_DRIVER %q", cfg.Driver)
	}
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return errors.New("subject is required")
	}
	return nil
}
