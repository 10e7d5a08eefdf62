package mail

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"github.com/ManuelReschke/StudyFox/internal/pkg/config"
)

// SMTPMailer sends emails via SMTP. Used for local development with a mail
// catcher; production uses SendGrid.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	sender   string
}

func NewSMTPMailer(cfg config.Mail) *SMTPMailer {
	sender := cfg.From
	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("MAIL_FROM not set, using default sender: %s", sender)
	}
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		sender:   sender,
	}
}

// Send ignores ctx; net/smtp has no cancellation.
func (m *SMTPMailer) Send(_ context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.username != "" && m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	body := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.sender, msg.To, msg.Subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			msg.HTML,
	)

	err := smtp.SendMail(addr, auth, m.sender, []string{msg.To}, body)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", msg.To, addr)
	}
	return err
}
