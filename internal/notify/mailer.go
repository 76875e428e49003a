// Package notify mails a digest of products that are close to expiring.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"
)

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outgoing mail.
type Message struct {
	To          []string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds the transport settings for Mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Mailer sends messages over SMTP with PLAIN auth.
type Mailer struct {
	cfg  SMTPConfig
	addr string
}

// NewMailer builds a Mailer. From defaults to User.
func NewMailer(cfg SMTPConfig) *Mailer {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &Mailer{cfg: cfg, addr: cfg.Host + ":" + strconv.Itoa(cfg.Port)}
}

// Send delivers msg.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = msg.To
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	for _, a := range msg.Attachments {
		if _, err := e.Attach(bytes.NewReader(a.Content), a.Filename, a.ContentType); err != nil {
			return fmt.Errorf("notify: attach %s: %w", a.Filename, err)
		}
	}
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	return nil
}
