package utils

import (
	"context"
	"io"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type MailAttachment struct {
	Filename string
	Data     []byte
}

type MailMessage struct {
	To          string
	Subject     string
	Body        string
	Attachments []MailAttachment
}

// Mailer is swapped in tests.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

type smtpMailer struct{}

var mailer Mailer = smtpMailer{}

func SetMailer(m Mailer) {
	if m == nil {
		m = smtpMailer{}
	}
	mailer = m
}

func SendMail(ctx context.Context, msg MailMessage) error {
	return mailer.Send(ctx, msg)
}

// Send delivers through SMTP_HOST. Without SMTP_HOST the message is only logged.
func (smtpMailer) Send(ctx context.Context, msg MailMessage) error {
	host := config.StringFromEnv("SMTP_HOST", "")
	if host == "" {
		config.GetLogger().WithFields(logrus.Fields{
			"field":   "SendMail",
			"to":      msg.To,
			"subject": msg.Subject,
		}).Info("SMTP_HOST not set; mail not sent")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", config.StringFromEnv("MAIL_FROM", "no-reply@example.org"))
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	for _, a := range msg.Attachments {
		data := a.Data
		m.Attach(a.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	d := gomail.NewDialer(host,
		config.IntFromEnv("SMTP_PORT", 587),
		config.StringFromEnv("SMTP_USERNAME", ""),
		config.StringFromEnv("SMTP_PASSWORD", ""),
	)
	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
