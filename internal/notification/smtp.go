package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	UseTLS   bool
}

type smtpNotifier struct {
	cfg         SMTPConfig
	dialTimeout time.Duration
}

// NewSMTPNotifier returns a noop notifier when no host is configured.
func NewSMTPNotifier(cfg SMTPConfig) Notifier {
	if strings.TrimSpace(cfg.Host) == "" {
		return noopNotifier{}
	}
	return &smtpNotifier{cfg: cfg, dialTimeout: 10 * time.Second}
}

func (s *smtpNotifier) Notify(ctx context.Context, address, subject, body string) error {
	if strings.TrimSpace(address) == "" {
		return nil
	}
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	msg := buildMessage(s.cfg.From, address, subject, body)

	dialer := net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}

	if s.cfg.User != "" {
		auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(address); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	headers := []string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n" + body)
}
