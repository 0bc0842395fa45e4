package notifier

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strings"
	"time"

	"smart-apply/internal/config"
	"smart-apply/internal/retry"
)

// Sender delivers one HTML email. Implementations must be safe for
// concurrent use.
type Sender interface {
	SendHTML(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPSender sends through a plain-auth SMTP relay with a bounded retry.
// When retries are exhausted the failure is logged loudly and returned;
// the caller decides what to do with the run.
type SMTPSender struct {
	cfg    config.SMTPConfig
	logger *log.Logger
	retry  retry.Config

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg config.SMTPConfig, logger *log.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		logger: logger,
		retry:  retry.DefaultConfig(),
		send:   smtp.SendMail,
	}
}

func (s *SMTPSender) SendHTML(ctx context.Context, to, subject, htmlBody string) error {
	if s == nil {
		return fmt.Errorf("nil sender")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("empty recipient")
	}

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.From, s.cfg.Password, s.cfg.Host)
	msg := buildMessage(s.cfg.From, to, subject, htmlBody)

	err := retry.Do(ctx, s.retry, nil, func(ctx context.Context) error {
		return s.send(addr, auth, s.cfg.From, []string{to}, msg)
	})
	if err != nil {
		s.logf("notifier step=send status=alert to=%s err=%v", to, err)
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// sanitizeHeader strips CRLF so a crafted job title cannot inject headers.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func (s *SMTPSender) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
