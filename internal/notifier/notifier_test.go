package notifier

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"smart-apply/internal/config"
	"smart-apply/internal/retry"
)

func TestRenderDigest(t *testing.T) {
	subject, body, err := RenderDigest(DigestData{
		Name: "Chanda",
		Matches: []DigestMatch{
			{Title: "Backend Engineer", Company: "Acme", Location: "Lusaka", Score: 0.87, URL: "https://example.com/job/1"},
			{Title: "Data Analyst", Company: "Globex", Score: 0.74, URL: "https://example.com/job/2"},
		},
	})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if subject != "2 new job matches for you" {
		t.Fatalf("unexpected subject %q", subject)
	}
	for _, want := range []string{"Chanda", "Backend Engineer", "Acme", "Lusaka", "87%", "74%", "https://example.com/job/1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q", want)
		}
	}
}

func TestRenderDigest_SingleMatchSubject(t *testing.T) {
	subject, _, err := RenderDigest(DigestData{
		Name:    "Mary",
		Matches: []DigestMatch{{Title: "DevOps Engineer", Score: 0.91, URL: "https://example.com/job/3"}},
	})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if subject != "New job match: DevOps Engineer" {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestRenderDigest_EscapesHTML(t *testing.T) {
	_, body, err := RenderDigest(DigestData{
		Name:    "Eve",
		Matches: []DigestMatch{{Title: "<script>alert(1)</script>", Score: 0.8, URL: "https://example.com/job/4"}},
	})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Fatalf("title was not escaped")
	}
}

func TestRenderDigest_EmptyMatches(t *testing.T) {
	if _, _, err := RenderDigest(DigestData{Name: "Joe"}); err == nil {
		t.Fatalf("expected error for empty digest")
	}
}

func newTestSender(send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) *SMTPSender {
	s := NewSMTPSender(config.SMTPConfig{
		Host: "smtp.example.com", Port: "587", From: "alerts@example.com", Password: "secret",
	}, log.New(&strings.Builder{}, "", 0))
	s.retry = retry.Config{MaxRetries: 2, BaseDelay: time.Millisecond}
	s.send = send
	return s
}

func TestSMTPSender_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	var gotMsg []byte
	s := newTestSender(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient smtp failure")
		}
		gotMsg = msg
		if addr != "smtp.example.com:587" {
			t.Errorf("unexpected addr %s", addr)
		}
		if from != "alerts@example.com" || len(to) != 1 || to[0] != "user@example.com" {
			t.Errorf("unexpected envelope from=%s to=%v", from, to)
		}
		return nil
	})

	err := s.SendHTML(context.Background(), "user@example.com", "Subject line", "<p>hello</p>")
	if err != nil {
		t.Fatalf("send error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	raw := string(gotMsg)
	for _, want := range []string{"Subject: Subject line", "Content-Type: text/html", "<p>hello</p>"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("message missing %q", want)
		}
	}
}

func TestSMTPSender_ExhaustsRetries(t *testing.T) {
	calls := 0
	s := newTestSender(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		calls++
		return fmt.Errorf("mailbox on fire")
	})

	err := s.SendHTML(context.Background(), "user@example.com", "s", "<p>b</p>")
	if err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !strings.Contains(err.Error(), "user@example.com") {
		t.Fatalf("error should name the recipient, got %v", err)
	}
}

func TestSMTPSender_EmptyRecipient(t *testing.T) {
	s := newTestSender(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		t.Fatalf("send must not be called")
		return nil
	})
	if err := s.SendHTML(context.Background(), "  ", "s", "b"); err == nil {
		t.Fatalf("expected error for empty recipient")
	}
}

func TestSanitizeHeader(t *testing.T) {
	got := sanitizeHeader("hello\r\nBcc: evil@example.com")
	if strings.ContainsAny(got, "\r\n") {
		t.Fatalf("header still contains CRLF: %q", got)
	}
}
