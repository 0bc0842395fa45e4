package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"smart-apply/internal/config"
	"smart-apply/internal/retry"
)

// maxEmbedInputLength caps the text sent to the embedding API.
const maxEmbedInputLength = 8000

// ServiceError covers rate-limiting, timeouts and malformed-input failures
// from the embedding service. Callers treat retryable errors as transient
// (retry with backoff), others as skip-and-log.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("embedding service: status=%d %s", e.StatusCode, e.Message)
	}
	return "embedding service: " + e.Message
}

func (e *ServiceError) Retryable() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if e.StatusCode >= 500 {
		return true
	}
	// No status means a transport-level failure.
	return e.StatusCode == 0
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// Client talks to an OpenAI-compatible /v1/embeddings endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewClient(cfg config.EmbeddingsConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      strings.TrimSpace(cfg.Model),
	}
}

type embeddingsRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if c == nil {
		return nil, &ServiceError{Message: "nil client"}
	}

	cleaned := TruncateText(CleanText(text), maxEmbedInputLength)
	if cleaned == "" {
		return nil, &ServiceError{StatusCode: http.StatusBadRequest, Message: "empty input"}
	}

	body, err := json.Marshal(embeddingsRequest{Model: c.model, Input: cleaned})
	if err != nil {
		return nil, &ServiceError{Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &ServiceError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ServiceError{Message: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &ServiceError{Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: truncateForLog(string(raw))}
	}

	var out embeddingsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: "empty embedding in response"}
	}

	return out.Data[0].Embedding, nil
}

// RetryingEmbedder decorates an Embedder with bounded backoff on transient
// service errors.
type RetryingEmbedder struct {
	inner Embedder
	cfg   retry.Config
	log   *log.Logger
}

func NewRetryingEmbedder(inner Embedder, cfg retry.Config, logger *log.Logger) *RetryingEmbedder {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.MaxRetries <= 0 && cfg.BaseDelay <= 0 {
		cfg = retry.DefaultConfig()
	}
	return &RetryingEmbedder{inner: inner, cfg: cfg, log: logger}
}

func (e *RetryingEmbedder) Model() string {
	return e.inner.Model()
}

func (e *RetryingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var vec []float64
	attempt := 0
	err := retry.Do(ctx, e.cfg, IsRetryable, func(ctx context.Context) error {
		attempt++
		v, err := e.inner.Embed(ctx, text)
		if err != nil {
			if IsRetryable(err) {
				e.log.Printf("embedding status=retryable attempt=%d err=%v", attempt, err)
			}
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func IsRetryable(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CleanText collapses whitespace runs and trims the result.
func CleanText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// TruncateText cuts text to max bytes on a rune boundary.
func TruncateText(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	runes := []rune(text)
	for len(string(runes)) > max {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}

func truncateForLog(s string) string {
	s = CleanText(s)
	if len(s) > 300 {
		return s[:300]
	}
	return s
}
