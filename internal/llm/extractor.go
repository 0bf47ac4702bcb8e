// Package llm turns scraped venue pages into structured records through an
// OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"resty.dev/v3"

	"github.com/JakeFAU/venue-scraper/internal/metrics"
	"github.com/JakeFAU/venue-scraper/internal/validate"
	"github.com/JakeFAU/venue-scraper/internal/venue"
)

// Defaults for the Groq endpoint.
const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "openai/gpt-oss-20b"
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 8192
	DefaultTimeout     = 60 * time.Second
)

// ErrEmptyReply is returned when the model answers without any content.
var ErrEmptyReply = errors.New("empty completion")

// Config controls the chat completion client.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerSecond int
	Retries           int
}

// Extractor implements venue.RecordExtractor.
type Extractor struct {
	cfg    Config
	http   *resty.Client
	rl     ratelimit.Limiter
	logger *zap.Logger
}

// New builds an Extractor. Missing optional settings take the defaults above.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rl := ratelimit.NewUnlimited()
	if cfg.RequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.RequestsPerSecond)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Extractor{
		cfg:    cfg,
		http:   client,
		rl:     rl,
		logger: logger.Named("llm"),
	}
}

// pace waits for the request limiter or for ctx, whichever comes first.
func (e *Extractor) pace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	taken := make(chan struct{})
	go func() {
		e.rl.Take()
		close(taken)
	}()
	select {
	case <-taken:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Configured reports whether an API key is set.
func (e *Extractor) Configured() bool {
	return e.cfg.APIKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model               string         `json:"model"`
	Messages            []chatMessage  `json:"messages"`
	Temperature         float64        `json:"temperature"`
	MaxCompletionTokens int            `json:"max_completion_tokens"`
	TopP                float64        `json:"top_p"`
	ReasoningEffort     string         `json:"reasoning_effort,omitempty"`
	Stream              bool           `json:"stream"`
	ResponseFormat      responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Extract asks the model for a record and normalizes it. It returns nil and
// no error when no API key is configured.
func (e *Extractor) Extract(ctx context.Context, content venue.ScrapedContent) (*venue.Record, error) {
	if !e.Configured() {
		e.logger.Warn("llm api key not configured; skipping extraction", zap.String("url", content.URL))
		metrics.ObserveLLM("skipped")
		return nil, nil
	}
	if err := e.pace(ctx); err != nil {
		return nil, fmt.Errorf("llm extraction canceled: %w", err)
	}

	reqBody := chatRequest{
		Model: e.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(content)},
		},
		Temperature:         e.cfg.Temperature,
		MaxCompletionTokens: e.cfg.MaxTokens,
		TopP:                1,
		ReasoningEffort:     "medium",
		ResponseFormat:      responseFormat{Type: "json_object"},
	}

	start := time.Now()
	resp, err := e.http.R().
		SetContext(ctx).
		SetBody(reqBody).
		Post("/chat/completions")
	if err != nil {
		metrics.ObserveLLM("error")
		if ctx.Err() != nil {
			return nil, fmt.Errorf("llm request canceled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("llm request: %w", err)
	}
	if resp.IsError() {
		metrics.ObserveLLM("error")
		return nil, fmt.Errorf("llm request returned %s: %s", resp.Status(), truncate(resp.String(), 300))
	}

	var parsed chatResponse
	if err := json.Unmarshal([]byte(resp.String()), &parsed); err != nil {
		metrics.ObserveLLM("error")
		return nil, fmt.Errorf("decode completion envelope: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		metrics.ObserveLLM("empty")
		return nil, ErrEmptyReply
	}

	raw, err := parseReply(parsed.Choices[0].Message.Content)
	if err != nil {
		metrics.ObserveLLM("error")
		return nil, err
	}
	record := validate.Record(raw)
	metrics.ObserveLLM("ok")
	e.logger.Info("extracted venue record",
		zap.String("url", content.URL),
		zap.String("name", record.Name),
		zap.Duration("duration", time.Since(start)),
	)
	return &record, nil
}

// parseReply decodes the model's JSON object, tolerating a fenced code block.
func parseReply(reply string) (map[string]any, error) {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "```") {
		reply = strings.TrimPrefix(reply, "```json")
		reply = strings.TrimPrefix(reply, "```")
		reply = strings.TrimSuffix(strings.TrimSpace(reply), "```")
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(reply), &raw); err != nil {
		return nil, fmt.Errorf("decode venue json: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("decode venue json: reply is not an object")
	}
	return raw, nil
}

// Close releases idle connections.
func (e *Extractor) Close() error {
	if err := e.http.Close(); err != nil {
		return fmt.Errorf("close llm client: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
