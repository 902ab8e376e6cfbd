package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/autograder/internal/llm/parse"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 2048
	defaultTimeout     = 60 * time.Second
)

// Completer sends a system and user message pair and returns the completion text.
type Completer interface {
	Complete(ctx context.Context, system, user string, opts ...Option) (string, error)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	// Models is the fallback chain, tried in order.
	Models  []string
	Timeout time.Duration // per HTTP call
	AppName string        // sent as X-Title
	AppURL  string        // sent as HTTP-Referer
	Logger  *slog.Logger
}

// Client wraps an OpenAI-compatible API client with an ordered model fallback chain.
type Client struct {
	api    *openai.Client
	models []string
	log    *slog.Logger
}

// New creates a new LLM client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	models := make([]string, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		return nil, errors.New("no models configured")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	headers := make(http.Header)
	if cfg.AppURL != "" {
		headers.Set("HTTP-Referer", cfg.AppURL)
	}
	if cfg.AppName != "" {
		headers.Set("X-Title", cfg.AppName)
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	config.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &headerTransport{base: http.DefaultTransport, headers: headers},
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:    openai.NewClientWithConfig(config),
		models: models,
		log:    logger,
	}, nil
}

// Models returns the configured fallback chain.
func (c *Client) Models() []string {
	return append([]string(nil), c.models...)
}

// Option adjusts a single completion request.
type Option func(*requestOptions)

type requestOptions struct {
	temperature float32
	maxTokens   int
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(o *requestOptions) { o.temperature = t }
}

// WithMaxTokens sets the completion token budget.
func WithMaxTokens(n int) Option {
	return func(o *requestOptions) { o.maxTokens = n }
}

// Complete tries each configured model once, in order, and returns the
// normalized content of the first successful completion. When every model
// fails it returns an *ExhaustedError carrying all attempts.
func (c *Client) Complete(ctx context.Context, system, user string, opts ...Option) (string, error) {
	o := requestOptions{temperature: defaultTemperature, maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(&o)
	}

	exhausted := &ExhaustedError{}
	for i, modelName := range c.models {
		if err := ctx.Err(); err != nil {
			exhausted.Attempts = append(exhausted.Attempts, Attempt{Model: modelName, Err: err})
			return "", exhausted
		}

		content, err := c.completeOnce(ctx, modelName, system, user, o)
		if err == nil {
			if i > 0 {
				c.log.Info("LLM fallback succeeded", "model", modelName, "attempt", i+1)
			}
			return content, nil
		}
		c.log.Warn("LLM attempt failed", "model", modelName, "attempt", i+1, "error", err)
		exhausted.Attempts = append(exhausted.Attempts, Attempt{Model: modelName, Err: err})
	}
	c.log.Error("all LLM models failed", "models", len(c.models), "error", exhausted.Unwrap())
	return "", exhausted
}

func (c *Client) completeOnce(ctx context.Context, modelName, system, user string, o requestOptions) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", classify(modelName, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w: no choices", modelName, ErrEmptyResponse)
	}
	raw := resp.Choices[0].Message.Content
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%s: %w", modelName, ErrEmptyResponse)
	}
	c.log.Debug("LLM response", "model", modelName, "raw", raw)

	content := parse.Normalize(raw)
	if content == "" {
		return "", fmt.Errorf("%s: %w: only wrapper text", modelName, ErrEmptyResponse)
	}
	return content, nil
}

// classify turns a go-openai error into a *ProviderError, a malformed body
// error or a *TransportError.
func classify(modelName string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &ProviderError{
			Model:   modelName,
			Status:  apiErr.HTTPStatusCode,
			Kind:    KindForStatus(apiErr.HTTPStatusCode),
			Message: apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &ProviderError{
			Model:   modelName,
			Status:  reqErr.HTTPStatusCode,
			Kind:    KindForStatus(reqErr.HTTPStatusCode),
			Message: strings.TrimSpace(string(reqErr.Body)),
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &TransportError{Model: modelName, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w: %v", modelName, ErrMalformedBody, err)
	}
	return &TransportError{Model: modelName, Err: err}
}

// headerTransport adds caller identification headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	for k, vs := range t.headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}
