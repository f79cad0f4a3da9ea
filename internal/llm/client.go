package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// Config captures the runtime settings required to talk to one provider.
type Config struct {
	Name           string
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Params are the sampling parameters sent with a completion request.
type Params struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Completion is the provider's answer to a single request.
type Completion struct {
	Text      string
	TokensIn  int
	TokensOut int
	Latency   time.Duration
}

// Client wraps one OpenAI-compatible chat completion endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a provider client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			Name:           strings.ToLower(strings.TrimSpace(cfg.Name)),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	return client
}

// Name reports the provider's configured name.
func (c *Client) Name() string { return c.cfg.Name }

// Model reports the model this client requests.
func (c *Client) Model() string { return c.cfg.Model }

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		// Some providers return the streaming schema (delta) even when
		// stream=false, so tolerate it as a fallback.
		Delta chatMessage `json:"delta"`
		Text  string      `json:"text"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete issues one chat completion request. Failures are classified into
// QuotaError, TransientError, or HardError so the caller can apply policy.
func (c *Client) Complete(ctx context.Context, prompt string, params Params) (Completion, error) {
	var empty Completion
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return empty, &HardError{Provider: c.cfg.Name, Cause: errors.New("prompt required")}
	}
	if c.cfg.APIKey == "" {
		return empty, &HardError{Provider: c.cfg.Name, Cause: errors.New("api key required")}
	}

	payload := chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   params.MaxTokens,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, &HardError{Provider: c.cfg.Name, Cause: fmt.Errorf("encode body: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return empty, &HardError{Provider: c.cfg.Name, Cause: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := c.now()
	resp, err := c.httpClient.Do(req)
	latency := c.now().Sub(start)
	if err != nil {
		return empty, c.classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, &TransientError{Provider: c.cfg.Name, Cause: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return empty, c.classifyStatus(resp, body)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return empty, &TransientError{Provider: c.cfg.Name, Cause: fmt.Errorf("decode response: %w", err)}
	}
	if completion.Error != nil {
		return empty, &HardError{Provider: c.cfg.Name, Cause: fmt.Errorf("api error: %s", strings.TrimSpace(completion.Error.Message))}
	}

	text := extractCompletionText(completion)
	if text == "" {
		return empty, &TransientError{Provider: c.cfg.Name, Cause: errors.New("empty completion content")}
	}

	return Completion{
		Text:      text,
		TokensIn:  completion.Usage.PromptTokens,
		TokensOut: completion.Usage.CompletionTokens,
		Latency:   latency,
	}, nil
}

func (c *Client) classifyStatus(resp *http.Response, body []byte) error {
	trimmed := strings.TrimSpace(string(body))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &QuotaError{
			Provider:   c.cfg.Name,
			StatusCode: resp.StatusCode,
			Body:       trimmed,
			RetryAfter: retryAfter,
		}
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode >= http.StatusInternalServerError:
		return &TransientError{Provider: c.cfg.Name, StatusCode: resp.StatusCode, Body: trimmed}
	default:
		return &HardError{Provider: c.cfg.Name, StatusCode: resp.StatusCode, Body: trimmed}
	}
}

func (c *Client) classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Provider: c.cfg.Name, Cause: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &TransientError{Provider: c.cfg.Name, Cause: err}
		}
		// Connection refused/reset and DNS hiccups are worth a retry.
		return &TransientError{Provider: c.cfg.Name, Cause: err}
	}
	return &HardError{Provider: c.cfg.Name, Cause: err}
}

func extractCompletionText(completion chatCompletionResponse) string {
	for _, choice := range completion.Choices {
		for _, candidate := range []string{choice.Message.Content, choice.Delta.Content, choice.Text} {
			if trimmed := strings.TrimSpace(candidate); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
