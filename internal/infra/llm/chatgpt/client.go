package chatgpt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/yanqian/ai-assistant/pkg/metrics"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ErrNoChoices is returned when the backend answers without any completion.
var ErrNoChoices = errors.New("chat completion returned no choices")

// Config configures the completion client.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	MaxTokens         int
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	ModelLoadingDelay time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Message mirrors the OpenAI chat message structure.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is one chat call. Zero MaxTokens uses the client default.
type ChatCompletionRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// ChatCompletionResponse carries the first choice and the reported usage.
type ChatCompletionResponse struct {
	Content string
	Usage   metrics.TokenUsage
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// Client talks to an OpenAI compatible chat completion endpoint with client
// side rate limiting and retries.
type Client struct {
	api     *openai.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
	sleep   sleepFunc
}

// NewClient constructs a ChatGPT client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("chatgpt api key cannot be empty")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("chatgpt model cannot be empty")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With("component", "chatgpt.client"),
		sleep:   sleepContext,
	}, nil
}

// Complete sends a system and user message pair and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt, systemPrompt string, temperature float32) (string, error) {
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, Message{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, Message{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := c.CreateChatCompletion(ctx, ChatCompletionRequest{
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// CreateChatCompletion performs a chat call, retrying transient failures.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	apiReq := c.buildRequest(req)

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return ChatCompletionResponse{}, fmt.Errorf("wait for rate limiter: %w", err)
		}

		start := time.Now()
		resp, err := c.api.CreateChatCompletion(ctx, apiReq)
		if err == nil {
			if len(resp.Choices) == 0 {
				return ChatCompletionResponse{}, ErrNoChoices
			}
			c.logger.Debug("chat completion finished",
				"attempt", attempt+1,
				"latency_ms", time.Since(start).Milliseconds(),
				"total_tokens", resp.Usage.TotalTokens,
			)
			return ChatCompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: metrics.TokenUsage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ChatCompletionResponse{}, fmt.Errorf("request chat completion: %w", err)
		}
		if classify(err) == failurePermanent {
			return ChatCompletionResponse{}, fmt.Errorf("request chat completion: %w", err)
		}
		if attempt == c.cfg.MaxRetries-1 {
			break
		}

		wait := c.backoff(err, attempt)
		c.logger.Warn("chat completion failed, retrying",
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"wait", wait.String(),
			"error", err,
		)
		if err := c.sleep(ctx, wait); err != nil {
			return ChatCompletionResponse{}, fmt.Errorf("request chat completion: %w", err)
		}
	}
	return ChatCompletionResponse{}, fmt.Errorf("request chat completion after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) buildRequest(req ChatCompletionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content})
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	return openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	}
}

// backoff picks the wait before the next attempt: exponential for rate limits,
// linear for a model that is still loading, flat otherwise.
func (c *Client) backoff(err error, attempt int) time.Duration {
	switch classify(err) {
	case failureRateLimited:
		return c.cfg.RetryDelay * time.Duration(1<<attempt)
	case failureModelLoading:
		return c.cfg.ModelLoadingDelay * time.Duration(attempt+1)
	default:
		return c.cfg.RetryDelay
	}
}

type failureKind int

const (
	failureOther failureKind = iota
	failureRateLimited
	failureModelLoading
	// failurePermanent covers client errors a retry cannot fix, such as a bad
	// key or an unknown model.
	failurePermanent
)

func classify(err error) failureKind {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	msg := strings.ToLower(err.Error())

	if status == http.StatusTooManyRequests || strings.Contains(msg, "rate limit") {
		return failureRateLimited
	}
	if status == http.StatusServiceUnavailable || strings.Contains(msg, "loading") {
		return failureModelLoading
	}
	if status >= 400 && status < 500 && status != http.StatusRequestTimeout {
		return failurePermanent
	}
	return failureOther
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
