// Package llm talks to an OpenAI compatible chat-completion gateway.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"whatsdesk/internal/config"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/pkg/logger"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Completion first choice of a successful call
type Completion struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}

// Completer is what the responder needs from the gateway
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (*Completion, error)
}

type Client struct {
	http         *resty.Client
	url          string
	defaultModel string
	logger       *zap.Logger
}

func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}
	return &Client{
		http:         httpClient,
		url:          cfg.GatewayURL,
		defaultModel: cfg.DefaultModel,
		logger:       logger.Named("llm"),
	}
}

// Complete sends one chat completion. Gateway 429 and 402 come back as
// ErrRateLimited and ErrPaymentRequired, any other failure as ErrExternal.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*Completion, error) {
	if c.url == "" {
		return nil, apperrors.Wrap(apperrors.ErrExternal, "llm gateway not configured")
	}
	if req.Model == "" {
		req.Model = c.defaultModel
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("llm gateway request: %w: %v", apperrors.ErrExternal, err)
	}

	switch resp.StatusCode() {
	case http.StatusTooManyRequests:
		c.logger.Warn("gateway rate limited", zap.String("model", req.Model))
		return nil, apperrors.New(apperrors.ErrRateLimited, "Rate limit exceeded, please try again later")
	case http.StatusPaymentRequired:
		c.logger.Warn("gateway credits exhausted", zap.String("model", req.Model))
		return nil, apperrors.New(apperrors.ErrPaymentRequired, "AI credits exhausted")
	}
	if resp.IsError() {
		c.logger.Error("gateway error",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", logger.Excerpt(resp.String(), 500)),
		)
		return nil, fmt.Errorf("%w: llm gateway status %d", apperrors.ErrExternal, resp.StatusCode())
	}

	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%w: llm gateway returned no choices", apperrors.ErrExternal)
	}

	choice := out.Choices[0]
	return &Completion{
		Content:      strings.TrimSpace(choice.Message.Content),
		Model:        out.Model,
		FinishReason: choice.FinishReason,
		Usage:        out.Usage,
	}, nil
}
