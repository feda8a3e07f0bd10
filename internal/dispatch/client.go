// Package dispatch chains the internal functions (ingestion -> AI -> send)
// over same-origin HTTP and runs fire-and-forget work on a bounded pool.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"whatsdesk/internal/config"
	apperrors "whatsdesk/internal/errors"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Internal function names, mounted under /api/v1/functions/
const (
	FnAIProcessMessage = "ai-process-message"
	FnSendMessage      = "send-message"
	FnProcessDocument  = "process-document"
	FnBitrixSync       = "bitrix-sync"
)

// FunctionCaller invokes an internal function with the service credential
type FunctionCaller interface {
	Call(ctx context.Context, fn string, body interface{}, out interface{}) error
}

// FunctionClient implements FunctionCaller
type FunctionClient struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewFunctionClient(cfg config.FunctionsConfig, logger *zap.Logger) *FunctionClient {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/api/v1/functions").
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.ServiceKey).
		SetHeader("Content-Type", "application/json")

	return &FunctionClient{http: httpClient, logger: logger.Named("functions")}
}

type functionError struct {
	Error string `json:"error"`
}

// Call posts body to the named function. The function's {error} body and
// status come back as the matching sentinel so 429/402 survive the hop.
func (c *FunctionClient) Call(ctx context.Context, fn string, body interface{}, out interface{}) error {
	var fnErr functionError
	req := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&fnErr)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Post("/" + fn)
	if err != nil {
		return fmt.Errorf("call %s: %w: %v", fn, apperrors.ErrExternal, err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := fnErr.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	c.logger.Debug("function call failed",
		zap.String("function", fn),
		zap.Int("status", resp.StatusCode()),
		zap.String("error", msg),
	)
	return apperrors.New(sentinelFor(resp.StatusCode()), fn+": "+msg)
}

func sentinelFor(status int) error {
	switch status {
	case http.StatusBadRequest:
		return apperrors.ErrInvalidInput
	case http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case http.StatusNotFound:
		return apperrors.ErrNotFound
	case http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	case http.StatusPaymentRequired:
		return apperrors.ErrPaymentRequired
	default:
		return apperrors.ErrExternal
	}
}
