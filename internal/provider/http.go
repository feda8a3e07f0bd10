package provider

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"whatsdesk/internal/config"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/pkg/logger"

	"github.com/go-resty/resty/v2"
	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"
)

// restBase HTTP plumbing shared by the adapters
type restBase struct {
	http     *resty.Client
	endpoint config.ProviderEndpoint
	logger   *zap.Logger
}

func newRestBase(endpoint config.ProviderEndpoint, timeout time.Duration, logger *zap.Logger) restBase {
	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	httpClient.OnError(func(req *resty.Request, err error) {
		if v, ok := err.(*resty.ResponseError); ok {
			logger.Debug("provider response error", zap.String("response", v.Response.String()))
		}
	})
	return restBase{http: httpClient, endpoint: endpoint, logger: logger}
}

// baseURL instance override or the provider default
func (b *restBase) baseURL(inst *models.Instance) string {
	if inst.APIBaseURL != "" {
		return strings.TrimRight(inst.APIBaseURL, "/")
	}
	return strings.TrimRight(b.endpoint.BaseURL, "/")
}

// token instance credential or the provider default key
func (b *restBase) token(inst *models.Instance) string {
	if inst.APIToken != "" {
		return inst.APIToken
	}
	return b.endpoint.APIKey
}

// check turns transport errors and non-2xx answers into ErrExternal
func (b *restBase) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, apperrors.ErrExternal, err)
	}
	if resp.IsError() {
		b.logger.Warn("provider call failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode()),
			zap.String("body", logger.Excerpt(resp.String(), 300)),
		)
		return fmt.Errorf("%w: %s: status %d", apperrors.ErrExternal, op, resp.StatusCode())
	}
	return nil
}

// rawBase64 strips the data URL envelope for APIs that want bare base64;
// http(s) URLs are returned untouched
func rawBase64(media string) (string, error) {
	if !strings.HasPrefix(media, "data:") {
		return media, nil
	}
	du, err := dataurl.DecodeString(media)
	if err != nil {
		return "", fmt.Errorf("%w: invalid data url: %v", apperrors.ErrInvalidInput, err)
	}
	return base64.StdEncoding.EncodeToString(du.Data), nil
}

func requireText(msg *OutboundMessage) error {
	if msg.Type == models.TypeText && strings.TrimSpace(msg.Text) == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "text is required")
	}
	if msg.Type != models.TypeText && msg.MediaURL == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "media url is required")
	}
	return nil
}

// restRequest prepared request plus the URL prefix it targets
type restRequest struct {
	req  *resty.Request
	base string
}
