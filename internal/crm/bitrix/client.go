// Package bitrix is a small Bitrix24 REST client: OAuth refresh, lead
// lookup and creation, timeline activities and Open Lines delivery.
package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"whatsdesk/internal/config"
	apperrors "whatsdesk/internal/errors"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const (
	ownerTypeLead = 1

	activityTypeProvider = 6
	directionIncoming    = 1
	directionOutgoing    = 2
)

type Client struct {
	http     *resty.Client
	oauthURL string
	logger   *zap.Logger
}

func NewClient(cfg config.BitrixConfig, logger *zap.Logger) *Client {
	return &Client{
		http:     resty.New().SetTimeout(cfg.Timeout),
		oauthURL: cfg.OAuthURL,
		logger:   logger.Named("bitrix"),
	}
}

// ===========================================================================
// OAuth
// ===========================================================================

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Expires          int64  `json:"expires"`
	Domain           string `json:"domain"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Refresh exchanges the refresh token once. The returned credentials carry
// the new tokens; the caller persists them.
func (c *Client) Refresh(ctx context.Context, creds Credentials) (*Credentials, error) {
	if creds.RefreshToken == "" || creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "bitrix24 refresh token or client credentials missing")
	}

	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type":    "refresh_token",
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
			"refresh_token": creds.RefreshToken,
		}).
		SetResult(&out).
		SetError(&out).
		Get(c.oauthURL)
	if err != nil {
		return nil, fmt.Errorf("bitrix24 token refresh: %w: %v", apperrors.ErrExternal, err)
	}
	if resp.IsError() || out.Error != "" || out.AccessToken == "" {
		reason := out.ErrorDescription
		if reason == "" {
			reason = out.Error
		}
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode())
		}
		return nil, fmt.Errorf("%w: bitrix24 token refresh failed: %s", apperrors.ErrUnauthorized, reason)
	}

	next := creds
	next.AccessToken = out.AccessToken
	next.RefreshToken = out.RefreshToken
	switch {
	case out.Expires > 0:
		next.ExpiresAt = out.Expires
	case out.ExpiresIn > 0:
		next.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second).Unix()
	}
	if out.Domain != "" {
		next.Domain = out.Domain
	}
	return &next, nil
}

// ===========================================================================
// REST calls
// ===========================================================================

type restResponse struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (c *Client) endpoint(creds Credentials, method string) (string, error) {
	if !creds.UsesOAuth() {
		return strings.TrimRight(creds.WebhookURL, "/") + "/" + method + ".json", nil
	}
	if creds.Domain == "" || creds.AccessToken == "" {
		return "", apperrors.Wrap(apperrors.ErrUnauthorized, "bitrix24 not authorized")
	}
	base := strings.TrimRight(creds.Domain, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base + "/rest/" + method + ".json", nil
}

// Call invokes a REST method and decodes "result" into out (when non-nil)
func (c *Client) Call(ctx context.Context, creds Credentials, method string, params interface{}, out interface{}) error {
	url, err := c.endpoint(creds, method)
	if err != nil {
		return err
	}

	req := c.http.R().SetContext(ctx).SetBody(params)
	if creds.UsesOAuth() {
		req.SetQueryParam("auth", creds.AccessToken)
	}

	var body restResponse
	resp, err := req.SetResult(&body).SetError(&body).Post(url)
	if err != nil {
		return fmt.Errorf("bitrix24 %s: %w: %v", method, apperrors.ErrExternal, err)
	}

	if body.Error != "" || resp.IsError() {
		c.logger.Warn("rest call failed",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode()),
			zap.String("error", body.Error),
			zap.String("description", body.ErrorDescription),
		)
		if resp.StatusCode() == http.StatusUnauthorized || body.Error == "expired_token" || body.Error == "invalid_token" {
			return fmt.Errorf("%w: bitrix24 %s: %s", apperrors.ErrUnauthorized, method, body.Error)
		}
		return fmt.Errorf("%w: bitrix24 %s: %s %s", apperrors.ErrExternal, method, body.Error, body.ErrorDescription)
	}

	if out == nil || len(body.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(body.Result, out); err != nil {
		return fmt.Errorf("bitrix24 %s: decode result: %w", method, err)
	}
	return nil
}

// ===========================================================================
// CRM
// ===========================================================================

// FindLeadByPhone first lead owning phone, "" when none
func (c *Client) FindLeadByPhone(ctx context.Context, creds Credentials, phone string) (string, error) {
	var raw json.RawMessage
	err := c.Call(ctx, creds, "crm.duplicate.findbycomm", map[string]interface{}{
		"entity_type": "LEAD",
		"type":        "PHONE",
		"values":      []string{phone, "+" + phone},
	}, &raw)
	if err != nil {
		return "", err
	}

	// the result is [] when nothing matched and {"LEAD":[ids]} otherwise
	var found map[string][]interface{}
	if err := json.Unmarshal(raw, &found); err != nil {
		return "", nil
	}
	if ids := found["LEAD"]; len(ids) > 0 {
		return cast.ToString(ids[0]), nil
	}
	return "", nil
}

type Lead struct {
	Title         string
	Name          string
	Phone         string
	ResponsibleID string
}

func (c *Client) AddLead(ctx context.Context, creds Credentials, lead Lead) (string, error) {
	fields := map[string]interface{}{
		"TITLE":     lead.Title,
		"NAME":      lead.Name,
		"SOURCE_ID": "OTHER",
		"PHONE": []map[string]string{
			{"VALUE": "+" + lead.Phone, "VALUE_TYPE": "MOBILE"},
		},
	}
	if lead.ResponsibleID != "" {
		fields["ASSIGNED_BY_ID"] = lead.ResponsibleID
	}

	var id interface{}
	if err := c.Call(ctx, creds, "crm.lead.add", map[string]interface{}{"fields": fields}, &id); err != nil {
		return "", err
	}
	leadID := cast.ToString(id)
	if leadID == "" || leadID == "0" {
		return "", fmt.Errorf("%w: bitrix24 crm.lead.add returned no id", apperrors.ErrExternal)
	}
	return leadID, nil
}

type Activity struct {
	LeadID        string
	Phone         string
	Subject       string
	Description   string
	Incoming      bool
	ResponsibleID string
}

func (c *Client) AddActivity(ctx context.Context, creds Credentials, a Activity) (string, error) {
	direction := directionOutgoing
	if a.Incoming {
		direction = directionIncoming
	}
	fields := map[string]interface{}{
		"OWNER_TYPE_ID":    ownerTypeLead,
		"OWNER_ID":         a.LeadID,
		"TYPE_ID":          activityTypeProvider,
		"PROVIDER_ID":      "REST_APP",
		"PROVIDER_TYPE_ID": "WHATSAPP",
		"SUBJECT":          a.Subject,
		"DESCRIPTION":      a.Description,
		"DIRECTION":        direction,
		"COMPLETED":        "Y",
		"COMMUNICATIONS": []map[string]interface{}{
			{"VALUE": "+" + a.Phone, "ENTITY_ID": a.LeadID, "ENTITY_TYPE_ID": ownerTypeLead},
		},
	}
	if a.ResponsibleID != "" {
		fields["RESPONSIBLE_ID"] = a.ResponsibleID
	}

	var id interface{}
	if err := c.Call(ctx, creds, "crm.activity.add", map[string]interface{}{"fields": fields}, &id); err != nil {
		return "", err
	}
	return cast.ToString(id), nil
}

// OpenLineMessage one WhatsApp message forwarded into an Open Lines chat
type OpenLineMessage struct {
	Phone     string
	UserName  string
	MessageID string
	Text      string
	SentAt    time.Time
}

func (c *Client) SendToOpenLine(ctx context.Context, creds Credentials, m OpenLineMessage) error {
	if !creds.OpenLinesEnabled() {
		return apperrors.Wrap(apperrors.ErrSkipped, "open lines connector not configured")
	}
	return c.Call(ctx, creds, "imconnector.send.messages", map[string]interface{}{
		"CONNECTOR": creds.ConnectorID,
		"LINE":      creds.LineID,
		"MESSAGES": []map[string]interface{}{
			{
				"user": map[string]string{
					"id":    m.Phone,
					"name":  m.UserName,
					"phone": "+" + m.Phone,
				},
				"message": map[string]interface{}{
					"id":   m.MessageID,
					"date": m.SentAt.Unix(),
					"text": m.Text,
				},
				"chat": map[string]string{"id": m.Phone},
			},
		},
	}, nil)
}
