package bitrix

import (
	"time"
)

// Credentials typed view of a bitrix24 integration config bag
type Credentials struct {
	// Domain portal host, e.g. "acme.bitrix24.com.br"
	Domain       string `mapstructure:"domain"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
	// ExpiresAt unix seconds
	ExpiresAt int64 `mapstructure:"expires_at"`

	// WebhookURL inbound webhook ("https://x.bitrix24.com/rest/1/abc/"): no OAuth at all
	WebhookURL string `mapstructure:"webhook_url"`

	ConnectorID      string `mapstructure:"connector_id"`
	LineID           string `mapstructure:"line_id"`
	ApplicationToken string `mapstructure:"application_token"`

	// InstanceID WhatsApp line used for messages originated in the CRM
	InstanceID    string `mapstructure:"instance_id"`
	ResponsibleID string `mapstructure:"responsible_id"`
}

// UsesOAuth false for inbound-webhook portals
func (c *Credentials) UsesOAuth() bool {
	return c.WebhookURL == ""
}

// NeedsRefresh true once now is inside the buffer before expiry
func (c *Credentials) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	if !c.UsesOAuth() {
		return false
	}
	return time.Unix(c.ExpiresAt, 0).Add(-buffer).Compare(now) <= 0
}

// OpenLinesEnabled connector and line both configured
func (c *Credentials) OpenLinesEnabled() bool {
	return c.ConnectorID != "" && c.LineID != ""
}

// WriteTokens copies refreshed tokens into a config bag
func (c *Credentials) WriteTokens(cfg map[string]interface{}) {
	cfg["access_token"] = c.AccessToken
	cfg["refresh_token"] = c.RefreshToken
	cfg["expires_at"] = c.ExpiresAt
	if c.Domain != "" {
		cfg["domain"] = c.Domain
	}
}
