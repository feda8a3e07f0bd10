package models

import (
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ===========================================================================
// Integration
// Per workspace vendor credentials. Config is an opaque JSON bag; typed views
// are decoded on demand with DecodeConfig
// ===========================================================================

type IntegrationType string

const (
	IntegrationBitrix24   IntegrationType = "bitrix24"
	IntegrationElevenLabs IntegrationType = "elevenlabs"
	IntegrationLLM        IntegrationType = "llm"
)

type IntegrationStatus string

const (
	IntegrationActive IntegrationStatus = "active"
	IntegrationError  IntegrationStatus = "error"
)

type Integration struct {
	BaseModel

	WorkspaceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Type        IntegrationType `gorm:"size:30;not null;index" json:"type"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	IsActive    bool            `gorm:"default:true" json:"is_active"`

	Config datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"config"`

	Status      IntegrationStatus `gorm:"size:20;not null;default:'active'" json:"status"`
	LastError   *string           `gorm:"type:text" json:"last_error,omitempty"`
	LastErrorAt *time.Time        `json:"last_error_at,omitempty"`
}

func (Integration) TableName() string {
	return "integrations"
}

// DecodeConfig decodes the JSON bag into out (a pointer to a struct with
// mapstructure tags). Numbers stored as strings are accepted.
func (i *Integration) DecodeConfig(out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]interface{}(i.Config))
}

// MarkError records a failed call against the integration
func (i *Integration) MarkError(err error, at time.Time) {
	msg := err.Error()
	i.Status = IntegrationError
	i.LastError = &msg
	i.LastErrorAt = &at
}

// ClearError back to active after a successful call
func (i *Integration) ClearError() {
	i.Status = IntegrationActive
	i.LastError = nil
	i.LastErrorAt = nil
}

// ConfigMask replaces secret config values in API responses. Sent back
// unchanged on update, it keeps the stored value.
const ConfigMask = "********"

// secretConfigKeys config keys never returned by the dashboard API
var secretConfigKeys = []string{"secret", "token", "api_key", "apikey", "password"}

// MaskedConfig copy of Config with secret values replaced by a fixed mask
func (i *Integration) MaskedConfig() map[string]interface{} {
	out := make(map[string]interface{}, len(i.Config))
	for k, v := range i.Config {
		if isSecretKey(k) {
			if s, ok := v.(string); ok && s != "" {
				out[k] = ConfigMask
				continue
			}
		}
		out[k] = v
	}
	return out
}

// MergeConfig applies an update from the dashboard; masked values are skipped
// and nil values remove the key
func (i *Integration) MergeConfig(update map[string]interface{}) {
	if i.Config == nil {
		i.Config = datatypes.JSONMap{}
	}
	for k, v := range update {
		switch {
		case v == nil:
			delete(i.Config, k)
		case v == ConfigMask:
			continue
		default:
			i.Config[k] = v
		}
	}
}

func isSecretKey(k string) bool {
	lk := strings.ToLower(k)
	for _, s := range secretConfigKeys {
		if strings.Contains(lk, s) {
			return true
		}
	}
	return false
}
