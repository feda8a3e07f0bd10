package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Instance
// One connected WhatsApp line. Credentials point at the hosted provider that
// actually holds the WhatsApp session
// ===========================================================================

// ProviderType hosted WhatsApp API behind an instance
type ProviderType string

const (
	ProviderEvolution ProviderType = "evolution"
	ProviderWAPI      ProviderType = "wapi"
	ProviderAPIBrasil ProviderType = "apibrasil"
	ProviderGupshup   ProviderType = "gupshup"
)

// InstanceStatus connection state reported by the provider
type InstanceStatus string

const (
	InstanceDisconnected InstanceStatus = "disconnected"
	InstanceConnecting   InstanceStatus = "connecting"
	InstanceQRPending    InstanceStatus = "qr_pending"
	InstanceConnected    InstanceStatus = "connected"
)

type Instance struct {
	BaseModel

	WorkspaceID uuid.UUID    `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name        string       `gorm:"size:255;not null" json:"name"`
	Provider    ProviderType `gorm:"size:30;not null;index" json:"provider"`

	// ExternalID provider side identifier: Evolution instance name, W-API
	// instanceId, APIBrasil device token, Gupshup source number
	ExternalID string `gorm:"size:255;not null;index" json:"external_id"`

	// APIToken per instance credential, falls back to the provider default key
	APIToken   string `gorm:"size:500" json:"-"`
	APIBaseURL string `gorm:"size:500" json:"api_base_url,omitempty"`

	// WebhookSecret when set, inbound webhooks must present it
	WebhookSecret string `gorm:"size:255" json:"-"`

	Status       InstanceStatus `gorm:"size:30;not null;default:'disconnected';index" json:"status"`
	PhoneNumber  string         `gorm:"size:30" json:"phone_number,omitempty"`
	QRCode       string         `gorm:"type:text" json:"qr_code,omitempty"`
	LastStatusAt *time.Time     `json:"last_status_at,omitempty"`

	// UseFlowEngine routes AI-mode messages to the flow engine topic instead of the AI responder
	UseFlowEngine bool `gorm:"default:false" json:"use_flow_engine"`

	// DepartmentID default department for new conversations
	DepartmentID *uuid.UUID `gorm:"type:uuid" json:"department_id,omitempty"`
}

func (Instance) TableName() string {
	return "instances"
}

// SetStatus records a status transition. Leaving qr_pending clears the pairing payload.
func (i *Instance) SetStatus(status InstanceStatus, at time.Time) {
	i.Status = status
	i.LastStatusAt = &at
	if status == InstanceConnected || status == InstanceDisconnected {
		i.QRCode = ""
	}
}

// NeedsStatusSync instances whose state may change without a webhook
func (i *Instance) NeedsStatusSync() bool {
	return i.Status == InstanceConnecting || i.Status == InstanceQRPending || i.Status == InstanceConnected
}
