package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ===========================================================================
// WebhookEvent
// Raw provider deliveries, kept for troubleshooting and purged by the
// retention job
// ===========================================================================

type WebhookEventStatus string

const (
	WebhookStatusReceived  WebhookEventStatus = "received"
	WebhookStatusProcessed WebhookEventStatus = "processed"
	WebhookStatusIgnored   WebhookEventStatus = "ignored"
	WebhookStatusFailed    WebhookEventStatus = "failed"
)

type WebhookEvent struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`

	// Provider evolution, wapi, apibrasil, gupshup or bitrix24
	Provider   string     `gorm:"size:30;not null;index" json:"provider"`
	InstanceID *uuid.UUID `gorm:"type:uuid;index" json:"instance_id,omitempty"`
	EventType  string     `gorm:"size:100" json:"event_type,omitempty"`

	Payload datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"payload"`

	Status       WebhookEventStatus `gorm:"size:20;not null;default:'received'" json:"status"`
	ErrorMessage *string            `gorm:"type:text" json:"error_message,omitempty"`
	ProcessedAt  *time.Time         `json:"processed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

func (e *WebhookEvent) MarkProcessed() {
	e.Status = WebhookStatusProcessed
	now := time.Now()
	e.ProcessedAt = &now
}

func (e *WebhookEvent) MarkIgnored(reason string) {
	e.Status = WebhookStatusIgnored
	if reason != "" {
		e.ErrorMessage = &reason
	}
	now := time.Now()
	e.ProcessedAt = &now
}

func (e *WebhookEvent) MarkFailed(err error) {
	e.Status = WebhookStatusFailed
	msg := err.Error()
	e.ErrorMessage = &msg
}
