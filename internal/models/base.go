package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Shared columns
// ===========================================================================

// BaseModel is embedded by every workspace owned, soft deletable table.
// Append-only tables (webhook_events, knowledge_chunks) declare their own
// columns and only reuse assignID.
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// ids are set client side so callers can log and publish a row's id
// without a RETURNING round trip
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (b *BaseModel) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

func (e *WebhookEvent) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}

func (c *KnowledgeChunk) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
