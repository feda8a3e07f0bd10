package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ===========================================================================
// Contact
// Remote WhatsApp user scoped to one instance. (instance_id, phone) is the
// identity: the upsert in ContactRepository relies on that unique index
// ===========================================================================

// Metadata keys written by integrations
const (
	ContactMetaBitrixLeadID = "bitrix_lead_id"
)

type Contact struct {
	BaseModel

	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	InstanceID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_contacts_instance_phone,priority:1" json:"instance_id"`

	// Phone digits only (see phone.Normalize)
	Phone string `gorm:"size:30;not null;uniqueIndex:ux_contacts_instance_phone,priority:2" json:"phone"`

	Name              *string `gorm:"size:255" json:"name,omitempty"`
	PushName          *string `gorm:"size:255" json:"push_name,omitempty"`
	ProfilePictureURL *string `gorm:"size:1000" json:"profile_picture_url,omitempty"`

	Tags     datatypes.JSONSlice[string] `gorm:"type:jsonb;default:'[]'" json:"tags"`
	Metadata datatypes.JSONMap           `gorm:"type:jsonb;default:'{}'" json:"metadata"`
}

func (Contact) TableName() string {
	return "contacts"
}

// DisplayName best known name for prompts and CRM records
func (c *Contact) DisplayName() string {
	switch {
	case c.Name != nil && *c.Name != "":
		return *c.Name
	case c.PushName != nil && *c.PushName != "":
		return *c.PushName
	default:
		return c.Phone
	}
}

// MetaString reads a string metadata value
func (c *Contact) MetaString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	if v, ok := c.Metadata[key].(string); ok {
		return v
	}
	return ""
}
