package models

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ===========================================================================
// Conversation
// One thread between an instance and a contact. At most one open row per
// (instance, contact): enforced by the partial unique index created in
// database.EnsureIndexes and relied upon by the conversation upsert
// ===========================================================================

type ConversationStatus string

const (
	StatusOpen   ConversationStatus = "open"
	StatusClosed ConversationStatus = "closed"
)

// AttendanceMode who answers the conversation
type AttendanceMode string

const (
	AttendanceAI    AttendanceMode = "ai"
	AttendanceHuman AttendanceMode = "human"
)

const lastMessagePreviewLen = 500

type Conversation struct {
	BaseModel

	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	InstanceID  uuid.UUID `gorm:"type:uuid;not null;index" json:"instance_id"`
	ContactID   uuid.UUID `gorm:"type:uuid;not null;index" json:"contact_id"`

	Status         ConversationStatus `gorm:"size:20;not null;default:'open';index" json:"status"`
	AttendanceMode AttendanceMode     `gorm:"size:20;not null;default:'ai';index" json:"attendance_mode"`
	UnreadCount    int                `gorm:"not null;default:0" json:"unread_count"`

	LastMessageAt      *time.Time `gorm:"index" json:"last_message_at,omitempty"`
	LastMessagePreview *string    `gorm:"size:500" json:"last_message_preview,omitempty"`

	DepartmentID *uuid.UUID `gorm:"type:uuid;index" json:"department_id,omitempty"`
	AssignedTo   *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`

	Instance     *Instance   `gorm:"foreignKey:InstanceID" json:"instance,omitempty"`
	Contact      *Contact    `gorm:"foreignKey:ContactID" json:"contact,omitempty"`
	Department   *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	AssignedUser *User       `gorm:"foreignKey:AssignedTo" json:"assigned_user,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) IsOpen() bool { return c.Status == StatusOpen }

// IsAIMode true when inbound messages should be answered by the AI pipeline
func (c *Conversation) IsAIMode() bool { return c.AttendanceMode == AttendanceAI }

// SetLastMessage stamps last_message_at and a bounded preview
func (c *Conversation) SetLastMessage(content string, at time.Time) {
	c.LastMessageAt = &at
	preview := PreviewText(content)
	c.LastMessagePreview = &preview
}

// PreviewText truncates content to the preview column size on a rune boundary
func PreviewText(content string) string {
	if utf8.RuneCountInString(content) <= lastMessagePreviewLen {
		return content
	}
	runes := []rune(content)
	return string(runes[:lastMessagePreviewLen-3]) + "..."
}
