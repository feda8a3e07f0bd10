package models

import "github.com/google/uuid"

// Department groups operators and conversations. Display only.
type Department struct {
	BaseModel

	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	Color       string    `gorm:"size:20;default:'#6366f1'" json:"color"`
}

func (Department) TableName() string {
	return "departments"
}
