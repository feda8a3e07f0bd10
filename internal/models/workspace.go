package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// ===========================================================================
// Workspace
// One tenant (business). Every other row hangs off a workspace
// ===========================================================================

// WorkspaceSettings tenant level preferences
type WorkspaceSettings struct {
	Timezone string `json:"timezone"`
	Language string `json:"language"`
}

// Value implements driver.Valuer for JSONB
func (s WorkspaceSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *WorkspaceSettings) Scan(value interface{}) error {
	if value == nil {
		*s = WorkspaceSettings{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, s)
}

type Workspace struct {
	BaseModel

	Name     string            `gorm:"size:255;not null" json:"name"`
	Slug     string            `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Settings WorkspaceSettings `gorm:"type:jsonb;default:'{}'" json:"settings"`
	IsActive bool              `gorm:"default:true" json:"is_active"`

	Users     []User     `gorm:"foreignKey:WorkspaceID" json:"users,omitempty"`
	Instances []Instance `gorm:"foreignKey:WorkspaceID" json:"instances,omitempty"`
}

func (Workspace) TableName() string {
	return "workspaces"
}
