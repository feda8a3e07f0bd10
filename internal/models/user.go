package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ===========================================================================
// User
// Dashboard operator (owner, admin, operator). Not a WhatsApp contact
// ===========================================================================

type UserRole string

const (
	RoleOwner    UserRole = "owner"
	RoleAdmin    UserRole = "admin"
	RoleOperator UserRole = "operator"
)

type User struct {
	BaseModel

	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Email       string    `gorm:"size:255;not null;uniqueIndex" json:"email"`

	// PasswordHash bcrypt hash, never serialized
	PasswordHash string `gorm:"size:255;not null" json:"-"`

	// RefreshTokenHash sha256 of the current refresh token, cleared on logout
	RefreshTokenHash *string `gorm:"size:255" json:"-"`

	Name         string     `gorm:"size:255;not null" json:"name"`
	AvatarURL    *string    `gorm:"size:500" json:"avatar_url,omitempty"`
	Role         UserRole   `gorm:"size:50;not null;default:'operator'" json:"role"`
	DepartmentID *uuid.UUID `gorm:"type:uuid;index" json:"department_id,omitempty"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	LastSeenAt   *time.Time `json:"last_seen_at,omitempty"`

	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// SetPassword stores a bcrypt hash of password
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// CanManage owners and admins manage instances, personas and integrations
func (r UserRole) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

func (u *User) UpdateLastSeen() {
	now := time.Now()
	u.LastSeenAt = &now
}
