package models

import (
	"github.com/google/uuid"
)

// ===========================================================================
// Persona
// AI behavior profile. The workspace default answers every conversation in
// AI attendance mode
// ===========================================================================

type Persona struct {
	BaseModel

	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`

	SystemPrompt string `gorm:"type:text;not null;default:''" json:"system_prompt"`

	// Model gateway model id, empty uses llm.default_model
	Model       string  `gorm:"size:100" json:"model,omitempty"`
	Temperature float64 `gorm:"not null;default:0.7" json:"temperature"`
	MaxTokens   int     `gorm:"not null;default:1024" json:"max_tokens"`

	VoiceEnabled bool   `gorm:"default:false" json:"voice_enabled"`
	VoiceID      string `gorm:"size:100" json:"voice_id,omitempty"`

	// IsDefault at most one per workspace, see PersonaRepository.SetDefault
	IsDefault bool `gorm:"default:false;index" json:"is_default"`

	// CRMBotEnabled lets the persona answer Open Lines conversations bridged from Bitrix24
	CRMBotEnabled bool `gorm:"default:false" json:"crm_bot_enabled"`
}

func (Persona) TableName() string {
	return "personas"
}

// ResolveModel persona model or the fallback
func (p *Persona) ResolveModel(fallback string) string {
	if p.Model != "" {
		return p.Model
	}
	return fallback
}

// SpeaksBack true when a reply to an audio message should be voiced
func (p *Persona) SpeaksBack(trigger MessageType) bool {
	return p.VoiceEnabled && trigger == TypeAudio
}
