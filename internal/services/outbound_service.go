package services

import (
	"context"

	"whatsdesk/internal/dto"
	"whatsdesk/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Outbound Service Interface
// Sends one message through the instance's provider and records it
// ===========================================================================

type SendRequest struct {
	// WorkspaceID when set the instance and conversation must belong to it (dashboard sends)
	WorkspaceID uuid.UUID

	InstanceID     uuid.UUID
	ConversationID uuid.UUID
	UserID         uuid.UUID

	Phone    string
	Type     models.MessageType
	Text     string
	MediaURL string
	MimeType string
	FileName string
	Caption  string

	Source models.MessageSource
}

// SendRequestFromParams maps the loosely named function body
func SendRequestFromParams(p dto.SendParams) *SendRequest {
	return &SendRequest{
		InstanceID:     p.InstanceID,
		ConversationID: p.ConversationID,
		UserID:         p.UserID,
		Phone:          p.Phone,
		Type:           models.ParseMessageType(p.Type),
		Text:           p.Text,
		MediaURL:       p.MediaURL,
		MimeType:       p.MimeType,
		FileName:       p.FileName,
		Caption:        p.Caption,
		Source:         models.ParseMessageSource(p.Source),
	}
}

type SendResult struct {
	MessageID         uuid.UUID `json:"message_id"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	ConversationID    uuid.UUID `json:"conversation_id"`
	ContactID         uuid.UUID `json:"contact_id"`

	// Takeover the send switched the conversation to human attendance
	Takeover bool `json:"takeover"`
}

type OutboundService interface {
	Send(ctx context.Context, req *SendRequest) (*SendResult, error)
}
