package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ===========================================================================
// Message
// One inbound or outbound unit. Immutable after insert except for the
// delivery status and the audio transcription
// ===========================================================================

type MessageDirection string

const (
	DirectionIncoming MessageDirection = "incoming"
	DirectionOutgoing MessageDirection = "outgoing"
)

type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeAudio    MessageType = "audio"
	TypeVideo    MessageType = "video"
	TypeDocument MessageType = "document"
	TypeSticker  MessageType = "sticker"
)

// ParseMessageType maps loose type names to a MessageType, defaulting to text
func ParseMessageType(s string) MessageType {
	switch s {
	case "image", "imagem", "photo":
		return TypeImage
	case "audio", "ptt", "voice":
		return TypeAudio
	case "video":
		return TypeVideo
	case "document", "file", "documento":
		return TypeDocument
	case "sticker":
		return TypeSticker
	default:
		return TypeText
	}
}

func (t MessageType) IsMedia() bool {
	return t != TypeText
}

type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageFailed    MessageStatus = "failed"
	MessageReceived  MessageStatus = "received"
)

var statusRank = map[MessageStatus]int{
	MessagePending:   0,
	MessageSent:      1,
	MessageDelivered: 2,
	MessageRead:      3,
}

// Advances reports whether next moves the delivery status forward
// (sent -> delivered -> read). Failed is only accepted before delivery.
func (s MessageStatus) Advances(next MessageStatus) bool {
	if next == MessageFailed {
		return s == MessagePending || s == MessageSent
	}
	cur, okCur := statusRank[s]
	nxt, okNext := statusRank[next]
	return okCur && okNext && nxt > cur
}

var statusOrder = []MessageStatus{MessagePending, MessageSent, MessageDelivered, MessageRead, MessageFailed}

// StatusesBefore statuses a stored message may hold for next to be applied
func StatusesBefore(next MessageStatus) []MessageStatus {
	var out []MessageStatus
	for _, s := range statusOrder {
		if s.Advances(next) {
			out = append(out, s)
		}
	}
	return out
}

// MessageSource who produced the message
type MessageSource string

const (
	SourceContact MessageSource = "contact"
	SourceAI      MessageSource = "ai"
	SourceHuman   MessageSource = "human"
	SourceCRM     MessageSource = "crm"
	SourceAPI     MessageSource = "api"

	// SourceDevice typed on the phone itself, echoed back by the provider
	SourceDevice MessageSource = "device"
)

// ParseMessageSource normalizes caller supplied sources
func ParseMessageSource(s string) MessageSource {
	switch s {
	case "ai", "bot", "assistant":
		return SourceAI
	case "human", "operator", "agent", "user":
		return SourceHuman
	case "crm", "bitrix", "bitrix24":
		return SourceCRM
	case "device":
		return SourceDevice
	default:
		return SourceAPI
	}
}

type Message struct {
	BaseModel

	WorkspaceID    uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	InstanceID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_messages_instance_wamid,priority:1" json:"instance_id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`

	// WhatsAppMessageID provider message id; NULLs never collide in the unique index
	WhatsAppMessageID *string `gorm:"column:whatsapp_message_id;size:255;uniqueIndex:ux_messages_instance_wamid,priority:2" json:"whatsapp_message_id,omitempty"`

	Direction     MessageDirection  `gorm:"size:20;not null" json:"direction"`
	Type          MessageType       `gorm:"size:20;not null;default:'text'" json:"type"`
	Content       *string           `gorm:"type:text" json:"content,omitempty"`
	MediaURL      *string           `gorm:"type:text" json:"media_url,omitempty"`
	MediaMimeType *string           `gorm:"size:100" json:"media_mime_type,omitempty"`
	Status        MessageStatus     `gorm:"size:20;not null;default:'pending'" json:"status"`
	IsFromBot     bool              `gorm:"default:false" json:"is_from_bot"`
	FromMe        bool              `gorm:"default:false" json:"from_me"`
	Source        MessageSource     `gorm:"size:20;not null;default:'contact'" json:"source"`
	SenderUserID  *uuid.UUID        `gorm:"type:uuid" json:"sender_user_id,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	Transcription *string           `gorm:"type:text" json:"transcription,omitempty"`

	// SentAt provider timestamp for inbound messages, send time for outbound
	SentAt time.Time `gorm:"not null;default:now();index:idx_messages_conversation_created,priority:2" json:"sent_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) IsIncoming() bool { return m.Direction == DirectionIncoming }

// Text content or, for audio, its transcription
func (m *Message) Text() string {
	if m.Content != nil && *m.Content != "" {
		return *m.Content
	}
	if m.Transcription != nil {
		return *m.Transcription
	}
	return ""
}

// Preview text for conversation lists
func (m *Message) Preview() string {
	if text := m.Text(); text != "" {
		return text
	}
	return "[" + string(m.Type) + "]"
}
