package dto

import (
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// ===========================================================================
// Pagination
// ===========================================================================

// PaginationRequest page/limit query params for list endpoints
type PaginationRequest struct {
	Page  int `form:"page" binding:"min=0"`
	Limit int `form:"limit" binding:"min=0,max=100"`
}

// SetDefaults fills page 1 / limit 20
func (p *PaginationRequest) SetDefaults() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
}

func (p *PaginationRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ===========================================================================
// Send parameters
// Callers of the send function (dashboard, AI responder, CRM bridge, third
// party automations) disagree on naming, so the body is read as a loose map
// and every field is looked up under all of its known aliases
// ===========================================================================

// SendParams is the normalized send-message request
type SendParams struct {
	InstanceID     uuid.UUID
	ConversationID uuid.UUID
	UserID         uuid.UUID
	Phone          string
	Text           string
	Type           string
	MediaURL       string
	MimeType       string
	FileName       string
	Caption        string
	Source         string
}

var sendParamAliases = map[string][]string{
	"instance_id":     {"instance_id", "instanceId", "instance"},
	"conversation_id": {"conversation_id", "conversationId"},
	"user_id":         {"user_id", "userId"},
	"phone":           {"phone", "number", "to", "phone_number", "phoneNumber"},
	"text":            {"message", "text", "content", "body"},
	"type":            {"type", "message_type", "messageType"},
	"media_url":       {"media_url", "mediaUrl", "url", "file_url", "fileUrl"},
	"mime_type":       {"mime_type", "mimeType", "mimetype"},
	"file_name":       {"file_name", "fileName", "filename"},
	"caption":         {"caption"},
	"source":          {"source", "sender_type", "senderType"},
}

// NormalizeSendParams reads a loosely named send body. Values of any JSON
// type are coerced to strings (phones frequently arrive as numbers).
func NormalizeSendParams(body map[string]interface{}) SendParams {
	get := func(field string) string {
		for _, key := range sendParamAliases[field] {
			if v, ok := body[key]; ok && v != nil {
				if s := strings.TrimSpace(cast.ToString(v)); s != "" {
					return s
				}
			}
		}
		return ""
	}
	parseID := func(field string) uuid.UUID {
		id, err := uuid.Parse(get(field))
		if err != nil {
			return uuid.Nil
		}
		return id
	}

	params := SendParams{
		InstanceID:     parseID("instance_id"),
		ConversationID: parseID("conversation_id"),
		UserID:         parseID("user_id"),
		Phone:          get("phone"),
		Text:           get("text"),
		Type:           strings.ToLower(get("type")),
		MediaURL:       get("media_url"),
		MimeType:       get("mime_type"),
		FileName:       get("file_name"),
		Caption:        get("caption"),
		Source:         strings.ToLower(get("source")),
	}
	if params.Type == "" {
		params.Type = "text"
		if params.MediaURL != "" {
			params.Type = "document"
		}
	}
	return params
}

// LookupString returns the first non-empty value among keys, coerced to string
func LookupString(body map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := body[key]; ok && v != nil {
			if s := strings.TrimSpace(cast.ToString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// LookupUUID is LookupString parsed as a uuid (uuid.Nil when absent or malformed)
func LookupUUID(body map[string]interface{}, keys ...string) uuid.UUID {
	id, err := uuid.Parse(LookupString(body, keys...))
	if err != nil {
		return uuid.Nil
	}
	return id
}
