package provider

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"whatsdesk/internal/config"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"

	"go.uber.org/zap"
)

// ===========================================================================
// Gupshup (WhatsApp Business API)
// Cloud hosted: there is no QR pairing. The instance ExternalID is the
// source number and Name the Gupshup app name
// ===========================================================================

type Gupshup struct {
	restBase
}

func NewGupshup(endpoint config.ProviderEndpoint, timeout time.Duration, logger *zap.Logger) *Gupshup {
	return &Gupshup{restBase: newRestBase(endpoint, timeout, logger.Named("gupshup"))}
}

func (g *Gupshup) Type() models.ProviderType { return models.ProviderGupshup }

var gupshupTypes = map[string]models.MessageType{
	"text":    models.TypeText,
	"image":   models.TypeImage,
	"audio":   models.TypeAudio,
	"voice":   models.TypeAudio,
	"video":   models.TypeVideo,
	"file":    models.TypeDocument,
	"sticker": models.TypeSticker,
}

func (g *Gupshup) Normalize(ctx context.Context, payload map[string]interface{}) (*Event, error) {
	rawType := str(payload, "type")
	inner := obj(payload, "payload")

	var ev *Event
	switch rawType {
	case "message":
		ev = g.normalizeMessage(rawType, inner)
		ev.Timestamp = unixTime(payload["timestamp"])
	case "message-event":
		status, ok := ackStatus(str(inner, "type"))
		id := firstStr(inner, []string{"gsId"}, []string{"id"})
		if !ok || id == "" {
			ev = Ignored(rawType, "status without id or known ack")
		} else {
			ev = &Event{Kind: EventStatus, RawType: rawType, MessageID: id, Status: status}
		}
	default:
		ev = Ignored(rawType, "unhandled event")
	}

	ev.InstanceRef = str(payload, "app")
	return ev, nil
}

func (g *Gupshup) normalizeMessage(rawType string, inner map[string]interface{}) *Event {
	ph := senderPhone(firstStr(inner, []string{"sender", "phone"}, []string{"source"}))
	if ph == "" {
		return Ignored(rawType, "no sender")
	}

	kind := str(inner, "type")
	typ, ok := gupshupTypes[kind]
	if !ok {
		return Ignored(rawType, "unsupported message type "+kind)
	}

	body := obj(inner, "payload")
	ev := &Event{
		Kind:      EventMessage,
		RawType:   rawType,
		MessageID: str(inner, "id"),
		Phone:     ph,
		PushName:  str(inner, "sender", "name"),
		Type:      typ,
	}
	if typ == models.TypeText {
		ev.Text = str(body, "text")
	} else {
		ev.Text = str(body, "caption")
		ev.MediaURL = str(body, "url")
		ev.MimeType = str(body, "contentType")
		ev.FileName = str(body, "name")
	}
	return ev
}

// ===========================================================================
// Send
// ===========================================================================

type gupshupSendResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
}

func gupshupMessage(msg *OutboundMessage) (string, error) {
	if msg.Type != models.TypeText && !strings.HasPrefix(msg.MediaURL, "http") {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "gupshup needs a public media url")
	}

	var m map[string]interface{}
	switch msg.Type {
	case models.TypeText:
		m = map[string]interface{}{"type": "text", "text": msg.Text}
	case models.TypeImage, models.TypeSticker:
		m = map[string]interface{}{"type": "image", "originalUrl": msg.MediaURL, "previewUrl": msg.MediaURL, "caption": msg.Body()}
	case models.TypeAudio:
		m = map[string]interface{}{"type": "audio", "url": msg.MediaURL}
	case models.TypeVideo:
		m = map[string]interface{}{"type": "video", "url": msg.MediaURL, "caption": msg.Body()}
	default:
		m = map[string]interface{}{"type": "file", "url": msg.MediaURL, "filename": msg.FileName}
	}
	raw, err := json.Marshal(m)
	return string(raw), err
}

func (g *Gupshup) Send(ctx context.Context, inst *models.Instance, msg *OutboundMessage) (*SendResult, error) {
	if err := requireText(msg); err != nil {
		return nil, err
	}
	message, err := gupshupMessage(msg)
	if err != nil {
		return nil, err
	}

	var out gupshupSendResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("apikey", g.token(inst)).
		SetFormData(map[string]string{
			"channel":     "whatsapp",
			"source":      inst.ExternalID,
			"destination": msg.Phone,
			"message":     message,
			"src.name":    inst.Name,
		}).
		SetResult(&out).
		Post(g.baseURL(inst) + "/wa/api/v1/msg")
	if err := g.check("gupshup send", resp, err); err != nil {
		return nil, err
	}
	if out.Status != "" && out.Status != "submitted" {
		return nil, apperrors.Wrap(apperrors.ErrExternal, "gupshup send: "+out.Message)
	}
	return &SendResult{MessageID: out.MessageID}, nil
}

// ===========================================================================
// Connection
// ===========================================================================

// ConnectionState the number is always connected through the business API
func (g *Gupshup) ConnectionState(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error) {
	return &ConnectionInfo{Status: models.InstanceConnected, PhoneNumber: inst.ExternalID}, nil
}

func (g *Gupshup) Connect(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error) {
	return nil, apperrors.New(apperrors.ErrInvalidInput, "gupshup numbers are connected in the Gupshup console")
}
