package provider

import (
	"context"
	"strings"
	"time"

	"whatsdesk/internal/config"
	"whatsdesk/internal/models"

	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// ===========================================================================
// W-API
// Webhook events: webhookReceived (inbound), webhookDelivery (sent from the
// phone or the API), webhookStatus, webhookConnected, webhookDisconnected
// ===========================================================================

type WAPI struct {
	restBase
}

func NewWAPI(endpoint config.ProviderEndpoint, timeout time.Duration, logger *zap.Logger) *WAPI {
	return &WAPI{restBase: newRestBase(endpoint, timeout, logger.Named("wapi"))}
}

func (w *WAPI) Type() models.ProviderType { return models.ProviderWAPI }

func (w *WAPI) Normalize(ctx context.Context, payload map[string]interface{}) (*Event, error) {
	rawType := str(payload, "event")

	var ev *Event
	switch strings.ToLower(rawType) {
	case "webhookreceived", "webhookdelivery":
		ev = w.normalizeMessage(rawType, payload)
	case "webhookstatus", "webhookmessagestatus":
		status, ok := ackStatus(str(payload, "status"))
		id := firstStr(payload, []string{"messageId"}, []string{"id"})
		if !ok || id == "" {
			ev = Ignored(rawType, "status without id or known ack")
		} else {
			ev = &Event{Kind: EventStatus, RawType: rawType, MessageID: id, Status: status}
		}
	case "webhookconnected":
		ev = &Event{
			Kind:        EventConnection,
			RawType:     rawType,
			Connection:  models.InstanceConnected,
			PhoneNumber: senderPhone(str(payload, "connectedPhone")),
		}
	case "webhookdisconnected":
		ev = &Event{Kind: EventConnection, RawType: rawType, Connection: models.InstanceDisconnected}
	default:
		ev = Ignored(rawType, "unhandled event")
	}

	ev.InstanceRef = str(payload, "instanceId")
	return ev, nil
}

func (w *WAPI) normalizeMessage(rawType string, payload map[string]interface{}) *Event {
	if boolean(payload, "isGroup") {
		return Ignored(rawType, "group message")
	}

	fromMe := boolean(payload, "fromMe")
	// on own messages the chat is the contact, on inbound ones the sender is
	ph := senderPhone(firstStr(payload, []string{"chat", "id"}, []string{"sender", "id"}))
	if ph == "" {
		return Ignored(rawType, "unknown chat")
	}

	c, ok := parseBaileysContent(obj(payload, "msgContent"))
	if !ok {
		return Ignored(rawType, "unsupported message content")
	}

	ev := &Event{
		Kind:      EventMessage,
		RawType:   rawType,
		MessageID: str(payload, "messageId"),
		FromMe:    fromMe,
		Phone:     ph,
		Type:      c.Type,
		Text:      c.Text,
		MediaURL:  c.MediaURL,
		MimeType:  c.MimeType,
		FileName:  c.FileName,
		Timestamp: unixTime(lookup(payload, "moment")),
	}
	if !fromMe {
		ev.PushName = str(payload, "sender", "pushName")
		ev.ProfilePicture = str(payload, "sender", "profilePicture")
	}
	return ev
}

// ===========================================================================
// Send
// ===========================================================================

type wapiSendResponse struct {
	MessageID  string `json:"messageId"`
	InsertedID string `json:"insertedId"`
}

func (w *WAPI) Send(ctx context.Context, inst *models.Instance, msg *OutboundMessage) (*SendResult, error) {
	if err := requireText(msg); err != nil {
		return nil, err
	}

	body := map[string]interface{}{"phone": msg.Phone}
	var path string

	switch msg.Type {
	case models.TypeText:
		path = "/v1/message/send-text"
		body["message"] = msg.Text
	case models.TypeImage, models.TypeSticker:
		path = "/v1/message/send-image"
		body["image"] = msg.MediaURL
		body["caption"] = msg.Body()
	case models.TypeAudio:
		path = "/v1/message/send-audio"
		body["audio"] = msg.MediaURL
	case models.TypeVideo:
		path = "/v1/message/send-video"
		body["video"] = msg.MediaURL
		body["caption"] = msg.Body()
	default:
		path = "/v1/message/send-document"
		body["document"] = msg.MediaURL
		body["caption"] = msg.Body()
		if msg.FileName != "" {
			body["fileName"] = msg.FileName
			if i := strings.LastIndexByte(msg.FileName, '.'); i >= 0 {
				body["extension"] = msg.FileName[i+1:]
			}
		}
	}

	var out wapiSendResponse
	resp, err := w.http.R().
		SetContext(ctx).
		SetAuthToken(w.token(inst)).
		SetQueryParam("instanceId", inst.ExternalID).
		SetBody(body).
		SetResult(&out).
		Post(w.baseURL(inst) + path)
	if err := w.check("wapi send", resp, err); err != nil {
		return nil, err
	}

	id := out.MessageID
	if id == "" {
		id = out.InsertedID
	}
	return &SendResult{MessageID: id}, nil
}

// ===========================================================================
// Connection
// ===========================================================================

func (w *WAPI) ConnectionState(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error) {
	var out map[string]interface{}
	resp, err := w.http.R().
		SetContext(ctx).
		SetAuthToken(w.token(inst)).
		SetQueryParam("instanceId", inst.ExternalID).
		SetResult(&out).
		Get(w.baseURL(inst) + "/v1/instance/status-instance")
	if err := w.check("wapi status", resp, err); err != nil {
		return nil, err
	}

	status := models.InstanceDisconnected
	if cast.ToBool(out["connected"]) {
		status = models.InstanceConnected
	}
	return &ConnectionInfo{Status: status, PhoneNumber: senderPhone(str(out, "connectedPhone"))}, nil
}

func (w *WAPI) Connect(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error) {
	var out map[string]interface{}
	resp, err := w.http.R().
		SetContext(ctx).
		SetAuthToken(w.token(inst)).
		SetQueryParams(map[string]string{"instanceId": inst.ExternalID, "image": "disable"}).
		SetResult(&out).
		Get(w.baseURL(inst) + "/v1/instance/qr-code")
	if err := w.check("wapi qr code", resp, err); err != nil {
		return nil, err
	}

	qr := firstStr(out, []string{"qrcode"}, []string{"qrCode"})
	if qr == "" {
		return &ConnectionInfo{Status: models.InstanceConnected}, nil
	}
	return &ConnectionInfo{Status: models.InstanceQRPending, QRCode: qr}, nil
}
