package provider

import (
	"context"
	"strings"
	"time"

	"whatsdesk/internal/config"
	"whatsdesk/internal/models"

	"go.uber.org/zap"
)

// ===========================================================================
// APIBrasil WhatsApp v2
// Two webhook shapes exist: the "wook" envelope of the classic gateway
// (RECEIVE_MESSAGE, MESSAGE_STATUS, STATUS_CONNECT, QRCODE) and the Baileys
// envelope ({"event": "...", "data": {"key": ..., "message": ...}})
// ===========================================================================

type APIBrasil struct {
	restBase
}

func NewAPIBrasil(endpoint config.ProviderEndpoint, timeout time.Duration, logger *zap.Logger) *APIBrasil {
	return &APIBrasil{restBase: newRestBase(endpoint, timeout, logger.Named("apibrasil"))}
}

func (a *APIBrasil) Type() models.ProviderType { return models.ProviderAPIBrasil }

func (a *APIBrasil) Normalize(ctx context.Context, payload map[string]interface{}) (*Event, error) {
	var ev *Event
	if wook := str(payload, "wook"); wook != "" {
		ev = a.normalizeWook(wook, payload)
	} else {
		ev = a.normalizeBaileys(payload)
	}
	if ev.InstanceRef == "" {
		ev.InstanceRef = firstStr(payload, []string{"device_token"}, []string{"session"}, []string{"instance"})
	}
	return ev, nil
}

func (a *APIBrasil) normalizeWook(wook string, payload map[string]interface{}) *Event {
	switch strings.ToUpper(wook) {
	case "RECEIVE_MESSAGE", "SEND_MESSAGE":
		if boolean(payload, "isGroupMsg") {
			return Ignored(wook, "group message")
		}
		fromMe := boolean(payload, "fromMe")
		jid := str(payload, "from")
		if fromMe {
			jid = str(payload, "to")
		}
		ph := senderPhone(jid)
		if ph == "" {
			return Ignored(wook, "unknown chat")
		}

		typ := models.ParseMessageType(strings.ToLower(str(payload, "type")))
		text := firstStr(payload, []string{"body"}, []string{"content"}, []string{"text"})
		ev := &Event{
			Kind:      EventMessage,
			RawType:   wook,
			MessageID: firstStr(payload, []string{"id"}, []string{"messageId"}),
			FromMe:    fromMe,
			Phone:     ph,
			Type:      typ,
			Text:      text,
			Timestamp: unixTime(firstStr(payload, []string{"timestamp"}, []string{"t"})),
		}
		if typ.IsMedia() {
			ev.Text = str(payload, "caption")
			ev.MediaURL = firstStr(payload, []string{"fileUrl"}, []string{"mediaUrl"}, []string{"url"})
			ev.MimeType = str(payload, "mimetype")
			ev.FileName = firstStr(payload, []string{"filename"}, []string{"fileName"})
		}
		if !fromMe {
			ev.PushName = firstStr(payload, []string{"sender", "pushname"}, []string{"notifyName"})
			ev.ProfilePicture = str(payload, "sender", "profilePicThumbObj", "eurl")
		}
		return ev

	case "MESSAGE_STATUS":
		status, ok := ackStatus(firstStr(payload, []string{"status"}, []string{"ack"}))
		id := firstStr(payload, []string{"id"}, []string{"messageId"})
		if !ok || id == "" {
			return Ignored(wook, "status without id or known ack")
		}
		return &Event{Kind: EventStatus, RawType: wook, MessageID: id, Status: status}

	case "STATUS_CONNECT", "CONNECTION":
		return &Event{
			Kind:        EventConnection,
			RawType:     wook,
			Connection:  connectionStatus(firstStr(payload, []string{"status"}, []string{"state"})),
			PhoneNumber: senderPhone(str(payload, "number")),
		}

	case "QRCODE":
		qr := firstStr(payload, []string{"qrcode"}, []string{"urlCode"})
		if qr == "" {
			return Ignored(wook, "empty qrcode")
		}
		return &Event{Kind: EventQRCode, RawType: wook, QRCode: qr, Connection: models.InstanceQRPending}

	default:
		return Ignored(wook, "unhandled event")
	}
}

func (a *APIBrasil) normalizeBaileys(payload map[string]interface{}) *Event {
	rawType := str(payload, "event")
	data := obj(payload, "data")
	if data == nil || obj(data, "key") == nil {
		return Ignored(rawType, "no message key")
	}

	ph := senderPhone(str(data, "key", "remoteJid"))
	if ph == "" {
		return Ignored(rawType, "group, broadcast or unknown chat")
	}
	c, ok := parseBaileysContent(obj(data, "message"))
	if !ok {
		return Ignored(rawType, "unsupported message content")
	}
	return &Event{
		Kind:        EventMessage,
		RawType:     rawType,
		InstanceRef: str(payload, "device_token"),
		MessageID:   str(data, "key", "id"),
		FromMe:      boolean(data, "key", "fromMe"),
		Phone:       ph,
		PushName:    str(data, "pushName"),
		Type:        c.Type,
		Text:        c.Text,
		MediaURL:    c.MediaURL,
		MimeType:    c.MimeType,
		FileName:    c.FileName,
		Timestamp:   unixTime(lookup(data, "messageTimestamp")),
	}
}

// ===========================================================================
// Send
// ===========================================================================

func (a *APIBrasil) request(ctx context.Context, inst *models.Instance) *restRequest {
	return &restRequest{
		req: a.http.R().
			SetContext(ctx).
			SetAuthToken(a.token(inst)).
			SetHeader("DeviceToken", inst.ExternalID),
		base: a.baseURL(inst) + "/api/v2/whatsapp",
	}
}

func (a *APIBrasil) Send(ctx context.Context, inst *models.Instance, msg *OutboundMessage) (*SendResult, error) {
	if err := requireText(msg); err != nil {
		return nil, err
	}

	body := map[string]interface{}{"number": msg.Phone}
	var path string

	switch msg.Type {
	case models.TypeText:
		path = "/sendText"
		body["text"] = msg.Text
	case models.TypeAudio:
		path = "/sendAudio"
		body["path"] = msg.MediaURL
	default:
		path = "/sendFile"
		body["path"] = msg.MediaURL
		options := map[string]interface{}{}
		if caption := msg.Body(); caption != "" {
			options["caption"] = caption
		}
		if msg.FileName != "" {
			options["filename"] = msg.FileName
		}
		body["options"] = options
	}

	var out map[string]interface{}
	r := a.request(ctx, inst)
	resp, err := r.req.SetBody(body).SetResult(&out).Post(r.base + path)
	if err := a.check("apibrasil send", resp, err); err != nil {
		return nil, err
	}

	id := firstStr(out,
		[]string{"response", "key", "id"},
		[]string{"response", "id"},
		[]string{"response", "messageId"},
		[]string{"key", "id"},
	)
	return &SendResult{MessageID: id}, nil
}

// ===========================================================================
// Connection
// ===========================================================================

func (a *APIBrasil) ConnectionState(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error) {
	var out map[string]interface{}
	r := a.request(ctx, inst)
	resp, err := r.req.SetBody(map[string]interface{}{}).SetResult(&out).Post(r.base + "/getConnectionStatus")
	if err := a.check("apibrasil connection status", resp, err); err != nil {
		return nil, err
	}
	state := firstStr(out, []string{"response", "state"}, []string{"response", "status"}, []string{"state"})
	return &ConnectionInfo{Status: connectionStatus(state)}, nil
}

func (a *APIBrasil) Connect(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error) {
	var out map[string]interface{}
	r := a.request(ctx, inst)
	resp, err := r.req.SetBody(map[string]interface{}{}).SetResult(&out).Post(r.base + "/getQrCode")
	if err := a.check("apibrasil qr code", resp, err); err != nil {
		return nil, err
	}
	qr := firstStr(out, []string{"response", "qrcode"}, []string{"qrcode"}, []string{"response", "urlCode"})
	if qr == "" {
		return &ConnectionInfo{Status: connectionStatus(firstStr(out, []string{"response", "state"}))}, nil
	}
	return &ConnectionInfo{Status: models.InstanceQRPending, QRCode: qr}, nil
}
