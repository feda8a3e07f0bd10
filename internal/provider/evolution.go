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
// Evolution API (v1 and v2)
// Webhook events: messages.upsert, messages.update, connection.update,
// qrcode.updated. v1 uses upper snake case names (MESSAGES_UPSERT)
// ===========================================================================

type Evolution struct {
	restBase
}

func NewEvolution(endpoint config.ProviderEndpoint, timeout time.Duration, logger *zap.Logger) *Evolution {
	return &Evolution{restBase: newRestBase(endpoint, timeout, logger.Named("evolution"))}
}

func (e *Evolution) Type() models.ProviderType { return models.ProviderEvolution }

func evolutionEventName(raw string) string {
	return strings.ReplaceAll(strings.ToLower(raw), "_", ".")
}

func (e *Evolution) Normalize(ctx context.Context, payload map[string]interface{}) (*Event, error) {
	rawType := str(payload, "event")
	instanceRef := str(payload, "instance")
	data := obj(payload, "data")

	var ev *Event
	switch evolutionEventName(rawType) {
	case "messages.upsert":
		ev = e.normalizeMessage(rawType, data)
	case "messages.update":
		ev = e.normalizeStatus(rawType, data)
	case "connection.update":
		ev = &Event{
			Kind:        EventConnection,
			RawType:     rawType,
			Connection:  connectionStatus(str(data, "state")),
			PhoneNumber: senderPhone(str(data, "wuid")),
		}
	case "qrcode.updated":
		qr := firstStr(data, []string{"qrcode", "code"}, []string{"qrcode", "base64"})
		if qr == "" {
			ev = Ignored(rawType, "empty qrcode")
		} else {
			ev = &Event{Kind: EventQRCode, RawType: rawType, QRCode: qr, Connection: models.InstanceQRPending}
		}
	default:
		ev = Ignored(rawType, "unhandled event")
	}

	ev.InstanceRef = instanceRef
	return ev, nil
}

func (e *Evolution) normalizeMessage(rawType string, data map[string]interface{}) *Event {
	jid := str(data, "key", "remoteJid")
	// addressing mode "lid" puts the phone in remoteJidAlt
	if strings.HasSuffix(jid, "@lid") {
		jid = firstStr(data, []string{"key", "remoteJidAlt"}, []string{"key", "senderPn"})
	}
	ph := senderPhone(jid)
	if ph == "" {
		return Ignored(rawType, "group, broadcast or unknown chat")
	}

	c, ok := parseBaileysContent(obj(data, "message"))
	if !ok {
		return Ignored(rawType, "unsupported message content")
	}

	return &Event{
		Kind:      EventMessage,
		RawType:   rawType,
		MessageID: str(data, "key", "id"),
		FromMe:    boolean(data, "key", "fromMe"),
		Phone:     ph,
		PushName:  str(data, "pushName"),
		Type:      c.Type,
		Text:      c.Text,
		MediaURL:  c.MediaURL,
		MimeType:  c.MimeType,
		FileName:  c.FileName,
		Timestamp: unixTime(lookup(data, "messageTimestamp")),
	}
}

func (e *Evolution) normalizeStatus(rawType string, data map[string]interface{}) *Event {
	id := firstStr(data, []string{"keyId"}, []string{"key", "id"}, []string{"id"})
	status, ok := ackStatus(firstStr(data, []string{"status"}, []string{"update", "status"}))
	if id == "" || !ok {
		return Ignored(rawType, "status without id or known ack")
	}
	return &Event{Kind: EventStatus, RawType: rawType, MessageID: id, Status: status}
}

// ===========================================================================
// Send
// ===========================================================================

type evolutionSendResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

func (e *Evolution) Send(ctx context.Context, inst *models.Instance, msg *OutboundMessage) (*SendResult, error) {
	if err := requireText(msg); err != nil {
		return nil, err
	}

	var path string
	body := map[string]interface{}{"number": msg.Phone}

	switch msg.Type {
	case models.TypeText:
		path = "/message/sendText/"
		body["text"] = msg.Text
	case models.TypeAudio:
		path = "/message/sendWhatsAppAudio/"
		media, err := rawBase64(msg.MediaURL)
		if err != nil {
			return nil, err
		}
		body["audio"] = media
	default:
		path = "/message/sendMedia/"
		media, err := rawBase64(msg.MediaURL)
		if err != nil {
			return nil, err
		}
		mediatype := string(msg.Type)
		if msg.Type == models.TypeSticker {
			mediatype = string(models.TypeImage)
		}
		body["mediatype"] = mediatype
		body["media"] = media
		body["caption"] = msg.Body()
		if msg.MimeType != "" {
			body["mimetype"] = msg.MimeType
		}
		if msg.FileName != "" {
			body["fileName"] = msg.FileName
		}
	}

	var out evolutionSendResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeader("apikey", e.token(inst)).
		SetBody(body).
		SetResult(&out).
		Post(e.baseURL(inst) + path + inst.ExternalID)
	if err := e.check("evolution send", resp, err); err != nil {
		return nil, err
	}
	return &SendResult{MessageID: out.Key.ID}, nil
}

// ===========================================================================
// Connection
// ===========================================================================

type evolutionStateResponse struct {
	Instance struct {
		State string `json:"state"`
	} `json:"instance"`
	State string `json:"state"`
}

func (e *Evolution) ConnectionState(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error) {
	var out evolutionStateResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeader("apikey", e.token(inst)).
		SetResult(&out).
		Get(e.baseURL(inst) + "/instance/connectionState/" + inst.ExternalID)
	if err := e.check("evolution connection state", resp, err); err != nil {
		return nil, err
	}
	state := out.Instance.State
	if state == "" {
		state = out.State
	}
	return &ConnectionInfo{Status: connectionStatus(state)}, nil
}

type evolutionConnectResponse struct {
	Code        string `json:"code"`
	Base64      string `json:"base64"`
	PairingCode string `json:"pairingCode"`
	Instance    struct {
		State string `json:"state"`
	} `json:"instance"`
}

func (e *Evolution) Connect(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error) {
	var out evolutionConnectResponse
	resp, err := e.http.R().
		SetContext(ctx).
		SetHeader("apikey", e.token(inst)).
		SetResult(&out).
		Get(e.baseURL(inst) + "/instance/connect/" + inst.ExternalID)
	if err := e.check("evolution connect", resp, err); err != nil {
		return nil, err
	}
	if out.Code == "" {
		// already paired: connect answers with the instance state
		return &ConnectionInfo{Status: connectionStatus(out.Instance.State)}, nil
	}
	return &ConnectionInfo{Status: models.InstanceQRPending, QRCode: out.Code}, nil
}
