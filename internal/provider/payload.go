package provider

import (
	"strings"
	"time"

	"whatsdesk/internal/models"
	"whatsdesk/internal/phone"

	"github.com/spf13/cast"
)

// ===========================================================================
// Loose payload access
// Provider bodies are decoded into map[string]interface{}; these helpers
// walk them without panicking on missing or mistyped keys
// ===========================================================================

func lookup(m map[string]interface{}, path ...string) interface{} {
	var cur interface{} = m
	for _, key := range path {
		node, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = node[key]
	}
	return cur
}

func str(m map[string]interface{}, path ...string) string {
	v := lookup(m, path...)
	if v == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

func boolean(m map[string]interface{}, path ...string) bool {
	return cast.ToBool(lookup(m, path...))
}

func obj(m map[string]interface{}, path ...string) map[string]interface{} {
	node, _ := lookup(m, path...).(map[string]interface{})
	return node
}

// firstStr first non-empty value among several paths
func firstStr(m map[string]interface{}, paths ...[]string) string {
	for _, p := range paths {
		if s := str(m, p...); s != "" {
			return s
		}
	}
	return ""
}

// unixTime accepts seconds or milliseconds. A missing value is the zero
// time; the ingest service stamps those with its own clock.
func unixTime(v interface{}) time.Time {
	n := cast.ToInt64(v)
	switch {
	case n <= 0:
		return time.Time{}
	case n > 1e12:
		return time.UnixMilli(n)
	default:
		return time.Unix(n, 0)
	}
}

// ===========================================================================
// Baileys message content
// Evolution, W-API and APIBrasil all forward the Baileys "message" object
// ===========================================================================

type content struct {
	Type     models.MessageType
	Text     string
	MediaURL string
	MimeType string
	FileName string
}

var baileysMediaKeys = []struct {
	key string
	typ models.MessageType
}{
	{"imageMessage", models.TypeImage},
	{"audioMessage", models.TypeAudio},
	{"videoMessage", models.TypeVideo},
	{"documentMessage", models.TypeDocument},
	{"documentWithCaptionMessage", models.TypeDocument},
	{"stickerMessage", models.TypeSticker},
}

// parseBaileysContent reads a Baileys message object; ok is false when it
// holds nothing this system stores (reactions, protocol messages, polls)
func parseBaileysContent(msg map[string]interface{}) (content, bool) {
	if msg == nil {
		return content{}, false
	}
	if text := firstStr(msg, []string{"conversation"}, []string{"extendedTextMessage", "text"}); text != "" {
		return content{Type: models.TypeText, Text: text}, true
	}

	for _, mk := range baileysMediaKeys {
		media := obj(msg, mk.key)
		if media == nil {
			continue
		}
		// documentWithCaptionMessage nests the real document one level down
		if inner := obj(media, "message", "documentMessage"); inner != nil {
			media = inner
		}
		c := content{
			Type:     mk.typ,
			Text:     str(media, "caption"),
			MimeType: str(media, "mimetype"),
			FileName: firstStr(media, []string{"fileName"}, []string{"title"}),
		}
		c.MediaURL = mediaLocation(msg, media, c.MimeType)
		return c, true
	}

	if text := firstStr(msg, []string{"buttonsResponseMessage", "selectedDisplayText"},
		[]string{"listResponseMessage", "title"},
		[]string{"templateButtonReplyMessage", "selectedDisplayText"}); text != "" {
		return content{Type: models.TypeText, Text: text}, true
	}
	return content{}, false
}

// mediaLocation prefers an uploaded copy (mediaUrl), then inline base64 as
// a data URL, then the encrypted WhatsApp CDN url
func mediaLocation(msg, media map[string]interface{}, mimeType string) string {
	if u := str(msg, "mediaUrl"); u != "" {
		return u
	}
	if b64 := str(msg, "base64"); b64 != "" {
		if strings.HasPrefix(b64, "data:") {
			return b64
		}
		mime := mimeType
		if i := strings.IndexByte(mime, ';'); i >= 0 {
			mime = mime[:i]
		}
		if mime == "" {
			mime = "application/octet-stream"
		}
		return "data:" + mime + ";base64," + b64
	}
	return str(media, "url")
}

// ===========================================================================
// Shared mappings
// ===========================================================================

// senderPhone normalized phone of a chat address, "" for groups and broadcasts
func senderPhone(jid string) string {
	if jid == "" || phone.IsGroup(jid) || phone.IsBroadcast(jid) {
		return ""
	}
	return phone.Normalize(jid)
}

// ackStatus maps provider delivery acks (names or Baileys numeric codes)
func ackStatus(v string) (models.MessageStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "SERVER_ACK", "SENT", "2", "ENQUEUED":
		return models.MessageSent, true
	case "DELIVERY_ACK", "DELIVERY", "DELIVERED", "RECEIVED", "3":
		return models.MessageDelivered, true
	case "READ", "PLAYED", "VIEWED", "4", "5":
		return models.MessageRead, true
	case "ERROR", "FAILED", "0":
		return models.MessageFailed, true
	default:
		return "", false
	}
}

// connectionStatus maps session states ("open", "close", "connecting"...)
func connectionStatus(v string) models.InstanceStatus {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "open", "connected", "inchat", "islogged", "online", "true":
		return models.InstanceConnected
	case "connecting", "pairing", "opening":
		return models.InstanceConnecting
	case "qr", "qrcode", "qr_pending", "notlogged", "desconnectedmobile":
		return models.InstanceQRPending
	default:
		return models.InstanceDisconnected
	}
}
