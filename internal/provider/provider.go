// Package provider adapts hosted WhatsApp APIs (Evolution, W-API,
// APIBrasil, Gupshup) to one inbound event shape and one send call.
package provider

import (
	"context"
	"time"

	"whatsdesk/internal/models"
)

// ===========================================================================
// Normalized shapes
// ===========================================================================

type EventKind string

const (
	EventMessage    EventKind = "message"
	EventStatus     EventKind = "status"
	EventConnection EventKind = "connection"
	EventQRCode     EventKind = "qrcode"
	EventIgnored    EventKind = "ignored"
)

// Event one webhook delivery reduced to what the ingestion pipeline needs
type Event struct {
	Kind EventKind

	// RawType provider event name, kept for the webhook log
	RawType string

	// InstanceRef provider side instance identifier named in the payload, if any
	InstanceRef string

	// Message fields
	MessageID      string
	FromMe         bool
	Phone          string
	PushName       string
	ProfilePicture string
	Type           models.MessageType
	Text           string
	MediaURL       string
	MimeType       string
	FileName       string
	Timestamp      time.Time

	// Status fields (MessageID names the message)
	Status models.MessageStatus

	// Connection and QR fields
	Connection  models.InstanceStatus
	PhoneNumber string
	QRCode      string

	// Reason why an event was ignored
	Reason string
}

// Ignored builds an EventIgnored
func Ignored(rawType, reason string) *Event {
	return &Event{Kind: EventIgnored, RawType: rawType, Reason: reason}
}

// OutboundMessage what to deliver. MediaURL may be an http(s) URL or a base64 data URL.
type OutboundMessage struct {
	Phone    string
	Type     models.MessageType
	Text     string
	MediaURL string
	MimeType string
	FileName string
	Caption  string
}

// Body text shown to the recipient: the text, or the caption for media
func (m *OutboundMessage) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

type SendResult struct {
	// MessageID provider id of the sent message, used for echo suppression and status events
	MessageID string
}

// ConnectionInfo provider view of the WhatsApp session
type ConnectionInfo struct {
	Status      models.InstanceStatus
	PhoneNumber string
	QRCode      string
}

// ===========================================================================
// Interfaces
// ===========================================================================

// Normalizer turns a provider webhook body into an Event
type Normalizer interface {
	Normalize(ctx context.Context, payload map[string]interface{}) (*Event, error)
}

// Sender delivers one message through the instance's provider account
type Sender interface {
	Send(ctx context.Context, inst *models.Instance, msg *OutboundMessage) (*SendResult, error)
}

// Connector session management
type Connector interface {
	ConnectionState(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error)

	// Connect asks for a new pairing QR code
	Connect(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error)
}

// Provider is one hosted WhatsApp API
type Provider interface {
	Normalizer
	Sender
	Connector

	Type() models.ProviderType
}
