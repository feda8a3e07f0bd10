package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"whatsdesk/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Centrifugo Client
// Publish dashboard live updates to the workspace channel
// ===========================================================================

const (
	EventNewMessage         = "new_message"
	EventConversationUpdate = "conversation_update"
	EventInstanceUpdate     = "instance_update"
)

// Publisher interface for realtime events
type Publisher interface {
	PublishNewMessage(ctx context.Context, workspaceID uuid.UUID, event *MessageEvent) error
	PublishConversationUpdate(ctx context.Context, workspaceID uuid.UUID, event *ConversationEvent) error
	PublishInstanceUpdate(ctx context.Context, workspaceID uuid.UUID, event *InstanceEvent) error
}

// MessageEvent a message was stored (inbound or outbound)
type MessageEvent struct {
	Type           string    `json:"type"`
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	InstanceID     uuid.UUID `json:"instance_id"`
	Direction      string    `json:"direction"`
	MessageType    string    `json:"message_type"`
	Source         string    `json:"source"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`

	ContactName  string `json:"contact_name,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// ConversationEvent status, attendance or assignment changed
type ConversationEvent struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Status         string    `json:"status,omitempty"`
	AttendanceMode string    `json:"attendance_mode,omitempty"`
	AssignedTo     string    `json:"assigned_to,omitempty"`
	UnreadCount    int       `json:"unread_count"`
}

// InstanceEvent connection state or pairing QR changed
type InstanceEvent struct {
	Type        string    `json:"type"`
	InstanceID  uuid.UUID `json:"instance_id"`
	Status      string    `json:"status"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	HasQRCode   bool      `json:"has_qr_code"`
}

// CentrifugoClient implements Publisher over the Centrifugo HTTP API
type CentrifugoClient struct {
	http *resty.Client
	log  *zap.Logger
}

func NewCentrifugoClient(cfg config.CentrifugoConfig, log *zap.Logger) *CentrifugoClient {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "apikey "+cfg.APIKey)

	return &CentrifugoClient{
		http: httpClient,
		log:  log,
	}
}

// New picks the Centrifugo client when configured, the noop publisher otherwise
func New(cfg config.CentrifugoConfig, log *zap.Logger) Publisher {
	if cfg.URL == "" {
		return NewNoopPublisher()
	}
	return NewCentrifugoClient(cfg, log)
}

type publishRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

type publishParams struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}

// WorkspaceChannel channel the dashboard of a workspace subscribes to
func WorkspaceChannel(workspaceID uuid.UUID) string {
	return fmt.Sprintf("chat:workspace_%s", workspaceID.String())
}

func (c *CentrifugoClient) publish(ctx context.Context, channel string, data interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(publishRequest{
			Method: "publish",
			Params: publishParams{Channel: channel, Data: data},
		}).
		Post("/api")
	if err != nil {
		c.log.Warn("centrifugo publish failed", zap.Error(err))
		return fmt.Errorf("http request: %w", err)
	}

	if resp.IsError() {
		c.log.Warn("centrifugo publish bad status",
			zap.Int("status", resp.StatusCode()),
			zap.String("channel", channel),
		)
		return fmt.Errorf("bad status: %d", resp.StatusCode())
	}

	c.log.Debug("published to centrifugo",
		zap.String("channel", channel),
	)

	return nil
}

func (c *CentrifugoClient) PublishNewMessage(ctx context.Context, workspaceID uuid.UUID, event *MessageEvent) error {
	event.Type = EventNewMessage
	return c.publish(ctx, WorkspaceChannel(workspaceID), event)
}

func (c *CentrifugoClient) PublishConversationUpdate(ctx context.Context, workspaceID uuid.UUID, event *ConversationEvent) error {
	event.Type = EventConversationUpdate
	return c.publish(ctx, WorkspaceChannel(workspaceID), event)
}

func (c *CentrifugoClient) PublishInstanceUpdate(ctx context.Context, workspaceID uuid.UUID, event *InstanceEvent) error {
	event.Type = EventInstanceUpdate
	return c.publish(ctx, WorkspaceChannel(workspaceID), event)
}

// ===========================================================================
// Noop Publisher (for when Centrifugo is not configured)
// ===========================================================================

type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (n *NoopPublisher) PublishNewMessage(ctx context.Context, workspaceID uuid.UUID, event *MessageEvent) error {
	return nil
}

func (n *NoopPublisher) PublishConversationUpdate(ctx context.Context, workspaceID uuid.UUID, event *ConversationEvent) error {
	return nil
}

func (n *NoopPublisher) PublishInstanceUpdate(ctx context.Context, workspaceID uuid.UUID, event *InstanceEvent) error {
	return nil
}
