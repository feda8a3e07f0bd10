package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/internal/phone"

	"go.uber.org/zap"
)

// ===========================================================================
// MockProvider
// In-memory provider for tests and local development. Records every sent
// message; the webhook body is a flat JSON object:
//
//	{
//	    "phone": "5511988887777",
//	    "push_name": "Test User",
//	    "message": "Hello",
//	    "message_id": "msg_001",
//	    "type": "text",
//	    "from_me": false
//	}
// ===========================================================================

type MockProvider struct {
	typ    models.ProviderType
	logger *zap.Logger

	mu           sync.Mutex
	sentMessages []*OutboundMessage
	seq          int

	// SendErr when set, Send fails with it
	SendErr error
	// State returned by ConnectionState and Connect
	State ConnectionInfo
}

// NewMockProvider registers under typ so tests can stand in for any real provider
func NewMockProvider(typ models.ProviderType, logger *zap.Logger) *MockProvider {
	return &MockProvider{
		typ:    typ,
		logger: logger,
		State:  ConnectionInfo{Status: models.InstanceConnected},
	}
}

func (m *MockProvider) Type() models.ProviderType { return m.typ }

func (m *MockProvider) Normalize(ctx context.Context, payload map[string]interface{}) (*Event, error) {
	if status := str(payload, "status"); status != "" {
		st, ok := ackStatus(status)
		if !ok {
			return Ignored("status", "unknown ack"), nil
		}
		return &Event{
			Kind:        EventStatus,
			RawType:     "status",
			InstanceRef: str(payload, "instance"),
			MessageID:   str(payload, "message_id"),
			Status:      st,
		}, nil
	}

	ph := phone.Normalize(str(payload, "phone"))
	if ph == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "mock payload missing 'phone'")
	}

	messageID := str(payload, "message_id")
	if messageID == "" {
		messageID = fmt.Sprintf("mock_%s_%d", ph, time.Now().UnixNano())
	}

	return &Event{
		Kind:        EventMessage,
		RawType:     "message",
		InstanceRef: str(payload, "instance"),
		MessageID:   messageID,
		FromMe:      boolean(payload, "from_me"),
		Phone:       ph,
		PushName:    str(payload, "push_name"),
		Type:        models.ParseMessageType(str(payload, "type")),
		Text:        str(payload, "message"),
		MediaURL:    str(payload, "media_url"),
		Timestamp:   unixTime(lookup(payload, "timestamp")),
	}, nil
}

func (m *MockProvider) Send(ctx context.Context, inst *models.Instance, msg *OutboundMessage) (*SendResult, error) {
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	if err := requireText(msg); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.seq++
	messageID := fmt.Sprintf("mock_sent_%d", m.seq)
	m.sentMessages = append(m.sentMessages, msg)
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Debug("mock provider sent message",
			zap.String("phone", msg.Phone),
			zap.String("message_id", messageID),
		)
	}
	return &SendResult{MessageID: messageID}, nil
}

func (m *MockProvider) ConnectionState(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error) {
	state := m.State
	return &state, nil
}

func (m *MockProvider) Connect(ctx context.Context, inst *models.Instance) (*ConnectionInfo, error) {
	state := m.State
	return &state, nil
}

// ===========================================================================
// Testing helpers
// ===========================================================================

func (m *MockProvider) SentMessages() []*OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*OutboundMessage, len(m.sentMessages))
	copy(out, m.sentMessages)
	return out
}

func (m *MockProvider) LastSentMessage() *OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sentMessages) == 0 {
		return nil
	}
	return m.sentMessages[len(m.sentMessages)-1]
}
