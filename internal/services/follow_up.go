package services

import (
	"context"
	"errors"
	"fmt"

	"whatsdesk/internal/dispatch"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// followUp side effects of a stored message shared by inbound and outbound:
// the dashboard event and the CRM mirror. Both run on the runner when one is
// set, and neither can fail the caller.
type followUp struct {
	publisher realtime.Publisher
	crm       CRMService
	runner    dispatch.Runner
	logger    *zap.Logger
}

func (f *followUp) messageStored(ctx context.Context, conv *models.Conversation, contact *models.Contact, msg *models.Message) {
	f.messagePublished(ctx, conv, contact, msg)

	// CRM originated sends already live in the portal
	if msg.Source != models.SourceCRM {
		f.syncCRM(conv.ID, msg.ID)
	}
}

// messagePublished emits new_message without mirroring to the CRM
func (f *followUp) messagePublished(ctx context.Context, conv *models.Conversation, contact *models.Contact, msg *models.Message) {
	event := &realtime.MessageEvent{
		Type:           realtime.EventNewMessage,
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		InstanceID:     msg.InstanceID,
		Direction:      string(msg.Direction),
		MessageType:    string(msg.Type),
		Source:         string(msg.Source),
		Content:        msg.Preview(),
		CreatedAt:      msg.SentAt,
	}
	if contact != nil {
		event.ContactName = contact.DisplayName()
		event.ContactPhone = contact.Phone
	}
	workspaceID := conv.WorkspaceID
	f.publish(ctx, "publish-new-message", func(ctx context.Context) error {
		if err := f.publisher.PublishNewMessage(ctx, workspaceID, event); err != nil {
			return fmt.Errorf("publish new_message %s: %w", event.MessageID, err)
		}
		return nil
	})
}

// publish hands fn to the runner, off the caller's request. Without a runner
// it runs on ctx and only logs failures.
func (f *followUp) publish(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if f.runner != nil {
		f.runner.Submit(name, fn)
		return
	}
	if err := fn(ctx); err != nil {
		f.logger.Warn("realtime publish failed", zap.String("task", name), zap.Error(err))
	}
}

func (f *followUp) syncCRM(conversationID, messageID uuid.UUID) {
	if f.crm == nil || f.runner == nil {
		return
	}
	f.runner.Submit("bitrix-sync", func(ctx context.Context) error {
		_, err := f.crm.SyncMessage(ctx, conversationID, messageID)
		if errors.Is(err, apperrors.ErrSkipped) {
			return nil
		}
		return err
	})
}

func (f *followUp) conversationChanged(ctx context.Context, conv *models.Conversation) {
	event := &realtime.ConversationEvent{
		Type:           realtime.EventConversationUpdate,
		ConversationID: conv.ID,
		Status:         string(conv.Status),
		AttendanceMode: string(conv.AttendanceMode),
		UnreadCount:    conv.UnreadCount,
	}
	if conv.AssignedTo != nil {
		event.AssignedTo = conv.AssignedTo.String()
	}
	workspaceID := conv.WorkspaceID
	f.publish(ctx, "publish-conversation-update", func(ctx context.Context) error {
		if err := f.publisher.PublishConversationUpdate(ctx, workspaceID, event); err != nil {
			return fmt.Errorf("publish conversation_update %s: %w", event.ConversationID, err)
		}
		return nil
	})
}

func (f *followUp) instanceChanged(ctx context.Context, inst *models.Instance) {
	event := &realtime.InstanceEvent{
		Type:        realtime.EventInstanceUpdate,
		InstanceID:  inst.ID,
		Status:      string(inst.Status),
		PhoneNumber: inst.PhoneNumber,
		HasQRCode:   inst.QRCode != "",
	}
	workspaceID := inst.WorkspaceID
	f.publish(ctx, "publish-instance-update", func(ctx context.Context) error {
		if err := f.publisher.PublishInstanceUpdate(ctx, workspaceID, event); err != nil {
			return fmt.Errorf("publish instance_update %s: %w", event.InstanceID, err)
		}
		return nil
	})
}
