package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"whatsdesk/internal/dispatch"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/internal/phone"
	"whatsdesk/internal/provider"
	"whatsdesk/internal/realtime"
	"whatsdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ===========================================================================
// Outbound Service Implementation
// ===========================================================================

type outboundService struct {
	instanceRepo     repositories.InstanceRepository
	contactRepo      repositories.ContactRepository
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	registry         *provider.Registry
	echo             *EchoCache
	followUp
	now    func() time.Time
	logger *zap.Logger
}

// NewOutboundService crm may be nil when no Bitrix24 client is configured
func NewOutboundService(
	instanceRepo repositories.InstanceRepository,
	contactRepo repositories.ContactRepository,
	conversationRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	registry *provider.Registry,
	echo *EchoCache,
	publisher realtime.Publisher,
	crm CRMService,
	runner dispatch.Runner,
	logger *zap.Logger,
) OutboundService {
	logger = logger.Named("outbound")
	return &outboundService{
		instanceRepo:     instanceRepo,
		contactRepo:      contactRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		registry:         registry,
		echo:             echo,
		followUp: followUp{
			publisher: publisher,
			crm:       crm,
			runner:    runner,
			logger:    logger,
		},
		now:    time.Now,
		logger: logger,
	}
}

func (s *outboundService) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if req.InstanceID == uuid.Nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "instance_id is required")
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" && req.MediaURL == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "message or media_url is required")
	}

	inst, err := s.findInstance(ctx, req)
	if err != nil {
		return nil, err
	}

	conv, err := s.findConversation(ctx, req, inst)
	if err != nil {
		return nil, err
	}

	to := phone.Normalize(req.Phone)
	if to == "" && conv != nil && conv.Contact != nil {
		to = conv.Contact.Phone
	}
	if to == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "phone is required")
	}

	msgType := req.Type
	if msgType == "" {
		msgType = models.TypeText
	}

	prov, err := s.registry.Get(inst.Provider)
	if err != nil {
		return nil, err
	}
	sent, err := prov.Send(ctx, inst, &provider.OutboundMessage{
		Phone:    to,
		Type:     msgType,
		Text:     req.Text,
		MediaURL: req.MediaURL,
		MimeType: req.MimeType,
		FileName: req.FileName,
		Caption:  req.Caption,
	})
	if err != nil {
		s.logger.Warn("provider send failed",
			zap.String("instance_id", inst.ID.String()),
			zap.String("provider", string(inst.Provider)),
			zap.Error(err),
		)
		return nil, err
	}
	s.echo.Remember(inst.ID, sent.MessageID)

	now := s.now()
	msg := s.buildMessage(inst, req, msgType, sent.MessageID, now)

	var contact *models.Contact
	existed := conv != nil
	if existed {
		contact = conv.Contact
	} else {
		contact, conv, err = s.openConversation(ctx, inst, to, msg.Preview(), now)
		if err != nil {
			return nil, fmt.Errorf("message %s sent but conversation not recorded: %w", sent.MessageID, err)
		}
	}
	msg.ConversationID = conv.ID

	inserted, err := s.messageRepo.Insert(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("message %s sent but not recorded: %w", sent.MessageID, err)
	}

	takeover := req.Source == models.SourceHuman
	if existed || takeover {
		if err := s.conversationRepo.TouchOutbound(ctx, conv.ID, msg.Preview(), now, takeover); err != nil {
			s.logger.Warn("failed to touch conversation", zap.String("conversation_id", conv.ID.String()), zap.Error(err))
		}
	}

	result := &SendResult{
		ProviderMessageID: sent.MessageID,
		ConversationID:    conv.ID,
		ContactID:         conv.ContactID,
	}
	if takeover && conv.IsAIMode() {
		conv.AttendanceMode = models.AttendanceHuman
		result.Takeover = true
		s.conversationChanged(ctx, conv)
	}

	if !inserted {
		s.claimEcho(ctx, conv, contact, msg, result)
		return result, nil
	}
	result.MessageID = msg.ID

	s.messageStored(ctx, conv, contact, msg)

	s.logger.Info("message sent",
		zap.String("instance_id", inst.ID.String()),
		zap.String("conversation_id", conv.ID.String()),
		zap.String("source", string(msg.Source)),
		zap.String("type", string(msg.Type)),
	)
	return result, nil
}

// claimEcho handles the provider's fromMe webhook beating the send reply: the
// echo was stored as a device message and already mirrored to the CRM, so
// only the attribution and the dashboard event are fixed up.
func (s *outboundService) claimEcho(ctx context.Context, conv *models.Conversation, contact *models.Contact, msg *models.Message, result *SendResult) {
	claimed, err := s.messageRepo.ClaimOutbound(ctx, msg)
	if err != nil {
		s.logger.Warn("failed to claim echoed message",
			zap.String("instance_id", msg.InstanceID.String()),
			zap.String("whatsapp_message_id", result.ProviderMessageID),
			zap.Error(err),
		)
		return
	}
	if claimed == nil {
		s.logger.Warn("provider message id already stored",
			zap.String("instance_id", msg.InstanceID.String()),
			zap.String("whatsapp_message_id", result.ProviderMessageID),
		)
		return
	}
	result.MessageID = claimed.ID
	s.messagePublished(ctx, conv, contact, claimed)

	s.logger.Info("echoed message claimed",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("message_id", claimed.ID.String()),
		zap.String("source", string(claimed.Source)),
	)
}

func (s *outboundService) findInstance(ctx context.Context, req *SendRequest) (*models.Instance, error) {
	var (
		inst *models.Instance
		err  error
	)
	if req.WorkspaceID != uuid.Nil {
		inst, err = s.instanceRepo.FindInWorkspace(ctx, req.WorkspaceID, req.InstanceID)
	} else {
		inst, err = s.instanceRepo.FindByID(ctx, req.InstanceID)
	}
	if err != nil {
		return nil, notFound(err, "Instance")
	}
	return inst, nil
}

// findConversation nil when none was named or the named one is closed (the
// send then opens a fresh thread)
func (s *outboundService) findConversation(ctx context.Context, req *SendRequest, inst *models.Instance) (*models.Conversation, error) {
	if req.ConversationID == uuid.Nil {
		return nil, nil
	}
	conv, err := s.conversationRepo.FindByID(ctx, req.ConversationID)
	if err != nil {
		return nil, notFound(err, "Conversation")
	}
	if req.WorkspaceID != uuid.Nil && conv.WorkspaceID != req.WorkspaceID {
		return nil, apperrors.New(apperrors.ErrNotFound, "Conversation not found")
	}
	if conv.InstanceID != inst.ID {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "conversation belongs to another instance")
	}
	if !conv.IsOpen() {
		if req.Phone == "" && conv.Contact != nil {
			req.Phone = conv.Contact.Phone
		}
		return nil, nil
	}
	return conv, nil
}

func (s *outboundService) openConversation(ctx context.Context, inst *models.Instance, to, preview string, at time.Time) (*models.Contact, *models.Conversation, error) {
	contact, err := s.contactRepo.Upsert(ctx, &models.Contact{
		WorkspaceID: inst.WorkspaceID,
		InstanceID:  inst.ID,
		Phone:       to,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("upsert contact: %w", err)
	}

	conv := &models.Conversation{
		WorkspaceID:    inst.WorkspaceID,
		InstanceID:     inst.ID,
		ContactID:      contact.ID,
		AttendanceMode: models.AttendanceAI,
		DepartmentID:   inst.DepartmentID,
	}
	conv.SetLastMessage(preview, at)

	conv, err = s.conversationRepo.UpsertOpen(ctx, conv, false)
	if err != nil {
		return nil, nil, fmt.Errorf("upsert conversation: %w", err)
	}
	return contact, conv, nil
}

func (s *outboundService) buildMessage(inst *models.Instance, req *SendRequest, msgType models.MessageType, providerID string, at time.Time) *models.Message {
	content := req.Text
	if content == "" {
		content = req.Caption
	}

	msg := &models.Message{
		WorkspaceID:       inst.WorkspaceID,
		InstanceID:        inst.ID,
		WhatsAppMessageID: strPtr(providerID),
		Direction:         models.DirectionOutgoing,
		Type:              msgType,
		Content:           strPtr(content),
		MediaURL:          strPtr(req.MediaURL),
		MediaMimeType:     strPtr(req.MimeType),
		Status:            models.MessageSent,
		IsFromBot:         req.Source == models.SourceAI,
		FromMe:            true,
		Source:            req.Source,
		SentAt:            at,
		Metadata:          datatypes.JSONMap{},
	}
	if req.UserID != uuid.Nil {
		userID := req.UserID
		msg.SenderUserID = &userID
	}
	if req.FileName != "" {
		msg.Metadata["file_name"] = req.FileName
	}
	if msg.Source == "" {
		msg.Source = models.SourceAPI
	}
	return msg
}
